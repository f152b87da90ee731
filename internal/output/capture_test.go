package output

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteOrdersRingLogBroadcast(t *testing.T) {
	dir := t.TempDir()
	c := New("web", "server", dir, DefaultMaxLogSize)
	defer c.Close()

	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	c.Write([]byte("line one\n"))

	require.Equal(t, []byte("line one\n"), c.Snapshot())

	select {
	case msg := <-sub:
		require.Equal(t, []byte("line one\n"), msg)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message")
	}
}

func TestSnapshotEvictsOldestPastCapacity(t *testing.T) {
	dir := t.TempDir()
	c := New("web", "server", dir, DefaultMaxLogSize)
	defer c.Close()

	chunk := make([]byte, RingCapacity/2+1)
	for i := range chunk {
		chunk[i] = 'a'
	}
	c.Write(chunk)
	c.Write(chunk)

	snap := c.Snapshot()
	require.LessOrEqual(t, len(snap), RingCapacity)
}

func TestSubscribeOnlySeesWritesAfter(t *testing.T) {
	dir := t.TempDir()
	c := New("web", "server", dir, DefaultMaxLogSize)
	defer c.Close()

	c.Write([]byte("before\n"))
	sub := c.Subscribe()
	defer c.Unsubscribe(sub)
	c.Write([]byte("after\n"))

	select {
	case msg := <-sub:
		require.Equal(t, []byte("after\n"), msg)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast message")
	}
}

func TestLaggingSubscriberDropsOldest(t *testing.T) {
	dir := t.TempDir()
	c := New("web", "server", dir, DefaultMaxLogSize)
	defer c.Close()

	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	for i := 0; i < BroadcastDepth+10; i++ {
		c.Write([]byte(strconv.Itoa(i)))
	}
	// Must not deadlock or block; draining should still succeed.
	drained := 0
	var first []byte
	for {
		select {
		case msg := <-sub:
			if drained == 0 {
				first = msg
			}
			drained++
		default:
			require.LessOrEqual(t, drained, BroadcastDepth)
			// The ten oldest messages (0..9) were dropped to make room.
			require.Equal(t, "10", string(first))
			return
		}
	}
}
