package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCurrentLogName(t *testing.T) {
	ts := time.Date(2025, time.March, 7, 14, 30, 0, 0, time.UTC)
	require.Equal(t, "web 25-0307.log", currentLogName("web", ts))
}

func TestRotatedLogNameFallsBackToMinute(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2025, time.March, 7, 14, 30, 0, 0, time.UTC)

	name := rotatedLogName(dir, "web", ts)
	require.Equal(t, "web 25-0307 14.log", name)

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o640))

	name2 := rotatedLogName(dir, "web", ts)
	require.Equal(t, "web 25-0307 14.30.log", name2)
}

func TestParseLogDateCurrentAndRotated(t *testing.T) {
	ts, ok := ParseLogDate("web 25-0307.log")
	require.True(t, ok)
	require.Equal(t, 2025, ts.Year())
	require.Equal(t, time.March, ts.Month())
	require.Equal(t, 7, ts.Day())

	ts2, ok := ParseLogDate("web 25-0307 14.log")
	require.True(t, ok)
	require.Equal(t, 14, ts2.Hour())

	ts3, ok := ParseLogDate("web 25-0307 14.30.log")
	require.True(t, ok)
	require.Equal(t, 30, ts3.Minute())

	_, ok = ParseLogDate("not-a-log-name.txt")
	require.False(t, ok)
}

func TestWriteCreatesAndAppends(t *testing.T) {
	dir := t.TempDir()
	r := NewRotator(dir, "web", DefaultMaxLogSize)
	r.Write([]byte("hello "))
	r.Write([]byte("world"))
	r.Close()

	name := currentLogName("web", time.Now())
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestWriteRotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	r := NewRotator(dir, "web", 10)
	r.Write([]byte("0123456789"))
	r.Write([]byte("more-data-past-the-threshold"))
	r.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 2)
}

func TestExpireLogsByAge(t *testing.T) {
	root := t.TempDir()
	svcDir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(svcDir, 0o750))

	old := filepath.Join(svcDir, "web 20-0101 10.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o640))
	recent := filepath.Join(svcDir, "web 25-0307.log")
	require.NoError(t, os.WriteFile(recent, []byte("x"), 0o640))

	ExpireLogs(root, ExpiryPolicy{MaxAge: 30 * 24 * time.Hour}, time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC))

	_, err := os.Stat(old)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(recent)
	require.NoError(t, err)
}

func TestExpireLogsByCount(t *testing.T) {
	root := t.TempDir()
	svcDir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(svcDir, 0o750))

	for i := 0; i < 5; i++ {
		path := filepath.Join(svcDir, time.Now().Format("150405")+string(rune('a'+i))+".log")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o640))
		time.Sleep(2 * time.Millisecond)
	}

	ExpireLogs(root, ExpiryPolicy{MaxCount: 2}, time.Now())

	entries, err := os.ReadDir(svcDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
