package projects

import (
	"bufio"
	"os"
	"strings"

	"github.com/loykin/overseerd/internal/procdef"
)

// ParseProcfile reads dir/Procfile, one process per non-empty,
// non-comment line in the form "name: command". A leading "#~" marks
// the line as present but not autostarted (a Foreman-style convention
// extended with an explicit opt-out, since the spec's autostart flag
// needs a way to be expressed per line rather than per file). A
// missing Procfile yields no processes, not an error: an unregistered
// or empty project is a valid, if useless, service.
func ParseProcfile(dir string, defaults ProcessDefaults) ([]procdef.Def, error) {
	f, err := os.Open(dir + "/Procfile")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var defs []procdef.Def
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		autostart := true
		procLine := line
		if strings.HasPrefix(line, "#") {
			rest := strings.TrimSpace(line[1:])
			trimmed, ok := strings.CutPrefix(rest, "~")
			if !ok {
				continue // an ordinary comment line
			}
			procLine = strings.TrimSpace(trimmed)
			autostart = false
		}

		idx := strings.Index(procLine, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(procLine[:idx])
		command := strings.TrimSpace(procLine[idx+1:])
		if name == "" || command == "" {
			continue
		}
		defs = append(defs, defaults.toDef(name, command, autostart))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}
