package projects

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/overseerd/internal/procdef"
)

// Entry is one registered project: a name and the directory its
// Procfile (and optional override file) live in.
type Entry struct {
	Name string
	Dir  string
}

// LoadProjects reads {configDir}/projects, one "name: /path/to/dir"
// (or name<TAB>dir) per line; blank lines and lines starting with '#'
// are skipped. Directories that don't exist are skipped with a
// warning rather than failing the whole load.
func LoadProjects(configDir string) ([]Entry, []string) {
	return loadEntryFile(filepath.Join(configDir, "projects"), true)
}

// LoadCommands reads {configDir}/commands, one "name: shell command"
// per line, and materializes each as a tiny project directory under
// {configDir}/_commands/{name} containing a single-line Procfile, so
// ad hoc commands are registered through the exact same Procfile path
// as a full project.
func LoadCommands(configDir string) ([]Entry, []string) {
	path := filepath.Join(configDir, "commands")
	commandsDir := filepath.Join(configDir, "_commands")

	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	var entries []Entry
	var warnings []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		command := strings.TrimSpace(line[idx+1:])
		if name == "" || command == "" {
			continue
		}

		dir := filepath.Join(commandsDir, name)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			warnings = append(warnings, fmt.Sprintf("commands: %s: %v", name, err))
			continue
		}
		procfile := filepath.Join(dir, "Procfile")
		content := fmt.Sprintf("%s: %s\n", name, command)
		if existing, err := os.ReadFile(procfile); err != nil || string(existing) != content {
			if err := os.WriteFile(procfile, []byte(content), 0o640); err != nil {
				warnings = append(warnings, fmt.Sprintf("commands: %s: %v", name, err))
				continue
			}
		}
		entries = append(entries, Entry{Name: name, Dir: dir})
	}
	return entries, warnings
}

func loadEntryFile(path string, requireDirExists bool) ([]Entry, []string) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	var entries []Entry
	var warnings []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, dirStr, ok := splitNameAndRest(line)
		if !ok {
			continue
		}
		dir := expandTilde(dirStr)
		if requireDirExists {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				warnings = append(warnings, fmt.Sprintf("projects: %s: directory does not exist: %s", name, dir))
				continue
			}
		}
		entries = append(entries, Entry{Name: name, Dir: dir})
	}
	return entries, warnings
}

func splitNameAndRest(line string) (string, string, bool) {
	if idx := strings.Index(line, ":"); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}
	if idx := strings.Index(line, "\t"); idx >= 0 {
		return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}

func expandTilde(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// LoadServiceEntries merges LoadProjects and LoadCommands into one
// name → Entry map; commands win on a name collision, matching the
// original behavior of registering commands after projects.
func LoadServiceEntries(configDir string) (map[string]Entry, []string) {
	out := make(map[string]Entry)
	projects, warnings := LoadProjects(configDir)
	for _, e := range projects {
		out[e.Name] = e
	}
	commands, cmdWarnings := LoadCommands(configDir)
	for _, e := range commands {
		out[e.Name] = e
	}
	return out, append(warnings, cmdWarnings...)
}

// LoadService turns a registered Entry into the (dir, []procdef.Def)
// pair StartService/ReloadService need: the directory's Procfile
// parsed against defaults, then any .overseerd.toml override applied.
func LoadService(entry Entry, defaults ProcessDefaults) (string, []procdef.Def, error) {
	defs, err := ParseProcfile(entry.Dir, defaults)
	if err != nil {
		return entry.Dir, nil, err
	}
	defs = ApplyOverrides(entry.Dir, defs, defaults)
	return entry.Dir, defs, nil
}
