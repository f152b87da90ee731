package projects

import (
	"os"

	"github.com/spf13/viper"

	"github.com/loykin/overseerd/internal/procdef"
)

// ApplyOverrides reads dir/.overseerd.toml, if present, and merges any
// matching per-process overrides into defs (matched by name). An
// override may also introduce a process with no Procfile line at all,
// provided it supplies a command. A missing or malformed override
// file leaves defs exactly as parsed from the Procfile.
func ApplyOverrides(dir string, defs []procdef.Def, defaults ProcessDefaults) []procdef.Def {
	path := dir + "/.overseerd.toml"
	if _, err := os.Stat(path); err != nil {
		return defs
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return defs
	}

	byName := make(map[string]int, len(defs))
	for i, d := range defs {
		byName[d.Name] = i
	}

	for name := range v.GetStringMap("processes") {
		sub := v.Sub("processes." + name)
		if sub == nil {
			continue
		}
		if i, known := byName[name]; known {
			applyOverride(&defs[i], sub)
			continue
		}
		if !sub.IsSet("command") {
			continue
		}
		fresh := defaults.toDef(name, sub.GetString("command"), true)
		applyOverride(&fresh, sub)
		defs = append(defs, fresh)
	}

	return defs
}

// applyOverride merges sub's fields onto d in place; fields absent
// from sub are left as d already had them.
func applyOverride(d *procdef.Def, sub *viper.Viper) {
	if sub.IsSet("command") {
		d.Command = sub.GetString("command")
	}
	if sub.IsSet("restart") {
		d.Restart = sub.GetBool("restart")
	}
	if sub.IsSet("max_retries") {
		d.MaxRetries = sub.GetInt("max_retries")
	}
	if sub.IsSet("restart_delay_secs") {
		d.RestartDelay = secToDuration(sub.GetInt("restart_delay_secs"))
	}
	if sub.IsSet("autostart") {
		d.Autostart = sub.GetBool("autostart")
	}
	if env := sub.GetStringMapString("env"); len(env) > 0 {
		if d.Env == nil {
			d.Env = make(map[string]string, len(env))
		}
		for k, val := range env {
			d.Env[k] = val
		}
	}
}
