// Package flagx holds helpers for sharing os.Args between several flag sets
// without one rejecting flags that belong to another.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowedFlags, with their values,
// so a flag set can parse os.Args that also carry flags it does not know.
// Both "-c gate.yaml" and "--config=gate.yaml" forms are recognised. A
// following argument is taken as the value unless it starts with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	keep := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		keep[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if keep[name] {
				out = append(out, arg)
			}
			continue
		}

		if !keep[arg] {
			continue
		}
		out = append(out, arg)
		if next := i + 1; next < len(args) && !strings.HasPrefix(args[next], "-") {
			out = append(out, args[next])
			i = next
		}
	}
	return out
}

// ConfigFile returns the config file path passed via -c or -config in
// os.Args, or "" when neither is present.
func ConfigFile() string {
	return ConfigFileFromArgs(os.Args[1:])
}

// ConfigFileFromArgs extracts the -c/-config value from args. Only these flags
// are parsed, so flags owned by other components never cause an error here.
// When both are given the last one wins.
func ConfigFileFromArgs(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "Path to config file (.json, .yaml, .yml)")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}
