// Package flagx lets independent config loaders share os.Args: each loader
// picks out only the flags it owns and parses them on a private FlagSet.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps the flags named in allowedFlags (and their values) from args.
// Both "-f value" and "-f=value" forms are recognised; a following argument is
// treated as the value unless it starts with "-". The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") {
			if name, _, ok := strings.Cut(arg, "="); ok {
				if _, keep := allowed[name]; keep {
					filtered = append(filtered, arg)
				}
				continue
			}
		}

		if _, keep := allowed[arg]; !keep {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// Positional returns the arguments that are not flags or flag values, in
// order. Every flag is assumed to take a value; "--" ends flag parsing.
func Positional(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(out, args[i+1:]...)
		case strings.HasPrefix(arg, "-"):
			if !strings.Contains(arg, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
		default:
			out = append(out, arg)
		}
	}
	return out
}

// stringFlag reads a single string option that may be spelled under several
// names. The last occurrence wins; parse errors yield "".
func stringFlag(names ...string) string {
	dashed := make([]string, 0, len(names))
	for _, n := range names {
		dashed = append(dashed, "-"+n)
	}
	args := FilterArgs(os.Args[1:], dashed)

	var value string
	fs := flag.NewFlagSet(names[0], flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, n := range names {
		fs.StringVar(&value, n, "", "")
	}
	if err := fs.Parse(args); err != nil {
		return ""
	}
	return value
}

// JsonConfigFlags returns the JSON config path given via -c or -config, or "".
func JsonConfigFlags() string {
	return stringFlag("config", "c")
}

// EnvFileFlags returns the dotenv file path given via -env-file, or "".
func EnvFileFlags() string {
	return stringFlag("env-file")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
