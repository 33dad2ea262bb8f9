package harness

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Args is the result of matching a raw argument vector against an Options
// registry. Values are keyed by short option key.
type Args struct {
	opts   *Options
	values map[string]string
}

// parseArgs matches raw against opts. When helpKey is present the
// required-option check is skipped and an option missing its value is
// recorded as blank, so that help can still be shown.
func parseArgs(opts *Options, raw []string, helpKey string) (*Args, error) {
	values := make(map[string]string)
	help := helpRequested(opts, raw, helpKey)

	for i := 0; i < len(raw); i++ {
		token := raw[i]
		if token == "--" {
			if i+1 < len(raw) {
				return nil, InvalidParam("", "Unexpected argument: %s", raw[i+1])
			}
			break
		}

		opt, value, inline, ok := opts.resolve(token)
		if !ok {
			if strings.HasPrefix(token, "-") && len(token) > 1 {
				return nil, InvalidParam("", "Unrecognized option: %s", token)
			}
			return nil, InvalidParam("", "Unexpected argument: %s", token)
		}

		if opt.HasArg && !inline {
			if i+1 >= len(raw) || isOptionToken(opts, raw[i+1]) {
				if help {
					values[opt.Short] = ""
					continue
				}
				return nil, InvalidParam(opt.Short, "Missing argument for option: %s", opt.Short)
			}
			i++
			value = raw[i]
		}
		values[opt.Short] = value
	}

	if !help {
		var missing []string
		for _, opt := range opts.list {
			if !opt.Required {
				continue
			}
			v, ok := values[opt.Short]
			if !ok {
				missing = append(missing, opt.Short)
				continue
			}
			if opt.HasArg && isBlank(v) {
				return nil, InvalidParam(opt.Short, "Empty value for argument '%s'", opt.Short)
			}
		}
		switch len(missing) {
		case 0:
		case 1:
			return nil, InvalidParam(missing[0], "Missing required option: %s", missing[0])
		default:
			return nil, InvalidParam(missing[0], "Missing required options: %s", strings.Join(missing, ", "))
		}
	}

	return &Args{opts: opts, values: values}, nil
}

func helpRequested(opts *Options, raw []string, helpKey string) bool {
	for _, token := range raw {
		if token == "--" {
			return false
		}
		if opt, _, _, ok := opts.resolve(token); ok && opt.Short == helpKey {
			return true
		}
	}
	return false
}

func isOptionToken(opts *Options, token string) bool {
	_, _, _, ok := opts.resolve(token)
	return ok
}

// Has reports whether the option was given on the command line.
func (a *Args) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Raw returns the unprocessed value of the option and whether it was given.
func (a *Args) Raw(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// value looks up the descriptor for key and enforces required-ness.
func (a *Args) value(key string) (*Option, string, error) {
	opt, err := a.opts.Lookup(key)
	if err != nil {
		return nil, "", err
	}
	v := a.values[key]
	if opt.Required && opt.HasArg && isBlank(v) {
		return nil, "", InvalidParam(key, "Empty value for argument '%s'", key)
	}
	return opt, v, nil
}

// String returns the option value, or def when absent or blank.
func (a *Args) String(key, def string) (string, error) {
	_, v, err := a.value(key)
	if err != nil {
		return "", err
	}
	if isBlank(v) {
		return def, nil
	}
	return v, nil
}

// Int returns the option value parsed as a decimal integer. Absent, blank and
// non-numeric values all yield def; a malformed number is not an error.
func (a *Args) Int(key string, def int) (int, error) {
	_, v, err := a.value(key)
	if err != nil {
		return 0, err
	}
	if isBlank(v) {
		return def, nil
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil {
		return def, nil
	}
	return n, nil
}

// Bool returns def when the option is absent. A flag given without a value
// is true; otherwise true/yes/on/1 (any case) are true and everything else is
// false.
func (a *Args) Bool(key string, def bool) (bool, error) {
	opt, v, err := a.value(key)
	if err != nil {
		return false, err
	}
	if !a.Has(key) {
		return def, nil
	}
	if isBlank(v) {
		if !opt.HasArg {
			return true, nil
		}
		return def, nil
	}
	return parseBool(v), nil
}

// FilePath returns the absolute, cleaned form of the option value. The file
// does not have to exist. An optional option that was not given yields "".
func (a *Args) FilePath(key string) (string, error) {
	_, v, err := a.value(key)
	if err != nil {
		return "", err
	}
	if isBlank(v) {
		return "", nil
	}
	path, absErr := filepath.Abs(v)
	if absErr != nil {
		return "", InvalidParamCause(key, absErr, "Invalid file path for param '%s': %s", key, v)
	}
	return path, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true
	default:
		return false
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
