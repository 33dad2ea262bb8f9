package harness

import "strings"

// Option describes one recognized command line option.
type Option struct {
	Short       string
	Long        string
	HasArg      bool
	Required    bool
	Description string
}

// Options is the registry of recognized options for one application.
// Registration order is preserved for help output.
type Options struct {
	list    []*Option
	byShort map[string]*Option
	byLong  map[string]*Option
	frozen  bool
}

// NewOptions returns an empty registry.
func NewOptions() *Options {
	return &Options{
		byShort: make(map[string]*Option),
		byLong:  make(map[string]*Option),
	}
}

// AddRequired registers an option that must be present on the command line.
func (o *Options) AddRequired(short, long string, hasArg bool, description string) error {
	return o.add(&Option{Short: short, Long: long, HasArg: hasArg, Required: true, Description: description})
}

// AddOptional registers an option that may be omitted.
func (o *Options) AddOptional(short, long string, hasArg bool, description string) error {
	return o.add(&Option{Short: short, Long: long, HasArg: hasArg, Description: description})
}

func (o *Options) add(opt *Option) error {
	if o.frozen {
		return programmingError("option %q registered after the command line was parsed", opt.Short)
	}
	if !validKey(opt.Short) || !validKey(opt.Long) {
		return programmingError("invalid option keys %q/%q", opt.Short, opt.Long)
	}
	if _, ok := o.byShort[opt.Short]; ok {
		return programmingError("duplicate option short key %q", opt.Short)
	}
	if _, ok := o.byLong[opt.Long]; ok {
		return programmingError("duplicate option long key %q", opt.Long)
	}
	o.list = append(o.list, opt)
	o.byShort[opt.Short] = opt
	o.byLong[opt.Long] = opt
	return nil
}

// Lookup returns the descriptor registered under the short key.
func (o *Options) Lookup(short string) (*Option, error) {
	opt, ok := o.byShort[short]
	if !ok {
		return nil, programmingError("unknown option %q", short)
	}
	return opt, nil
}

// All returns copies of the registered descriptors in registration order.
func (o *Options) All() []Option {
	out := make([]Option, 0, len(o.list))
	for _, opt := range o.list {
		out = append(out, *opt)
	}
	return out
}

// Len returns the number of registered options.
func (o *Options) Len() int { return len(o.list) }

// resolve maps a command line token such as "-n", "--numMsg" or
// "--numMsg=5" to its descriptor. ok is false when the token is not an
// option token or names no registered option.
func (o *Options) resolve(token string) (opt *Option, value string, inline bool, ok bool) {
	var name string
	switch {
	case strings.HasPrefix(token, "--") && len(token) > 2:
		name = token[2:]
	case strings.HasPrefix(token, "-") && len(token) > 1:
		name = token[1:]
	default:
		return nil, "", false, false
	}
	if idx := strings.IndexByte(name, '='); idx >= 0 {
		name, value, inline = name[:idx], name[idx+1:], true
	}
	if strings.HasPrefix(token, "--") {
		opt, ok = o.byLong[name]
	} else {
		opt, ok = o.byShort[name]
	}
	return opt, value, inline, ok
}

func (o *Options) freeze() { o.frozen = true }

func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, "-") && !strings.ContainsAny(key, "= \t")
}
