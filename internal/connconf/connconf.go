// Package connconf loads the client connection file shared by every demo.
//
// The file is line oriented: each non-blank line that is not a '#' comment
// holds a "key = value" pair. Whitespace around '=' is ignored, the value is
// taken verbatim and the last occurrence of a duplicated key wins. brokerServiceUrl (or its alias
// serviceUrl) is required; every other key is kept verbatim for the client
// builders.
package connconf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/magiconair/properties"
)

const (
	KeyBrokerServiceURL = "brokerServiceUrl"
	KeyServiceURL       = "serviceUrl"
)

// ErrMissingServiceURL is returned when the file defines no service URL.
var ErrMissingServiceURL = errors.New("missing required key " + KeyBrokerServiceURL)

// Config is an immutable view of a connection file.
type Config struct {
	path       string
	serviceURL string
	params     map[string]string
}

// Load reads and validates the connection file at path.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("connection file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("connection file %s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read connection file %s: %w", path, err)
	}
	defer f.Close()

	conf, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("connection file %s: %w", path, err)
	}
	conf.path = path
	return conf, nil
}

// Parse builds a Config from file content. It is used by tests and by
// callers that already hold the bytes.
func Parse(content string) (*Config, error) {
	return read(strings.NewReader(content))
}

// read splits every line at its first '='. Backslashes, ':' and '!' carry no
// meaning, so Windows paths and values ending in '\' are kept verbatim.
func read(r io.Reader) (*Config, error) {
	p := properties.NewProperties()
	p.DisableExpansion = true

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: expected \"key = value\", got %q", lineNo, line)
		}
		if _, _, err := p.Set(key, strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fromMap(p.Map())
}

func fromMap(params map[string]string) (*Config, error) {
	url := params[KeyBrokerServiceURL]
	if url == "" {
		url = params[KeyServiceURL]
	}
	if url == "" {
		return nil, ErrMissingServiceURL
	}
	delete(params, KeyBrokerServiceURL)
	delete(params, KeyServiceURL)

	return &Config{serviceURL: url, params: params}, nil
}

// Path is the file the config was loaded from, empty for Parse.
func (c *Config) Path() string { return c.path }

// ServiceURL is the broker endpoint.
func (c *Config) ServiceURL() string { return c.serviceURL }

// Get returns an auxiliary parameter.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.params[key]
	return v, ok
}

// GetOrDefault returns the parameter, or def when it is missing or blank.
func (c *Config) GetOrDefault(key, def string) string {
	if v, ok := c.params[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool interprets a parameter as a boolean; missing or unrecognized values
// yield def.
func (c *Config) Bool(key string, def bool) bool {
	switch strings.ToLower(c.params[key]) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	default:
		return def
	}
}

// Params returns a copy of the auxiliary parameters.
func (c *Config) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Keys returns the auxiliary parameter names, sorted.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.params))
	for k := range c.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
