// Package config holds the ambient settings shared by every demo. They are
// read from WORKSHOP_* environment variables; none of them is mandatory.
package config

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "WORKSHOP"

var (
	defaultLogLevel         = logrus.InfoLevel.String()
	defaultLogFormat        = "text"
	defaultLogDir           = ""
	defaultOperationTimeout = 30 * time.Second
	defaultReceiveTimeout   = time.Duration(0)
)

type Settings struct {
	*viper.Viper
}

func NewSettings() Settings {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("log-dir", defaultLogDir)
	v.SetDefault("operation-timeout", defaultOperationTimeout)
	v.SetDefault("receive-timeout", defaultReceiveTimeout)

	return Settings{v}
}

// LogLevel falls back to info for unparsable values.
func (s Settings) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(s.GetString("log-level"))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func (s Settings) SetLogLevel(level string) {
	s.Set("log-level", level)
}

// LogFormat is "text" or "json".
func (s Settings) LogFormat() string {
	if strings.EqualFold(s.GetString("log-format"), "json") {
		return "json"
	}
	return "text"
}

func (s Settings) SetLogFormat(format string) {
	s.Set("log-format", format)
}

// LogDir is where per-demo log files go; empty disables file logging.
func (s Settings) LogDir() string {
	return s.GetString("log-dir")
}

func (s Settings) SetLogDir(dir string) {
	s.Set("log-dir", dir)
}

// OperationTimeout bounds broker client operations such as creating
// producers and consumers.
func (s Settings) OperationTimeout() time.Duration {
	return s.GetDuration("operation-timeout")
}

func (s Settings) SetOperationTimeout(d time.Duration) {
	s.Set("operation-timeout", d)
}

// ReceiveTimeout bounds a single receive or poll; zero blocks until a
// message arrives.
func (s Settings) ReceiveTimeout() time.Duration {
	return s.GetDuration("receive-timeout")
}

func (s Settings) SetReceiveTimeout(d time.Duration) {
	s.Set("receive-timeout", d)
}
