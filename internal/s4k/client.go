// Package s4k builds kafka-go readers and writers against the Kafka
// compatible endpoint of a Pulsar cluster (Starlight for Kafka).
package s4k

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"

	"petermann-digital.de/pulsar-workshop/internal/connconf"
)

// Connection file keys, named as in the Kafka client configuration.
const (
	KeyBootstrapServers = "bootstrap.servers"
	KeySecurityProtocol = "security.protocol"
	KeySASLJaasConfig   = "sasl.jaas.config"
	KeySASLUsername     = "sasl.username"
	KeySASLPassword     = "sasl.password"
)

// DefaultKafkaPort is used when bootstrap servers are derived from the
// Pulsar service URL.
const DefaultKafkaPort = "9092"

var (
	jaasUsername = regexp.MustCompile(`username\s*=\s*['"]([^'"]*)['"]`)
	jaasPassword = regexp.MustCompile(`password\s*=\s*['"]([^'"]*)['"]`)
)

// Settings is the resolved Kafka connection.
type Settings struct {
	Brokers []string
	TLS     *tls.Config
	SASL    sasl.Mechanism
	Timeout time.Duration
}

// Resolve reads the Kafka connection from the connection file. Hosted mode
// forces SASL/PLAIN over TLS and requires credentials.
func Resolve(conf *connconf.Config, hosted bool, timeout time.Duration) (Settings, error) {
	brokers, err := Brokers(conf)
	if err != nil {
		return Settings{}, err
	}
	s := Settings{Brokers: brokers, Timeout: timeout}

	protocol := strings.ToUpper(conf.GetOrDefault(KeySecurityProtocol, ""))
	if hosted || strings.Contains(protocol, "SSL") {
		s.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if hosted || strings.Contains(protocol, "SASL") {
		user, pass := credentials(conf)
		if user == "" || pass == "" {
			return Settings{}, fmt.Errorf("SASL/PLAIN requires credentials in %s or %s/%s", KeySASLJaasConfig, KeySASLUsername, KeySASLPassword)
		}
		s.SASL = plain.Mechanism{Username: user, Password: pass}
	}
	return s, nil
}

// Brokers returns the bootstrap servers, falling back to the host of the
// Pulsar service URL on DefaultKafkaPort.
func Brokers(conf *connconf.Config) ([]string, error) {
	if raw := conf.GetOrDefault(KeyBootstrapServers, ""); raw != "" {
		var brokers []string
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		if len(brokers) > 0 {
			return brokers, nil
		}
	}

	u, err := url.Parse(conf.ServiceURL())
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("cannot derive %s from service url %q", KeyBootstrapServers, conf.ServiceURL())
	}
	return []string{net.JoinHostPort(u.Hostname(), DefaultKafkaPort)}, nil
}

func credentials(conf *connconf.Config) (string, string) {
	user := conf.GetOrDefault(KeySASLUsername, "")
	pass := conf.GetOrDefault(KeySASLPassword, "")
	if jaas := conf.GetOrDefault(KeySASLJaasConfig, ""); jaas != "" {
		if m := jaasUsername.FindStringSubmatch(jaas); m != nil && user == "" {
			user = m[1]
		}
		if m := jaasPassword.FindStringSubmatch(jaas); m != nil && pass == "" {
			pass = m[1]
		}
	}
	return user, pass
}

// Dialer is used by readers.
func (s Settings) Dialer() *kafka.Dialer {
	return &kafka.Dialer{
		Timeout:       s.Timeout,
		DualStack:     true,
		TLS:           s.TLS,
		SASLMechanism: s.SASL,
	}
}

// Transport is used by writers.
func (s Settings) Transport() *kafka.Transport {
	return &kafka.Transport{
		DialTimeout: s.Timeout,
		TLS:         s.TLS,
		SASL:        s.SASL,
	}
}

// NewWriter returns a writer for topic.
func (s Settings) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(s.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Transport:    s.Transport(),
	}
}

// NewReader returns a consumer-group reader for topic. Offsets are committed
// explicitly by the caller.
func (s Settings) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.Brokers,
		GroupID:     groupID,
		Topic:       topic,
		Dialer:      s.Dialer(),
		StartOffset: kafka.FirstOffset,
	})
}
