package s4k

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/stretchr/testify/require"

	"petermann-digital.de/pulsar-workshop/internal/connconf"
)

func mustConf(t *testing.T, content string) *connconf.Config {
	t.Helper()
	conf, err := connconf.Parse(content)
	require.NoError(t, err)
	return conf
}

func TestBrokers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"explicit list", "brokerServiceUrl=pulsar://p:6650\nbootstrap.servers = k1:9093, k2:9093 ,\n", []string{"k1:9093", "k2:9093"}},
		{"derived", "brokerServiceUrl=pulsar://broker.local:6650\n", []string{"broker.local:9092"}},
		{"derived ssl", "brokerServiceUrl=pulsar+ssl://broker.example.com:6651\n", []string{"broker.example.com:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Brokers(mustConf(t, tt.content))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBrokersUnderivable(t *testing.T) {
	_, err := Brokers(mustConf(t, "brokerServiceUrl=not a url\n"))
	require.Error(t, err)
}

func TestResolvePlaintext(t *testing.T) {
	s, err := Resolve(mustConf(t, "brokerServiceUrl=pulsar://localhost:6650\n"), false, time.Second)
	require.NoError(t, err)
	require.Nil(t, s.TLS)
	require.Nil(t, s.SASL)
	require.Equal(t, time.Second, s.Dialer().Timeout)
}

func TestResolveHostedJaas(t *testing.T) {
	content := "brokerServiceUrl=pulsar+ssl://p:6651\n" +
		"bootstrap.servers=kafka.example.com:9093\n" +
		"security.protocol=SASL_SSL\n" +
		"sasl.jaas.config=org.apache.kafka.common.security.plain.PlainLoginModule required username='my-tenant' password='token:abc';\n"

	s, err := Resolve(mustConf(t, content), true, time.Second)
	require.NoError(t, err)
	require.NotNil(t, s.TLS)
	require.Equal(t, plain.Mechanism{Username: "my-tenant", Password: "token:abc"}, s.SASL)

	w := s.NewWriter("persistent://my-tenant/default/t1")
	require.Equal(t, "persistent://my-tenant/default/t1", w.Topic)
	require.NotNil(t, w.Transport)
}

func TestResolveExplicitCredentials(t *testing.T) {
	content := "brokerServiceUrl=pulsar://p:6650\nsecurity.protocol=SASL_PLAINTEXT\nsasl.username=u\nsasl.password=p\n"

	s, err := Resolve(mustConf(t, content), false, time.Second)
	require.NoError(t, err)
	require.Nil(t, s.TLS)
	require.Equal(t, plain.Mechanism{Username: "u", Password: "p"}, s.SASL)
}

func TestResolveHostedWithoutCredentials(t *testing.T) {
	_, err := Resolve(mustConf(t, "brokerServiceUrl=pulsar+ssl://p:6651\n"), true, time.Second)
	require.Error(t, err)
}
