package connconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConf = `# Pulsar client connection
brokerServiceUrl = pulsar+ssl://pulsar-aws-useast2.streaming.datastax.com:6651
webServiceUrl=https://pulsar-aws-useast2.api.streaming.datastax.com

authPlugin = org.apache.pulsar.client.impl.auth.AuthenticationToken
authParams = token:first
authParams = token:second
tlsAllowInsecureConnection = false
bootstrap.servers = kafka-aws-useast2.streaming.datastax.com:9093
`

func TestParse(t *testing.T) {
	conf, err := Parse(sampleConf)
	require.NoError(t, err)

	require.Equal(t, "pulsar+ssl://pulsar-aws-useast2.streaming.datastax.com:6651", conf.ServiceURL())

	v, ok := conf.Get("authParams")
	require.True(t, ok)
	require.Equal(t, "token:second", v, "last duplicate wins")

	v, ok = conf.Get("webServiceUrl")
	require.True(t, ok)
	require.Equal(t, "https://pulsar-aws-useast2.api.streaming.datastax.com", v)

	_, ok = conf.Get(KeyBrokerServiceURL)
	require.False(t, ok, "service url is not an auxiliary parameter")

	require.Equal(t, []string{"authParams", "authPlugin", "bootstrap.servers", "tlsAllowInsecureConnection", "webServiceUrl"}, conf.Keys())
	require.False(t, conf.Bool("tlsAllowInsecureConnection", true))
	require.True(t, conf.Bool("missing", true))
	require.Equal(t, "dflt", conf.GetOrDefault("missing", "dflt"))
}

func TestParseServiceURLAlias(t *testing.T) {
	conf, err := Parse("serviceUrl=pulsar://localhost:6650\n")
	require.NoError(t, err)
	require.Equal(t, "pulsar://localhost:6650", conf.ServiceURL())
}

func TestParseMissingURL(t *testing.T) {
	for _, content := range []string{"", "# only a comment\n", "authParams=token:x\n", "brokerServiceUrl = \n"} {
		_, err := Parse(content)
		require.ErrorIs(t, err, ErrMissingServiceURL)
	}
}

func TestParamsIsACopy(t *testing.T) {
	conf, err := Parse(sampleConf)
	require.NoError(t, err)

	params := conf.Params()
	params["authParams"] = "changed"

	v, _ := conf.Get("authParams")
	require.Equal(t, "token:second", v)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.conf")
	require.NoError(t, os.WriteFile(path, []byte(sampleConf), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, conf.Path())
	require.NotEmpty(t, conf.ServiceURL())
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.conf"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(dir)
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.conf")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Load(empty)
	require.ErrorIs(t, err, ErrMissingServiceURL)
}

func TestParseKeepsBackslashesVerbatim(t *testing.T) {
	conf, err := Parse("authParams = token:abc\\\n" +
		"brokerServiceUrl = pulsar://h:6650\n" +
		"tlsTrustCertsFilePath = C:\\certs\\new\\ca.pem\n")
	require.NoError(t, err)

	require.Equal(t, "pulsar://h:6650", conf.ServiceURL())
	require.Equal(t, "token:abc\\", conf.GetOrDefault("authParams", ""))
	require.Equal(t, `C:\certs\new\ca.pem`, conf.GetOrDefault("tlsTrustCertsFilePath", ""))
}

func TestParseSplitsAtFirstEquals(t *testing.T) {
	conf, err := Parse("brokerServiceUrl=pulsar://h:6650\nauthParams = {\"issuerUrl\":\"https://a\",\"k\":\"v=1\"}\n! not a comment = kept\n")
	require.NoError(t, err)
	require.Equal(t, `{"issuerUrl":"https://a","k":"v=1"}`, conf.GetOrDefault("authParams", ""))
	require.Equal(t, "kept", conf.GetOrDefault("! not a comment", ""))
}

func TestParseRejectsLineWithoutSeparator(t *testing.T) {
	for _, content := range []string{
		"brokerServiceUrl=pulsar://h:6650\nauthPlugin: token\n",
		"brokerServiceUrl=pulsar://h:6650\n = value\n",
	} {
		_, err := Parse(content)
		require.Error(t, err)
		require.Contains(t, err.Error(), "line 2")
	}
}
