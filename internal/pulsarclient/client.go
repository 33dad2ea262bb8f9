// Package pulsarclient turns a connection file into a native Pulsar client.
package pulsarclient

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	"petermann-digital.de/pulsar-workshop/internal/connconf"
)

// Connection file keys understood by the builder, named as in the Pulsar
// client.conf format.
const (
	KeyAuthPlugin            = "authPlugin"
	KeyAuthParams            = "authParams"
	KeyTLSTrustCertsFilePath = "tlsTrustCertsFilePath"
	KeyTLSAllowInsecure      = "tlsAllowInsecureConnection"
	KeyTLSHostnameVerify     = "tlsEnableHostnameVerification"
)

// EnvToken is consulted when the connection file carries no credentials.
const EnvToken = "PULSAR_JWT"

const tokenPluginSuffix = "AuthenticationToken"

// ClientOptions maps the connection file onto pulsar.ClientOptions. Hosted
// mode requires token authentication.
func ClientOptions(conf *connconf.Config, hosted bool, operationTimeout time.Duration) (pulsar.ClientOptions, error) {
	options := pulsar.ClientOptions{
		URL:                        conf.ServiceURL(),
		OperationTimeout:           operationTimeout,
		TLSTrustCertsFilePath:      conf.GetOrDefault(KeyTLSTrustCertsFilePath, ""),
		TLSAllowInsecureConnection: conf.Bool(KeyTLSAllowInsecure, false),
		TLSValidateHostname:        conf.Bool(KeyTLSHostnameVerify, false),
	}

	auth, isToken, err := authentication(conf)
	if err != nil {
		return pulsar.ClientOptions{}, err
	}
	if hosted && !isToken {
		return pulsar.ClientOptions{}, fmt.Errorf("hosted streaming requires token authentication (%s=token:<jwt> or %s)", KeyAuthParams, EnvToken)
	}
	options.Authentication = auth
	return options, nil
}

// New creates a Pulsar client from the connection file.
func New(conf *connconf.Config, hosted bool, operationTimeout time.Duration) (pulsar.Client, error) {
	options, err := ClientOptions(conf, hosted, operationTimeout)
	if err != nil {
		return nil, err
	}
	client, err := pulsar.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("could not create pulsar client: %w", err)
	}
	return client, nil
}

// authentication resolves the auth provider. isToken reports whether the
// provider is JWT based.
func authentication(conf *connconf.Config) (auth pulsar.Authentication, isToken bool, err error) {
	plugin := conf.GetOrDefault(KeyAuthPlugin, "")
	params := conf.GetOrDefault(KeyAuthParams, "")

	switch {
	case strings.HasPrefix(params, "token:"):
		return pulsar.NewAuthenticationToken(strings.TrimPrefix(params, "token:")), true, nil
	case strings.HasPrefix(params, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(params, "file:"), "//")
		return pulsar.NewAuthenticationTokenFromFile(path), true, nil
	case params != "" && strings.HasSuffix(plugin, tokenPluginSuffix):
		return pulsar.NewAuthenticationToken(params), true, nil
	case plugin != "":
		auth, err := pulsar.NewAuthentication(plugin, params)
		if err != nil {
			return nil, false, fmt.Errorf("auth plugin %s: %w", plugin, err)
		}
		return auth, false, nil
	}

	if token := os.Getenv(EnvToken); token != "" {
		return pulsar.NewAuthenticationToken(token), true, nil
	}
	return nil, false, nil
}
