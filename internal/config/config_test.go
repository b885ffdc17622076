package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrhub/acarshub/internal/types"
)

func validConfig() *Config {
	return &Config{
		DatabasePath: "/tmp/test.db",
		MessageDays:  7,
		AlertDays:    120,
		ADSBInterval: 5 * time.Second,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"zero message days", func(c *Config) { c.MessageDays = 0 }},
		{"zero alert days", func(c *Config) { c.AlertDays = 0 }},
		{"adsb enabled without url", func(c *Config) { c.EnableADSB = true; c.ADSBURL = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConnectionsMapsEveryKind(t *testing.T) {
	c := validConfig()
	c.ACARSConnections = "udp"
	c.VDLMConnections = "udp,tcp://remote:15550"

	conns := c.Connections()
	assert.Equal(t, []types.ConnectionDescriptor{
		{Transport: types.TransportUDP, Host: "0.0.0.0", Port: 5550},
	}, conns[types.KindACARS])
	assert.Equal(t, []types.ConnectionDescriptor{
		{Transport: types.TransportUDP, Host: "0.0.0.0", Port: 5555},
		{Transport: types.TransportTCP, Host: "remote", Port: 15550},
	}, conns[types.KindVDLM2])
	assert.Empty(t, conns[types.KindHFDL])
	assert.Empty(t, conns[types.KindIMSL])
	assert.Empty(t, conns[types.KindIRDM])
}
