package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdrhub/acarshub/internal/types"
)

func TestParseConnectionsBareTransports(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind types.Kind
		want []types.ConnectionDescriptor
	}{
		{
			name: "bare udp uses the ACARS default port",
			raw:  "udp",
			kind: types.KindACARS,
			want: []types.ConnectionDescriptor{{Transport: types.TransportUDP, Host: "0.0.0.0", Port: 5550}},
		},
		{
			name: "bare udp for VDLM2 is port 5555, not 5550",
			raw:  "udp",
			kind: types.KindVDLM2,
			want: []types.ConnectionDescriptor{{Transport: types.TransportUDP, Host: "0.0.0.0", Port: 5555}},
		},
		{
			name: "bare tcp and zmq",
			raw:  "tcp,zmq",
			kind: types.KindHFDL,
			want: []types.ConnectionDescriptor{
				{Transport: types.TransportTCP, Host: "0.0.0.0", Port: 5556},
				{Transport: types.TransportZMQ, Host: "0.0.0.0", Port: 5556},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseConnections(tt.raw, tt.kind))
		})
	}
}

func TestParseConnectionsFullEndpoints(t *testing.T) {
	got := ParseConnections("udp, tcp://remote:15550", types.KindVDLM2)
	assert.Equal(t, []types.ConnectionDescriptor{
		{Transport: types.TransportUDP, Host: "0.0.0.0", Port: 5555},
		{Transport: types.TransportTCP, Host: "remote", Port: 15550},
	}, got)
}

func TestParseConnectionsSkipsMalformedTokens(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"unknown scheme", "http://host:80", 0},
		{"missing port", "tcp://host", 0},
		{"port zero", "tcp://host:0", 0},
		{"port out of range", "tcp://host:70000", 0},
		{"negative port", "tcp://host:-1", 0},
		{"garbage", "not a token", 0},
		{"bad token does not abort the rest", "bogus,udp,tcp://h:1", 2},
		{"empty input", "", 0},
		{"whitespace only", "   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ParseConnections(tt.raw, types.KindACARS), tt.want)
		})
	}
}

func TestParseConnectionsTrimsWhitespace(t *testing.T) {
	got := ParseConnections("  udp , tcp://h:9999  ", types.KindIRDM)
	assert.Equal(t, []types.ConnectionDescriptor{
		{Transport: types.TransportUDP, Host: "0.0.0.0", Port: 5558},
		{Transport: types.TransportTCP, Host: "h", Port: 9999},
	}, got)
}

func TestParseConnectionsPortBounds(t *testing.T) {
	assert.Len(t, ParseConnections("tcp://h:1", types.KindACARS), 1)
	assert.Len(t, ParseConnections("tcp://h:65535", types.KindACARS), 1)
	assert.Len(t, ParseConnections("tcp://h:65536", types.KindACARS), 0)
}
