package config

import (
	"net"
	"strconv"
	"strings"

	"github.com/sdrhub/acarshub/internal/types"
)

// ParseConnections parses a comma-separated decoder connection string
// into descriptors. Each token is either a bare transport name ("udp",
// "tcp", "zmq"), which binds 0.0.0.0 on the kind's default port, or a
// full "<scheme>://<host>:<port>" endpoint.
//
// Malformed tokens and out-of-range ports are skipped; the remaining
// tokens still parse. An empty or whitespace-only input yields nil.
func ParseConnections(raw string, kind types.Kind) []types.ConnectionDescriptor {
	var out []types.ConnectionDescriptor
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if d, ok := parseToken(token, kind); ok {
			out = append(out, d)
		}
	}
	return out
}

func parseToken(token string, kind types.Kind) (types.ConnectionDescriptor, bool) {
	// Bare transport: listen on all interfaces at the kind's port.
	if t, ok := parseTransport(token); ok {
		return types.ConnectionDescriptor{
			Transport: t,
			Host:      "0.0.0.0",
			Port:      kind.DefaultPort(),
		}, true
	}

	scheme, rest, found := strings.Cut(token, "://")
	if !found {
		return types.ConnectionDescriptor{}, false
	}
	t, ok := parseTransport(scheme)
	if !ok {
		return types.ConnectionDescriptor{}, false
	}
	host, portStr, err := net.SplitHostPort(rest)
	if err != nil || host == "" {
		return types.ConnectionDescriptor{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return types.ConnectionDescriptor{}, false
	}
	return types.ConnectionDescriptor{Transport: t, Host: host, Port: port}, true
}

func parseTransport(s string) (types.Transport, bool) {
	switch strings.ToLower(s) {
	case "udp":
		return types.TransportUDP, true
	case "tcp":
		return types.TransportTCP, true
	case "zmq":
		return types.TransportZMQ, true
	}
	return "", false
}
