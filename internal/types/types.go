// Package types holds the decoder-kind enumeration and the normalized
// message record shared by every stage of the pipeline.
package types

// Kind identifies the radio protocol a message was decoded from.
type Kind string

const (
	KindACARS Kind = "ACARS"
	KindVDLM2 Kind = "VDLM2"
	KindHFDL  Kind = "HFDL"
	KindIMSL  Kind = "IMSL"
	KindIRDM  Kind = "IRDM"
)

// AllKinds lists every decoder kind in a stable order. Storage table
// names, per-kind counters, and the time-series columns iterate this.
var AllKinds = []Kind{KindACARS, KindVDLM2, KindHFDL, KindIMSL, KindIRDM}

// Valid reports whether k is one of the known decoder kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindACARS, KindVDLM2, KindHFDL, KindIMSL, KindIRDM:
		return true
	}
	return false
}

// DefaultPort returns the conventional listen port for a decoder kind.
// These match the ports the upstream decoders ship with; ACARS (5550)
// and VDL-M2 (5555) deliberately differ.
func (k Kind) DefaultPort() int {
	switch k {
	case KindACARS:
		return 5550
	case KindVDLM2:
		return 5555
	case KindHFDL:
		return 5556
	case KindIMSL:
		return 5557
	case KindIRDM:
		return 5558
	}
	return 0
}

// Transport is the wire transport a listener speaks.
type Transport string

const (
	TransportUDP Transport = "udp"
	TransportTCP Transport = "tcp"
	TransportZMQ Transport = "zmq"
)

// ConnectionDescriptor is one parsed endpoint for a decoder kind.
// A kind with zero descriptors is disabled.
type ConnectionDescriptor struct {
	Transport Transport
	Host      string
	Port      int
}

// LogLevel is the configured minimum log level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat selects the log output encoding.
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatPretty LogFormat = "pretty"
)
