package types

// Message is the flat, normalized record produced by the per-kind
// formatters. Every string field defaults to ""; queries treat absent
// and empty identically. Timestamp is seconds since epoch (floating
// point; some decoders report sub-second precision).
type Message struct {
	UID       string  `json:"uid,omitempty"`
	Kind      Kind    `json:"kind"`
	Timestamp float64 `json:"timestamp"`
	StationID string  `json:"station_id"`

	Text     string `json:"text"`
	Label    string `json:"label"`
	BlockID  string `json:"block_id"`
	MsgNo    string `json:"msgno"`
	Mode     string `json:"mode"`
	Ack      string `json:"ack"`
	Flight   string `json:"flight"`
	Tail     string `json:"tail"`
	ICAO     string `json:"icao"`
	Depa     string `json:"depa"`
	Dsta     string `json:"dsta"`
	Freq     string `json:"freq"`
	Level    string `json:"level"`
	ToAddr   string `json:"toaddr"`
	FromAddr string `json:"fromaddr"`
	Response string `json:"is_response"`
	OnGround string `json:"is_onground"`
	Error    int    `json:"error"`

	// ARINC-620 timing fields.
	ETA      string `json:"eta"`
	GateOut  string `json:"gtout"`
	GateIn   string `json:"gtin"`
	WheelOff string `json:"wloff"`
	WheelOn  string `json:"wlon"`

	Lat string `json:"lat"`
	Lon string `json:"lon"`
	Alt string `json:"alt"`

	// Upstream-decoded extras carried through verbatim.
	Data     string `json:"data"`
	Libacars string `json:"libacars"`

	// Alert metadata attached by the processor after matching; never
	// persisted on the messages table itself.
	Matched       bool     `json:"matched,omitempty"`
	MatchedText   []string `json:"matched_text,omitempty"`
	MatchedICAO   []string `json:"matched_icao,omitempty"`
	MatchedTail   []string `json:"matched_tail,omitempty"`
	MatchedFlight []string `json:"matched_flight,omitempty"`
}

// IsEmpty reports whether the message carries no payload worth keeping.
// Empty messages are counted but not persisted unless save-all is on.
func (m *Message) IsEmpty() bool {
	for _, f := range []string{
		m.Text, m.Data, m.Libacars, m.Dsta, m.Depa, m.ETA,
		m.GateOut, m.GateIn, m.WheelOff, m.WheelOn,
		m.Lat, m.Lon, m.Alt,
	} {
		if f != "" {
			return false
		}
	}
	return true
}
