package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdrhub/acarshub/internal/types"
)

func TestFormatACARSFlat(t *testing.T) {
	m, ok := Format(types.KindACARS, map[string]any{
		"timestamp":  1700000000.25,
		"station_id": "KSFO-1",
		"text":       "LDG RWY 28L",
		"label":      "H1",
		"tail":       "N12345",
		"flight":     "UAL123",
		"icao":       float64(0xA1B2C3),
		"freq":       131.55,
		"level":      -12.3,
		"error":      float64(0),
	})
	require.True(t, ok)
	assert.Equal(t, types.KindACARS, m.Kind)
	assert.Equal(t, 1700000000.25, m.Timestamp)
	assert.Equal(t, "KSFO-1", m.StationID)
	assert.Equal(t, "LDG RWY 28L", m.Text)
	assert.Equal(t, "A1B2C3", m.ICAO)
	assert.Equal(t, "131.550", m.Freq)
	assert.Equal(t, "-12.3", m.Level)
}

func TestFormatIRDMMillisecondTimestamps(t *testing.T) {
	m, ok := Format(types.KindIRDM, map[string]any{
		"timestamp": 1700000000250.0,
		"text":      "POS",
	})
	require.True(t, ok)
	assert.InDelta(t, 1700000000.25, m.Timestamp, 1e-6)

	// Already in seconds: left alone.
	m, ok = Format(types.KindIRDM, map[string]any{
		"timestamp": 1700000000.0,
		"text":      "POS",
	})
	require.True(t, ok)
	assert.Equal(t, 1700000000.0, m.Timestamp)
}

func TestFormatVDLM2Envelope(t *testing.T) {
	m, ok := Format(types.KindVDLM2, map[string]any{
		"vdl2": map[string]any{
			"t":         map[string]any{"sec": 1700000000.0, "usec": 500000.0},
			"station":   "EAST-1",
			"freq":      136975000.0,
			"sig_level": -21.7,
			"avlc": map[string]any{
				"src": map[string]any{"addr": "a1b2c3"},
				"acars": map[string]any{
					"msg_text": "OUT 1234",
					"label":    "QA",
					"reg":      ".N8560Z",
					"flight":   "DAL88",
				},
			},
		},
	})
	require.True(t, ok)
	assert.Equal(t, 1700000000.5, m.Timestamp)
	assert.Equal(t, "EAST-1", m.StationID)
	assert.Equal(t, "136.975", m.Freq, "Hz converts to padded MHz")
	assert.Equal(t, "A1B2C3", m.ICAO)
	assert.Equal(t, "OUT 1234", m.Text)
	assert.Equal(t, "N8560Z", m.Tail, "leading dot on reg is stripped")
	assert.Equal(t, "DAL88", m.Flight)
}

func TestFormatHFDLEnvelope(t *testing.T) {
	m, ok := Format(types.KindHFDL, map[string]any{
		"hfdl": map[string]any{
			"t":       map[string]any{"sec": 1700000000.0},
			"station": "4",
			"freq":    8912000.0,
			"lpdu": map[string]any{
				"hfnpdu": map[string]any{
					"acars": map[string]any{
						"msg_text": "ETA 0415",
						"arinc622": map[string]any{
							"depa": "KJFK",
							"dsta": "EGLL",
							"eta":  "0415",
						},
					},
				},
			},
		},
	})
	require.True(t, ok)
	assert.Equal(t, "8.91200", m.Freq)
	assert.Equal(t, "ETA 0415", m.Text)
	assert.Equal(t, "KJFK", m.Depa)
	assert.Equal(t, "EGLL", m.Dsta)
	assert.Equal(t, "0415", m.ETA)
}

func TestFormatSkipsUnusablePayloads(t *testing.T) {
	_, ok := Format(types.KindACARS, map[string]any{"text": "no timestamp"})
	assert.False(t, ok)

	_, ok = Format(types.KindVDLM2, map[string]any{"unrelated": true})
	assert.False(t, ok)

	_, ok = Format(types.Kind("bogus"), map[string]any{"timestamp": 1.0})
	assert.False(t, ok)
}

func TestFreqStringPadding(t *testing.T) {
	cases := map[string]struct {
		in      any
		divisor float64
		want    string
	}{
		"three decimals":   {131.55, 1, "131.550"},
		"hz to mhz":        {136975000.0, 1e6, "136.975"},
		"short pads":       {2.1, 1, "2.10000"},
		"string passthrou": {"131.550", 1, "131.550"},
		"missing":          {nil, 1, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, freqString(tc.in, tc.divisor))
		})
	}
}

func TestEnrichDecorations(t *testing.T) {
	e := Enrich(&types.Message{
		Kind:      types.KindHFDL,
		Flight:    "UAL123",
		StationID: "4",
		ToAddr:    "1091",
	})
	assert.Equal(t, "United Airlines", e.Airline)
	assert.Equal(t, "Riverhead, New York", e.GroundStation)
	assert.Equal(t, "443", e.ToAddrHex)

	// Unknown prefixes and non-numeric addresses pass through.
	e = Enrich(&types.Message{Kind: types.KindACARS, Flight: "ZZZ9", FromAddr: "GROUND"})
	assert.Empty(t, e.Airline)
	assert.Equal(t, "GROUND", e.FromAddrHex)
}
