// Package process turns raw decoder payloads into normalized messages,
// runs them through storage and alerting, enriches them, and hands the
// result to the real-time sink.
package process

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sdrhub/acarshub/internal/types"
)

// Format converts a raw decoded payload into the flat normalized
// record. An unrecognized kind or a payload without a usable timestamp
// yields skip (false).
func Format(kind types.Kind, payload map[string]any) (*types.Message, bool) {
	switch kind {
	case types.KindACARS:
		return formatFlat(kind, payload, false)
	case types.KindVDLM2:
		return formatVDLM2(payload)
	case types.KindHFDL:
		return formatHFDL(payload)
	case types.KindIMSL:
		return formatFlat(kind, payload, false)
	case types.KindIRDM:
		// Iridium feeds ship millisecond timestamps.
		return formatFlat(kind, payload, true)
	}
	return nil, false
}

// formatFlat handles the decoders that emit top-level fields the way
// acarsdec does.
func formatFlat(kind types.Kind, p map[string]any, millis bool) (*types.Message, bool) {
	ts, ok := timestampOf(p, "timestamp", "time")
	if !ok {
		return nil, false
	}
	if millis && ts > 1e12 {
		ts /= 1e3
	}
	m := &types.Message{
		Kind:      kind,
		Timestamp: ts,
		StationID: str(p, "station_id"),
		Text:      str(p, "text"),
		Label:     str(p, "label"),
		BlockID:   str(p, "block_id"),
		MsgNo:     str(p, "msgno"),
		Mode:      str(p, "mode"),
		Ack:       strOrBool(p, "ack"),
		Flight:    str(p, "flight"),
		Tail:      str(p, "tail"),
		ICAO:      hexOf(p, "icao"),
		Depa:      str(p, "depa"),
		Dsta:      str(p, "dsta"),
		Freq:      freqString(p["freq"], 1),
		Level:     levelString(p["level"]),
		ToAddr:    str(p, "toaddr"),
		FromAddr:  str(p, "fromaddr"),
		Response:  strOrBool(p, "is_response"),
		OnGround:  strOrBool(p, "is_onground"),
		Error:     int(num(p, "error")),
		ETA:       str(p, "eta"),
		GateOut:   str(p, "gtout"),
		GateIn:    str(p, "gtin"),
		WheelOff:  str(p, "wloff"),
		WheelOn:   str(p, "wlon"),
		Lat:       numString(p, "lat"),
		Lon:       numString(p, "lon"),
		Alt:       numString(p, "alt"),
		Data:      str(p, "data"),
		Libacars:  str(p, "libacars"),
	}
	return m, true
}

// formatVDLM2 unwraps the dumpvdl2 envelope: fields live under "vdl2",
// the timestamp under "t", and the ACARS payload (when present) under
// "avlc.acars". Frequencies arrive in Hz.
func formatVDLM2(p map[string]any) (*types.Message, bool) {
	v, ok := obj(p, "vdl2")
	if !ok {
		return nil, false
	}
	t, ok := obj(v, "t")
	if !ok {
		return nil, false
	}
	sec, ok := timestampOf(t, "sec")
	if !ok {
		return nil, false
	}

	m := &types.Message{
		Kind:      types.KindVDLM2,
		Timestamp: sec + num(t, "usec")/1e6,
		StationID: str(v, "station"),
		Freq:      freqString(v["freq"], 1e6),
		Level:     levelString(v["sig_level"]),
	}
	if avlc, ok := obj(v, "avlc"); ok {
		if src, ok := obj(avlc, "src"); ok {
			m.ICAO = hexOf(src, "addr")
		}
		if ac, ok := obj(avlc, "acars"); ok {
			mergeACARSBody(m, ac)
		}
	}
	return m, true
}

// formatHFDL unwraps the dumphfdl envelope. The ACARS body, when one
// exists, is nested under either spdu or lpdu.
func formatHFDL(p map[string]any) (*types.Message, bool) {
	h, ok := obj(p, "hfdl")
	if !ok {
		return nil, false
	}
	t, ok := obj(h, "t")
	if !ok {
		return nil, false
	}
	sec, ok := timestampOf(t, "sec")
	if !ok {
		return nil, false
	}

	m := &types.Message{
		Kind:      types.KindHFDL,
		Timestamp: sec + num(t, "usec")/1e6,
		StationID: str(h, "station"),
		Freq:      freqString(h["freq"], 1e6),
		Level:     levelString(h["sig_level"]),
	}
	if lpdu, ok := obj(h, "lpdu"); ok {
		if hfnpdu, ok := obj(lpdu, "hfnpdu"); ok {
			if ac, ok := obj(hfnpdu, "acars"); ok {
				mergeACARSBody(m, ac)
			}
		}
	}
	return m, true
}

// mergeACARSBody copies the common ACARS fields out of a nested body.
func mergeACARSBody(m *types.Message, ac map[string]any) {
	m.Text = str(ac, "msg_text")
	if m.Text == "" {
		m.Text = str(ac, "text")
	}
	m.Label = str(ac, "label")
	m.BlockID = str(ac, "blk_id")
	m.MsgNo = str(ac, "msg_num")
	if m.MsgNo == "" {
		m.MsgNo = str(ac, "msgno")
	}
	m.Ack = strOrBool(ac, "ack")
	m.Mode = str(ac, "mode")
	m.Flight = str(ac, "flight")
	m.Tail = strings.TrimLeft(str(ac, "reg"), ".")
	if m.Tail == "" {
		m.Tail = str(ac, "tail")
	}
	if arinc, ok := obj(ac, "arinc622"); ok {
		m.Depa = str(arinc, "depa")
		m.Dsta = str(arinc, "dsta")
		m.ETA = str(arinc, "eta")
	}
}

// freqString renders a frequency as the canonical zero-padded string:
// MHz with three decimals, padded to 7 characters ("131.550").
func freqString(v any, divisor float64) string {
	f, ok := toFloat(v)
	if !ok {
		if s, isStr := v.(string); isStr && s != "" {
			return padFreq(s)
		}
		return ""
	}
	if divisor > 1 {
		f /= divisor
	}
	return padFreq(strconv.FormatFloat(f, 'f', 3, 64))
}

func padFreq(s string) string {
	if !strings.Contains(s, ".") {
		s += "."
	}
	for len(s) < 7 {
		s += "0"
	}
	return s
}

func levelString(v any) string {
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// hexOf renders a numeric ICAO address as upper-case hex; string
// values pass through upper-cased.
func hexOf(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.ToUpper(v)
	case float64:
		return strings.ToUpper(strconv.FormatInt(int64(v), 16))
	}
	return ""
}

func obj(p map[string]any, key string) (map[string]any, bool) {
	v, ok := p[key].(map[string]any)
	return v, ok
}

func str(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// strOrBool renders fields that some decoders emit as booleans and
// others as strings.
func strOrBool(p map[string]any, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func num(p map[string]any, key string) float64 {
	f, _ := toFloat(p[key])
	return f
}

func numString(p map[string]any, key string) string {
	if f, ok := toFloat(p[key]); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return str(p, key)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// timestampOf finds the first usable numeric timestamp among keys.
func timestampOf(p map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := toFloat(p[k]); ok && f > 0 {
			return f, true
		}
	}
	return 0, false
}

// describePayload is used in debug logs when a payload is skipped.
func describePayload(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return fmt.Sprintf("keys=%v", keys)
}
