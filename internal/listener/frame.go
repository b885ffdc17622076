package listener

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// splitSegments breaks one frame into candidate JSON object strings.
// Decoders occasionally concatenate objects back-to-back in a single
// write, so "}{" is rewritten to "}\n{" before splitting on newlines.
func splitSegments(frame string) []string {
	frame = strings.TrimSpace(frame)
	if frame == "" {
		return nil
	}
	frame = strings.ReplaceAll(frame, "}{", "}\n{")
	parts := strings.Split(frame, "\n")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeFrame parses every JSON object in a frame and hands the decoded
// payloads to the events sink. A segment that fails to parse is dropped
// at debug level without affecting its siblings.
func decodeFrame(kind types.Kind, frame string, ev Events, logger zerolog.Logger) {
	for _, segment := range splitSegments(frame) {
		var payload map[string]any
		if err := json.UnmarshalFromString(segment, &payload); err != nil {
			logger.Debug().
				Err(err).
				Str("kind", string(kind)).
				Int("segment_len", len(segment)).
				Msg("Dropping unparseable frame segment")
			continue
		}
		ev.message(kind, payload)
	}
}
