package process

import (
	"github.com/rs/zerolog"

	"github.com/sdrhub/acarshub/internal/events"
	"github.com/sdrhub/acarshub/internal/monitoring"
	"github.com/sdrhub/acarshub/internal/queue"
	"github.com/sdrhub/acarshub/internal/storage"
)

// Processor consumes queue items in arrival order and runs the
// per-message stage: format, persist (with alert matching), enrich,
// broadcast. Every step is best-effort: a failure logs and moves on,
// never stopping the queue consumer.
type Processor struct {
	store  *storage.Store
	sink   events.Sink
	logger zerolog.Logger
}

// New creates a processor writing to store and broadcasting to sink.
func New(store *storage.Store, sink events.Sink, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		sink:   sink,
		logger: logger.With().Str("component", "processor").Logger(),
	}
}

// Consume handles one queue item. It is the queue's single consumer.
func (p *Processor) Consume(item queue.Item) {
	m, ok := Format(item.Kind, item.Payload)
	if !ok {
		p.logger.Debug().
			Str("kind", string(item.Kind)).
			Str("payload", describePayload(item.Payload)).
			Msg("Skipping unformattable payload")
		monitoring.MessagesSkipped.Inc()
		return
	}

	res, err := p.store.AddMessage(m)
	if err != nil {
		p.logger.Error().Err(err).Str("kind", string(item.Kind)).Msg("Message persist failed")
		monitoring.StorageErrors.Inc()
		return
	}

	m.UID = res.UID
	m.Matched = res.Matched
	m.MatchedText = res.MatchedText
	m.MatchedICAO = res.MatchedICAO
	m.MatchedTail = res.MatchedTail
	m.MatchedFlight = res.MatchedFlight

	monitoring.MessagesProcessed.WithLabelValues(string(item.Kind)).Inc()
	if res.Saved {
		monitoring.MessagesSaved.Inc()
	}
	if res.Matched {
		monitoring.AlertMatches.Add(float64(len(res.MatchedText) + len(res.MatchedICAO) +
			len(res.MatchedTail) + len(res.MatchedFlight)))
	}

	p.sink.Emit("message", Enrich(m))

	if m.StationID != "" {
		added, err := p.store.AddStationID(m.StationID)
		if err != nil {
			p.logger.Error().Err(err).Msg("Station id persist failed")
			return
		}
		if added {
			ids, err := p.store.StationIDs()
			if err != nil {
				p.logger.Error().Err(err).Msg("Station id read failed")
				return
			}
			p.sink.Emit("station_ids", ids)
		}
	}
}
