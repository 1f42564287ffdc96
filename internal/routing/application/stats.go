package application

import (
	"sync/atomic"

	"github.com/davicafu/orderrouter/internal/routing/domain"
)

// Stats cuenta los mensajes por resultado. Seguro para uso concurrente.
type Stats struct {
	matched         atomic.Int64
	unmatched       atomic.Int64
	extractionError atomic.Int64
	duplicates      atomic.Int64
	publishFailures atomic.Int64
}

type StatsSnapshot struct {
	Matched         int64 `json:"matched"`
	Unmatched       int64 `json:"unmatched"`
	ExtractionError int64 `json:"extractionError"`
	Duplicates      int64 `json:"duplicates"`
	PublishFailures int64 `json:"publishFailures"`
}

func (s *Stats) recordOutcome(o domain.Outcome) {
	switch o {
	case domain.OutcomeMatched:
		s.matched.Add(1)
	case domain.OutcomeUnmatched:
		s.unmatched.Add(1)
	case domain.OutcomeExtractionError:
		s.extractionError.Add(1)
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Matched:         s.matched.Load(),
		Unmatched:       s.unmatched.Load(),
		ExtractionError: s.extractionError.Load(),
		Duplicates:      s.duplicates.Load(),
		PublishFailures: s.publishFailures.Load(),
	}
}
