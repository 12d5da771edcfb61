// Package signals implements the ingest pipeline (C3+C4): fetcher adapters,
// the dedup gate, the quality filter (internal/signals/filter), and the
// scorer (internal/signals/scoring).
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/signals/filter"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
)

// Store is the persistence capability the pipeline needs: looking up
// existing signals for dedup and inserting new ones.
type Store interface {
	Exists(ctx context.Context, dedupKey string) (bool, error)
	Insert(ctx context.Context, signal domain.Signal) error
}

// Pipeline runs fetch -> transform -> dedup -> filter -> insert for every
// configured fetcher, once per ingest tick. Scoring is not part of it:
// scheduler.ScoreJob scores the PENDING signals it leaves behind.
type Pipeline struct {
	fetchers []domain.Fetcher
	store    Store
	log      zerolog.Logger
}

// New creates an ingest pipeline over the given fetchers and store.
func New(fetchers []domain.Fetcher, store Store, log zerolog.Logger) *Pipeline {
	return &Pipeline{fetchers: fetchers, store: store, log: log.With().Str("component", "signals").Logger()}
}

// IngestResult summarizes one run of Run across all fetchers.
type IngestResult struct {
	Fetched  int
	Deduped  int
	Rejected int
	Inserted int
}

// Run fetches recent records from every configured source, transforms,
// dedups, filters, and persists every surviving candidate as a PENDING
// signal. Rejections and dedup hits are counted, not treated as errors.
func (p *Pipeline) Run(ctx context.Context) (IngestResult, error) {
	var result IngestResult

	for _, fetcher := range p.fetchers {
		raws, err := fetcher.FetchRecent(ctx)
		if err != nil {
			p.log.Warn().Err(err).Str("source", string(fetcher.Source())).Msg("fetch failed, skipping source")
			continue
		}

		for _, raw := range raws {
			result.Fetched++

			candidate, err := fetcher.Transform(raw)
			if err != nil {
				p.log.Warn().Err(err).Str("source", string(fetcher.Source())).Msg("transform failed, skipping record")
				continue
			}

			signal := candidateToSignal(candidate)

			exists, err := p.store.Exists(ctx, signal.DedupKey())
			if err != nil {
				return result, fmt.Errorf("dedup lookup failed: %w", err)
			}
			if exists {
				result.Deduped++
				continue
			}

			if reason, rejected := filter.Reject(signal, nil); rejected {
				signal.Status = domain.SignalRejected
				result.Rejected++
				p.log.Debug().Str("symbol", signal.Symbol).Str("reason", reason).Msg("signal rejected by quality filter")
				if err := p.store.Insert(ctx, signal); err != nil {
					return result, fmt.Errorf("failed to persist rejected signal: %w", err)
				}
				continue
			}

			signal.Status = domain.SignalPending
			if err := p.store.Insert(ctx, signal); err != nil {
				return result, fmt.Errorf("failed to persist signal: %w", err)
			}
			result.Inserted++
		}
	}

	return result, nil
}

func candidateToSignal(c domain.SignalCandidate) domain.Signal {
	var shares float64
	if c.Shares != nil {
		shares = *c.Shares
	}
	var price money.Decimal
	if c.Price != nil {
		price = *c.Price
	}

	return domain.Signal{
		SignalID:         domain.NewSignalID(c.Source, c.Symbol, c.TransactionDate, c.FilerName),
		Source:           c.Source,
		Symbol:           c.Symbol,
		Direction:        c.Direction,
		FilerName:        c.FilerName,
		FilerID:          c.FilerID,
		TransactionDate:  c.TransactionDate,
		FilingDate:       c.FilingDate,
		DiscoveredAt:     time.Now().UTC(),
		TransactionValue: c.TransactionValue,
		Shares:           shares,
		Price:            price,
	}
}
