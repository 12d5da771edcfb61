package fetchers

import (
	"context"

	"github.com/aristath/signalcycle/internal/domain"
)

// InsiderOther fetches non-Form4 insider activity (e.g. Form 3/5, 144s).
type InsiderOther struct{}

// NewInsiderOther creates the other-insider fetcher stub.
func NewInsiderOther() *InsiderOther { return &InsiderOther{} }

var _ domain.Fetcher = (*InsiderOther)(nil)

func (i *InsiderOther) Source() domain.SignalSource { return domain.SourceInsiderOther }

func (i *InsiderOther) FetchRecent(ctx context.Context) ([]domain.RawSignalRecord, error) {
	return nil, nil
}

func (i *InsiderOther) Transform(raw domain.RawSignalRecord) (domain.SignalCandidate, error) {
	return transformGeneric(raw, domain.SourceInsiderOther)
}
