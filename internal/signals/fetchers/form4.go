package fetchers

import (
	"context"

	"github.com/aristath/signalcycle/internal/domain"
)

// Form4 fetches SEC Form 4 insider-transaction filings.
type Form4 struct{}

// NewForm4 creates the Form 4 fetcher stub.
func NewForm4() *Form4 { return &Form4{} }

var _ domain.Fetcher = (*Form4)(nil)

func (f *Form4) Source() domain.SignalSource { return domain.SourceInsiderForm4 }

func (f *Form4) FetchRecent(ctx context.Context) ([]domain.RawSignalRecord, error) {
	return nil, nil
}

func (f *Form4) Transform(raw domain.RawSignalRecord) (domain.SignalCandidate, error) {
	return transformGeneric(raw, domain.SourceInsiderForm4)
}
