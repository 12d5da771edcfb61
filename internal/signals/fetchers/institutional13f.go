package fetchers

import (
	"context"

	"github.com/aristath/signalcycle/internal/domain"
)

// Institutional13F fetches quarterly 13F institutional holdings changes.
type Institutional13F struct{}

// NewInstitutional13F creates the 13F fetcher stub.
func NewInstitutional13F() *Institutional13F { return &Institutional13F{} }

var _ domain.Fetcher = (*Institutional13F)(nil)

func (i *Institutional13F) Source() domain.SignalSource { return domain.SourceInstitutional }

func (i *Institutional13F) FetchRecent(ctx context.Context) ([]domain.RawSignalRecord, error) {
	return nil, nil
}

func (i *Institutional13F) Transform(raw domain.RawSignalRecord) (domain.SignalCandidate, error) {
	return transformGeneric(raw, domain.SourceInstitutional)
}
