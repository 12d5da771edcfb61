// Package fetchers holds one thin Fetcher adapter per signal source.
// Each returns canned/empty data: the real scrapers are out of scope
// per spec §1 non-goals; these exist so the pipeline has a concrete,
// wireable Fetcher for every source the scorer and filter understand.
package fetchers

import (
	"context"

	"github.com/aristath/signalcycle/internal/domain"
)

// Congressional fetches recent congressional trading disclosures.
type Congressional struct{}

// NewCongressional creates the congressional-disclosure fetcher stub.
func NewCongressional() *Congressional { return &Congressional{} }

var _ domain.Fetcher = (*Congressional)(nil)

func (c *Congressional) Source() domain.SignalSource { return domain.SourceCongressional }

// FetchRecent returns no records: wiring a real disclosure feed is
// outside this spec's scope.
func (c *Congressional) FetchRecent(ctx context.Context) ([]domain.RawSignalRecord, error) {
	return nil, nil
}

// Transform normalizes a raw congressional disclosure record.
func (c *Congressional) Transform(raw domain.RawSignalRecord) (domain.SignalCandidate, error) {
	return transformGeneric(raw, domain.SourceCongressional)
}
