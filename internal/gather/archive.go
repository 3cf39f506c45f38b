package gather

import (
	"context"
	"fmt"
	"sort"

	"quantsim/internal/domain"
	"quantsim/internal/store"
)

// Compile-time interface check.
var _ Feed = (*ArchiveFeed)(nil)

// ArchiveFeed replays archived samples. History returns everything archived
// within Range regardless of the requested interval and span; there is no
// live price.
type ArchiveFeed struct {
	store store.SampleStore
	Range DateRange
}

// NewArchiveFeed creates an ArchiveFeed over samples archived in s within r.
func NewArchiveFeed(s store.SampleStore, r DateRange) *ArchiveFeed {
	return &ArchiveFeed{store: s, Range: r}
}

// History returns the archived samples in Range, ordered by timestamp.
func (a *ArchiveFeed) History(ctx context.Context, symbol string, _ Interval, _ Span) ([]domain.PriceSample, error) {
	samples, err := a.store.ReadSamples(ctx, symbol, a.Range.Start, a.Range.End)
	if err != nil {
		return nil, fmt.Errorf("reading archived samples for %s: %w", symbol, err)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}

// Current always fails with ErrNoLiveData.
func (a *ArchiveFeed) Current(_ context.Context, _ string) (domain.PriceSample, error) {
	return domain.PriceSample{}, ErrNoLiveData
}
