package gather

import (
	"context"
	"log/slog"

	"quantsim/internal/domain"
	"quantsim/internal/store"
)

// Compile-time interface check.
var _ Feed = (*Recorder)(nil)

// Recorder wraps a Feed and archives every sample it returns. Archive
// failures are logged and never fail the read.
type Recorder struct {
	feed  Feed
	store store.SampleStore
	log   *slog.Logger
}

// NewRecorder creates a Recorder archiving samples from feed into s.
func NewRecorder(feed Feed, s store.SampleStore) *Recorder {
	return &Recorder{
		feed:  feed,
		store: s,
		log:   slog.Default().With("feed", "recorder"),
	}
}

// History reads from the wrapped feed and archives the result.
func (r *Recorder) History(ctx context.Context, symbol string, interval Interval, span Span) ([]domain.PriceSample, error) {
	samples, err := r.feed.History(ctx, symbol, interval, span)
	if err != nil {
		return nil, err
	}
	r.archive(ctx, symbol, samples)
	return samples, nil
}

// Current reads from the wrapped feed and archives the sample.
func (r *Recorder) Current(ctx context.Context, symbol string) (domain.PriceSample, error) {
	s, err := r.feed.Current(ctx, symbol)
	if err != nil {
		return domain.PriceSample{}, err
	}
	r.archive(ctx, symbol, []domain.PriceSample{s})
	return s, nil
}

func (r *Recorder) archive(ctx context.Context, symbol string, samples []domain.PriceSample) {
	if err := r.store.WriteSamples(ctx, symbol, samples); err != nil {
		r.log.Warn("archiving samples failed", "symbol", symbol, "samples", len(samples), "error", err)
	}
}
