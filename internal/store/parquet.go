package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"quantsim/internal/domain"
	"quantsim/internal/report"
)

// Compile-time interface checks.
var _ SampleStore = (*ParquetStore)(nil)
var _ ReportStore = (*ParquetStore)(nil)

// ParquetStore implements SampleStore using Parquet files on disk, and
// exports run reports as Parquet for offline plotting.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// SampleRecord is the Parquet schema for archived price samples.
type SampleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
}

// EventRecord is the Parquet schema for exported trade events.
type EventRecord struct {
	RunID     string  `parquet:"run_id"`
	Engine    string  `parquet:"engine"`
	Rank      int32   `parquet:"rank"`
	Seq       int32   `parquet:"seq"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Amount    float64 `parquet:"amount"`
	IsSale    bool    `parquet:"is_sale"`
}

// ReferenceRecord is the Parquet schema for the normalized asset curve.
type ReferenceRecord struct {
	RunID     string  `parquet:"run_id"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
}

// ---------------------------------------------------------------------------
// SampleStore implementation
// ---------------------------------------------------------------------------

// WriteSamples writes samples to Parquet files organized by symbol and UTC
// date. Each symbol+date combination produces a separate file at:
//
//	<DataDir>/samples/<SYMBOL>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteSamples(_ context.Context, symbol string, samples []domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	groups := make(map[string][]SampleRecord)
	for _, smp := range samples {
		date := smp.Timestamp.UTC().Format("2006-01-02")
		groups[date] = append(groups[date], SampleRecord{
			Symbol:    strings.ToUpper(symbol),
			Timestamp: smp.Timestamp.UnixMilli(),
			Price:     smp.Price,
		})
	}

	for date, records := range groups {
		t, _ := time.Parse("2006-01-02", date)
		path := s.samplePath(symbol, t)

		// Read existing records to merge.
		existing, _ := readParquetFile[SampleRecord](path)
		merged := mergeSampleRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing samples for %s/%s: %w", symbol, date, err)
		}
	}
	return nil
}

// ReadSamples reads samples from Parquet files for the given symbol and time
// range.
func (s *ParquetStore) ReadSamples(_ context.Context, symbol string, start, end time.Time) ([]domain.PriceSample, error) {
	var samples []domain.PriceSample
	first := utcDate(start)
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[SampleRecord](s.samplePath(symbol, d))
		if err != nil {
			// No file for this day.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if !ts.Before(start) && !ts.After(end) {
				samples = append(samples, domain.PriceSample{Price: r.Price, Timestamp: ts})
			}
		}
	}
	return samples, nil
}

// ListSymbols lists all symbols that have archived samples. Symbols are
// returned in their on-disk form, with "/" replaced by "-".
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "samples"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// SampleRange returns the first and last archived sample times for symbol.
// ok is false when nothing is archived.
func (s *ParquetStore) SampleRange(symbol string) (first, last time.Time, ok bool) {
	dir := filepath.Dir(s.samplePath(symbol, time.Time{}))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	var days []string
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".parquet") {
			days = append(days, strings.TrimSuffix(name, ".parquet"))
		}
	}
	if len(days) == 0 {
		return time.Time{}, time.Time{}, false
	}
	sort.Strings(days)
	first, err1 := time.Parse("2006-01-02", days[0])
	lastDay, err2 := time.Parse("2006-01-02", days[len(days)-1])
	if err1 != nil || err2 != nil {
		return time.Time{}, time.Time{}, false
	}
	return first, lastDay.Add(24*time.Hour - time.Millisecond), true
}

// ---------------------------------------------------------------------------
// ReportStore implementation
// ---------------------------------------------------------------------------

// SaveReport exports the run's trade events and reference curve to:
//
//	<DataDir>/runs/<RUN_ID>/events.parquet
//	<DataDir>/runs/<RUN_ID>/reference.parquet
func (s *ParquetStore) SaveReport(_ context.Context, r *report.Report) error {
	var events []EventRecord
	for _, res := range r.Results {
		for i, ev := range res.Events {
			events = append(events, EventRecord{
				RunID:     r.RunID,
				Engine:    res.Summary.Name,
				Rank:      int32(res.Rank),
				Seq:       int32(i),
				Timestamp: ev.Timestamp.UnixMilli(),
				Amount:    ev.Amount,
				IsSale:    ev.IsSale,
			})
		}
	}
	if err := writeParquetFile(s.runPath(r.RunID, "events"), events); err != nil {
		return fmt.Errorf("writing events for run %s: %w", r.RunID, err)
	}

	ref := make([]ReferenceRecord, len(r.Reference))
	for i, p := range r.Reference {
		ref[i] = ReferenceRecord{RunID: r.RunID, Timestamp: p.Timestamp.UnixMilli(), Price: p.Price}
	}
	if err := writeParquetFile(s.runPath(r.RunID, "reference"), ref); err != nil {
		return fmt.Errorf("writing reference curve for run %s: %w", r.RunID, err)
	}
	return nil
}

// ReadEvents reads the exported trade events of a run.
func (s *ParquetStore) ReadEvents(runID string) ([]EventRecord, error) {
	return readParquetFile[EventRecord](s.runPath(runID, "events"))
}

// ReadReference reads the exported reference curve of a run.
func (s *ParquetStore) ReadReference(runID string) ([]domain.PriceSample, error) {
	records, err := readParquetFile[ReferenceRecord](s.runPath(runID, "reference"))
	if err != nil {
		return nil, err
	}
	out := make([]domain.PriceSample, len(records))
	for i, r := range records {
		out[i] = domain.PriceSample{Price: r.Price, Timestamp: time.UnixMilli(r.Timestamp)}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// samplePath returns the filesystem path for a sample Parquet file.
// Layout: <dataDir>/samples/<SYMBOL>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) samplePath(symbol string, t time.Time) string {
	date := t.UTC().Format("2006-01-02")
	return filepath.Join(s.DataDir, "samples", symbolDir(symbol), date+".parquet")
}

// runPath returns the filesystem path for a run export file.
// Layout: <dataDir>/runs/<RUN_ID>/<name>.parquet
func (s *ParquetStore) runPath(runID, name string) string {
	return filepath.Join(s.DataDir, "runs", runID, name+".parquet")
}

// symbolDir maps a symbol to a directory name. Crypto pairs like "BTC/USD"
// become "BTC-USD".
func symbolDir(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "-")
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeSampleRecords deduplicates sample records by timestamp, preferring
// new records over existing ones. Results are sorted by timestamp.
func mergeSampleRecords(existing, incoming []SampleRecord) []SampleRecord {
	seen := make(map[int64]SampleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]SampleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
