package csvsink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"dailyTrader/internal/domain"
)

// Header is the column layout of the decision log.
var Header = []string{
	"id", "timestamp", "symbol", "mode", "proposed_action", "executed_action",
	"outcome", "reason", "market_regime", "volatility", "decision_space", "features",
}

// Sink appends decision samples to a CSV stream. It implements ports.DecisionSink.
type Sink struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// Open appends to the file at path, writing the header when the file is new.
func Open(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat decision log %s: %w", path, err)
	}
	s := &Sink{w: csv.NewWriter(f), closer: f}
	if info.Size() == 0 {
		if err := s.writeRow(Header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// New writes to w, header first.
func New(w io.Writer) (*Sink, error) {
	s := &Sink{w: csv.NewWriter(w)}
	if err := s.writeRow(Header); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write decision log row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Append writes one sample and flushes.
func (s *Sink) Append(ctx context.Context, sample *domain.DecisionSample) error {
	space := make([]string, len(sample.DecisionSpace))
	for i, a := range sample.DecisionSpace {
		space[i] = string(a)
	}
	row := []string{
		sample.ID,
		sample.Timestamp.UTC().Format(time.RFC3339Nano),
		sample.Symbol,
		string(sample.Mode),
		string(sample.ProposedAction),
		string(sample.ExecutedAction),
		string(sample.Outcome),
		sample.Reason,
		string(sample.MarketRegime),
		string(sample.Volatility),
		strings.Join(space, "|"),
		FormatFeatures(sample.Features),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRow(row)
}

// Close closes the underlying file, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if s.closer == nil {
		return s.w.Error()
	}
	return s.closer.Close()
}

// FormatFeatures renders features as key=value pairs in key order.
func FormatFeatures(f map[string]float64) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(f[k], 'g', -1, 64)
	}
	return strings.Join(parts, ";")
}
