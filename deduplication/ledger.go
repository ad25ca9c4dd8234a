package deduplication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"listingwatch/metrics"
	"listingwatch/types"

	"go.uber.org/zap"
)

// Hash returns the identity hash of a candidate
func Hash(c types.Candidate) string {
	return types.GenerateID(c.Title, c.Date, c.URL)
}

// document is the persisted form of the ledger
type document struct {
	Hashes      []string `json:"hashes"`
	LastUpdated string   `json:"last_updated"`
}

// Ledger is the append-only set of identity hashes already alerted on.
// Every MarkSeen persists the whole set before returning.
type Ledger struct {
	mu          sync.RWMutex
	store       Store
	logger      *zap.Logger
	seen        map[string]struct{}
	lastUpdated time.Time
	now         func() time.Time
}

// LoadLedger reads the ledger from store. A missing, unreadable or malformed
// document yields an empty ledger; it is never an error.
func LoadLedger(ctx context.Context, store Store, logger *zap.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logger.Named("ledger"),
		seen:   make(map[string]struct{}),
		now:    time.Now,
	}

	data, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		l.logger.Info("No ledger found, starting empty", zap.String("backend", store.Name()))
		return l
	case err != nil:
		l.logger.Warn("Failed to read ledger, starting empty", zap.String("backend", store.Name()), zap.Error(err))
		return l
	}

	doc, err := decode(data)
	if err != nil {
		l.logger.Warn("Ledger is corrupt, starting empty", zap.String("backend", store.Name()), zap.Error(err))
		return l
	}
	for _, h := range doc.Hashes {
		l.seen[h] = struct{}{}
	}
	l.lastUpdated = parseTimestamp(doc.LastUpdated)

	metrics.LedgerSize.Set(float64(len(l.seen)))
	l.logger.Info("Loaded ledger", zap.String("backend", store.Name()), zap.Int("hashes", len(l.seen)))
	return l
}

// IsSeen reports whether hash has already been recorded
func (l *Ledger) IsSeen(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[hash]
	return ok
}

// MarkSeen records hash and persists the ledger. Persist failures are logged
// and counted; the in-memory set keeps the hash either way.
func (l *Ledger) MarkSeen(ctx context.Context, hash string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[hash]; ok {
		return
	}
	l.seen[hash] = struct{}{}
	l.lastUpdated = l.now()
	metrics.LedgerSize.Set(float64(len(l.seen)))

	if err := l.persistLocked(ctx); err != nil {
		metrics.LedgerWritesTotal.WithLabelValues(l.store.Name(), metrics.StatusError).Inc()
		l.logger.Error("Failed to persist ledger", zap.String("hash", hash), zap.Error(err))
		return
	}
	metrics.LedgerWritesTotal.WithLabelValues(l.store.Name(), metrics.StatusSuccess).Inc()
}

// Len returns the number of recorded hashes
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// LastUpdated returns the time of the last recorded hash, zero if unknown
func (l *Ledger) LastUpdated() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastUpdated
}

// Hashes returns the recorded hashes in sorted order
func (l *Ledger) Hashes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked()
}

// Backend names the store holding the ledger
func (l *Ledger) Backend() string {
	return l.store.Name()
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	doc := document{
		Hashes:      l.sortedLocked(),
		LastUpdated: l.lastUpdated.Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return l.store.Save(ctx, data)
}

func (l *Ledger) sortedLocked() []string {
	out := make([]string, 0, len(l.seen))
	for h := range l.seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func decode(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// parseTimestamp accepts RFC3339 and the offset-less ISO form older ledgers carry
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
