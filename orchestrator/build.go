package orchestrator

import (
	"context"
	"time"

	"listingwatch/config"
	"listingwatch/deduplication"
	"listingwatch/notifier"
	"listingwatch/sources"

	"go.uber.org/zap"
)

// DefaultDeps wires the production stores, sources and channels
func DefaultDeps() Deps {
	return Deps{
		OpenStore: deduplication.OpenStore,
		Sources:   DefaultSources,
		Notifiers: notifier.Build,
	}
}

// DefaultSources returns HKEXnews then CNINFO, sharing one rate-limited fetcher
func DefaultSources(cfg config.Config, logger *zap.Logger) []sources.Source {
	fetcher := sources.NewFetcher(cfg.HTTP, logger)
	return []sources.Source{
		sources.NewHKEX(fetcher, cfg.Sources, cfg.HTTP.PageSize, logger),
		sources.NewCNINFO(fetcher, cfg.Sources, cfg.HTTP.PageSize, logger),
	}
}

// LedgerInfo summarizes the persisted ledger
type LedgerInfo struct {
	Backend     string    `json:"backend"`
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"last_updated"`
	Hashes      []string  `json:"hashes,omitempty"`
}

// InspectLedger loads the ledger read-only. withHashes includes the hash list.
func InspectLedger(ctx context.Context, cfg config.Config, openStore func(context.Context, config.Config) (deduplication.Store, error), logger *zap.Logger, withHashes bool) (LedgerInfo, error) {
	if openStore == nil {
		openStore = deduplication.OpenStore
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return LedgerInfo{}, err
	}
	defer closeStore(store, logger)

	ledger := deduplication.LoadLedger(ctx, store, logger)
	info := LedgerInfo{
		Backend:     ledger.Backend(),
		Count:       ledger.Len(),
		LastUpdated: ledger.LastUpdated(),
	}
	if withHashes {
		info.Hashes = ledger.Hashes()
	}
	return info, nil
}
