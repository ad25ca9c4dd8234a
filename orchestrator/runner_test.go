package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"listingwatch/config"
	"listingwatch/deduplication"
	"listingwatch/notifier"
	"listingwatch/sources"
	"listingwatch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	name    types.Source
	items   []types.Candidate
	err     error
	panic   bool
	block   chan struct{}
	onFetch func()
	fetched int
}

func (f *fakeSource) Name() types.Source { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]types.Candidate, error) {
	f.fetched++
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.block != nil {
		<-f.block
	}
	if f.panic {
		panic("parser exploded")
	}
	return f.items, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	name    string
	err     error
	events  []types.Event
	order   *[]string
	ctxErrs []error
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(ctx context.Context, e types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	if r.order != nil {
		*r.order = append(*r.order, r.name+":"+e.URL)
	}
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(k string) string {
		if k == "DATA_DIR" {
			return t.TempDir()
		}
		return ""
	})
	require.NoError(t, err)
	return cfg
}

func newTestRunner(cfg config.Config, srcs []sources.Source, notifiers []notifier.Notifier) *Runner {
	return NewRunner(cfg, Deps{
		Sources:   func(config.Config, *zap.Logger) []sources.Source { return srcs },
		Notifiers: func(context.Context, config.Config, *zap.Logger) []notifier.Notifier { return notifiers },
	}, zap.NewNop())
}

func TestRunDeliversNewEventsOnce(t *testing.T) {
	cfg := testConfig(t)
	hkex := &fakeSource{name: types.SourceHKEX, items: []types.Candidate{
		{Title: "Yonyou — PROSPECTUS filing", Date: "2024-05-01", URL: "http://x/1"},
		{Title: "Yonyou APPLICATION PROOF — PROSPECTUS", Date: "2024-05-01", URL: "http://x/2"},
	}}
	cninfo := &fakeSource{name: types.SourceCNINFO, items: []types.Candidate{
		{Title: "用友网络关于H股配售结果的公告", Date: "2024-05-02", URL: "http://c/1"},
		{Title: "用友网络关于招股说明书的公告", Date: "2024-05-02", URL: "http://c/2"},
	}}
	tg := &recordingNotifier{name: "telegram"}
	r := newTestRunner(cfg, []sources.Source{hkex, cninfo}, []notifier.Notifier{tg})

	summary, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Events, 2)
	assert.Equal(t, types.EventProspectus, summary.Events[0].EventType)
	assert.Equal(t, types.SourceCNINFO, summary.Events[1].Source)
	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, map[string]int{"HKEXnews": 2, "CNINFO": 2}, summary.Candidates)
	assert.Len(t, tg.events, 2)
	assert.Equal(t, StateDone, r.Status().GetState())

	// Second run over the same ledger file finds nothing new.
	summary, err = r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, summary.Events)
	assert.Len(t, tg.events, 2)

	info, err := InspectLedger(context.Background(), cfg, nil, zap.NewNop(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Count)
	assert.Equal(t, "file", info.Backend)
	assert.Len(t, info.Hashes, 2)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	cfg := testConfig(t)
	srcs := []sources.Source{
		&fakeSource{name: types.SourceHKEX, panic: true},
		&fakeSource{name: "BROKEN", err: errors.New("timeout")},
		&fakeSource{name: types.SourceCNINFO, items: []types.Candidate{
			{Title: "用友网络H股招股说明书", Date: "2024-05-02", URL: "http://c/3"},
		}},
	}
	tg := &recordingNotifier{name: "telegram"}
	r := newTestRunner(cfg, srcs, []notifier.Notifier{tg})

	summary, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Len(t, summary.Events, 1)
	assert.Contains(t, summary.SourceErrors["HKEXnews"], "panicked")
	assert.Contains(t, summary.SourceErrors["BROKEN"], "timeout")
}

func TestRunDeliveryOrderAndChannelIsolation(t *testing.T) {
	cfg := testConfig(t)
	var order []string
	failing := &recordingNotifier{name: "webhook", err: errors.New("502"), order: &order}
	ok := &recordingNotifier{name: "telegram", order: &order}
	src := &fakeSource{name: types.SourceHKEX, items: []types.Candidate{
		{Title: "Yonyou PROSPECTUS", Date: "2024-05-01", URL: "http://x/a"},
		{Title: "Yonyou PRICE RANGE", Date: "2024-05-01", URL: "http://x/b"},
	}}
	r := newTestRunner(cfg, []sources.Source{src}, []notifier.Notifier{failing, ok})

	summary, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"webhook:http://x/a", "telegram:http://x/a",
		"webhook:http://x/b", "telegram:http://x/b",
	}, order)
	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, 2, summary.Failed)
	assert.Len(t, ok.events, 2)
}

func TestRunTestModeBypassesSourcesAndLedger(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{name: types.SourceHKEX, panic: true}
	tg := &recordingNotifier{name: "telegram"}
	r := NewRunner(cfg, Deps{
		OpenStore: func(context.Context, config.Config) (deduplication.Store, error) {
			t.Fatal("ledger must not be opened in test mode")
			return nil, nil
		},
		Sources:   func(config.Config, *zap.Logger) []sources.Source { return []sources.Source{src} },
		Notifiers: func(context.Context, config.Config, *zap.Logger) []notifier.Notifier { return []notifier.Notifier{tg} },
	}, zap.NewNop())

	summary, err := r.Run(context.Background(), RunOptions{Test: true})
	require.NoError(t, err)
	require.Len(t, tg.events, 1)
	assert.Equal(t, types.SourceTest, tg.events[0].Source)
	assert.Equal(t, types.ImportanceTest, tg.events[0].Importance)
	assert.True(t, summary.Test)
}

func TestRunLedgerSetupFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	r := NewRunner(cfg, Deps{
		OpenStore: func(context.Context, config.Config) (deduplication.Store, error) {
			return nil, errors.New("unknown ledger backend")
		},
		Sources:   func(config.Config, *zap.Logger) []sources.Source { return nil },
		Notifiers: func(context.Context, config.Config, *zap.Logger) []notifier.Notifier { return nil },
	}, zap.NewNop())

	summary, err := r.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Equal(t, StateError, r.Status().GetState())
	assert.Contains(t, summary.Error, "unknown ledger backend")
	assert.Contains(t, r.Status().GetStatus().Error, "unknown ledger backend")
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	cfg := testConfig(t)
	block := make(chan struct{})
	src := &fakeSource{name: types.SourceHKEX, block: block}
	r := newTestRunner(cfg, []sources.Source{src}, nil)

	runID, err := r.RunAsync(RunOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.Eventually(t, func() bool { return r.Status().GetState() == StateRunSource }, time.Second, 5*time.Millisecond)
	_, err = r.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = r.RunAsync(RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(block)
	require.Eventually(t, func() bool { return !r.Running() }, time.Second, 5*time.Millisecond)
	last := r.Status().GetStatus().LastRun
	require.NotNil(t, last)
	assert.Equal(t, runID, last.RunID)
}

func TestRunCancelledMidRunStillDeliversMarkedEvents(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &fakeSource{name: types.SourceHKEX, items: []types.Candidate{
		{Title: "Yonyou — PROSPECTUS filing", Date: "2024-05-01", URL: "http://x/1"},
	}}
	cancelling := &fakeSource{name: types.SourceCNINFO, onFetch: cancel}
	last := &fakeSource{name: "LATE", items: []types.Candidate{
		{Title: "Yonyou PRICE RANGE", Date: "2024-05-01", URL: "http://x/2"},
	}}
	tg := &recordingNotifier{name: "telegram"}
	r := newTestRunner(cfg, []sources.Source{first, cancelling, last}, []notifier.Notifier{tg})

	summary, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Events, 1)
	assert.Equal(t, 1, summary.Delivered)
	require.Len(t, tg.events, 1)
	assert.Equal(t, "http://x/1", tg.events[0].URL)
	assert.Equal(t, []error{nil}, tg.ctxErrs)
	assert.Equal(t, 0, last.fetched)
	assert.Contains(t, summary.SourceErrors["LATE"], "context canceled")

	// The marked event is not re-sent, and the skipped source is picked up.
	summary, err = r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, summary.Events, 1)
	assert.Equal(t, "http://x/2", summary.Events[0].URL)
	assert.Len(t, tg.events, 2)
}

type closingStore struct {
	deduplication.Store
	closed int
}

func (c *closingStore) Close() error {
	c.closed++
	return nil
}

func TestLedgerStoreIsClosed(t *testing.T) {
	cfg := testConfig(t)
	var opened []*closingStore
	openStore := func(ctx context.Context, cfg config.Config) (deduplication.Store, error) {
		s := &closingStore{Store: deduplication.NewFileStore(cfg.Ledger.FilePath)}
		opened = append(opened, s)
		return s, nil
	}

	src := &fakeSource{name: types.SourceHKEX, items: []types.Candidate{
		{Title: "Yonyou PROSPECTUS", Date: "2024-05-01", URL: "http://x/c"},
	}}
	r := NewRunner(cfg, Deps{
		OpenStore: openStore,
		Sources:   func(config.Config, *zap.Logger) []sources.Source { return []sources.Source{src} },
		Notifiers: func(context.Context, config.Config, *zap.Logger) []notifier.Notifier { return nil },
	}, zap.NewNop())

	_, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.Equal(t, 1, opened[0].closed)

	info, err := InspectLedger(context.Background(), cfg, openStore, zap.NewNop(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Count)
	require.Len(t, opened, 2)
	assert.Equal(t, 1, opened[1].closed)
}
