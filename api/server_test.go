package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"listingwatch/config"
	"listingwatch/notifier"
	"listingwatch/orchestrator"
	"listingwatch/sources"
	"listingwatch/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) Name() types.Source { return types.SourceHKEX }

func (b *blockingSource) Fetch(ctx context.Context) ([]types.Candidate, error) {
	<-b.release
	return []types.Candidate{{Title: "Yonyou PROSPECTUS", Date: "2024-05-01", URL: "http://x/1"}}, nil
}

func newTestServer(t *testing.T, src sources.Source) (*gin.Engine, *orchestrator.Runner) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg, err := config.FromEnv(func(k string) string {
		if k == "DATA_DIR" {
			return dir
		}
		return ""
	})
	require.NoError(t, err)

	runner := orchestrator.NewRunner(cfg, orchestrator.Deps{
		Sources: func(config.Config, *zap.Logger) []sources.Source {
			if src == nil {
				return nil
			}
			return []sources.Source{src}
		},
		Notifiers: func(context.Context, config.Config, *zap.Logger) []notifier.Notifier { return nil },
	}, zap.NewNop())
	return NewRouter(runner, cfg, zap.NewNop()), runner
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := do(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestRunTriggerAndConflict(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	r, runner := newTestServer(t, src)

	w := do(r, http.MethodPost, "/api/run", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)

	w = do(r, http.MethodPost, "/api/run", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Eventually(t, func() bool {
		w := do(r, http.MethodGet, "/api/status", "")
		var status orchestrator.StatusResponse
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &status) != nil {
			return false
		}
		return status.Running && status.RunID == resp.RunID
	}, time.Second, 5*time.Millisecond)

	close(src.release)
	require.Eventually(t, func() bool { return !runner.Running() }, time.Second, 5*time.Millisecond)

	w = do(r, http.MethodGet, "/api/ledger?hashes=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info orchestrator.LedgerInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 1, info.Count)
	assert.Equal(t, []string{types.GenerateID("Yonyou PROSPECTUS", "2024-05-01", "http://x/1")}, info.Hashes)
}

func TestRunRejectsBadTestFlag(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := do(r, http.MethodPost, "/api/run?test=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassify(t *testing.T) {
	r, _ := newTestServer(t, nil)

	w := do(r, http.MethodPost, "/api/classify", `{"title":"Yonyou PRICE RANGE, H shares 18.5%"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Entity)
	assert.False(t, resp.Excluded)
	assert.Equal(t, "price_range", resp.EventType)
	assert.Equal(t, "18.5", resp.Supplementary["percentage"])

	w = do(r, http.MethodPost, "/api/classify", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "listingwatch_ledger_size")
}

func TestServerCron(t *testing.T) {
	_, runner := newTestServer(t, nil)
	s := NewServer(runner, http.NotFoundHandler(), "0", zap.NewNop())

	assert.True(t, s.NextRun().IsZero())
	require.Error(t, s.StartCron("not a schedule"))
	require.NoError(t, s.StartCron("@every 1h"))
	assert.False(t, s.NextRun().IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
