package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"listingwatch/types"
)

// State represents the run state machine
type State string

const (
	StateIdle       State = "idle"
	StateInit       State = "init"
	StateLoadLedger State = "load_ledger"
	StateRunSource  State = "run_source"
	StateMerge      State = "merge"
	StateNotify     State = "notify"
	StateDone       State = "done"
	StateError      State = "error"
)

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// RunSummary describes one finished run
type RunSummary struct {
	RunID        string            `json:"run_id"`
	Test         bool              `json:"test"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Candidates   map[string]int    `json:"candidates"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
	Events       []types.Event     `json:"events"`
	Channels     []string          `json:"channels"`
	Delivered    int               `json:"delivered"`
	Failed       int               `json:"failed"`
	Error        string            `json:"error,omitempty"`
}

// StatusResponse is the JSON response for GET /api/status
type StatusResponse struct {
	State      State       `json:"state"`
	Running    bool        `json:"running"`
	RunID      string      `json:"run_id,omitempty"`
	Source     string      `json:"source,omitempty"`
	Logs       []LogEntry  `json:"logs"`
	LastRun    *RunSummary `json:"last_run,omitempty"`
	Error      string      `json:"error,omitempty"`
	LedgerSize int         `json:"ledger_size"`
}

// Status holds the observable run state with thread-safe access
type Status struct {
	mu sync.RWMutex

	currentState State
	running      bool
	runID        string
	source       string
	ledgerSize   int

	// Logs (ring buffer)
	logs    []LogEntry
	maxLogs int
	lastErr error

	lastRun *RunSummary
}

// NewStatus creates a tracker keeping the last 50 log entries
func NewStatus() *Status {
	return &Status{
		currentState: StateIdle,
		logs:         make([]LogEntry, 0),
		maxLogs:      50,
	}
}

// AddLog adds a log entry (thread-safe)
func (s *Status) AddLog(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLogLocked(fmt.Sprintf(format, args...))
}

func (s *Status) addLogLocked(message string) {
	s.logs = append(s.logs, LogEntry{Timestamp: time.Now(), Message: message})
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[len(s.logs)-s.maxLogs:]
	}
}

// StartRun marks a new run as in progress and clears the previous error
func (s *Status) StartRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.runID = runID
	s.source = ""
	s.lastErr = nil
	s.currentState = StateInit
	s.addLogLocked("Run " + runID + " started")
}

// FinishRun records the summary and leaves the final state in place
func (s *Status) FinishRun(summary RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.source = ""
	s.lastRun = &summary
	s.addLogLocked(fmt.Sprintf("Run %s finished: %d events, %d delivered, %d failed",
		summary.RunID, len(summary.Events), summary.Delivered, summary.Failed))
}

// SetState sets the current state (thread-safe)
func (s *Status) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentState = state
}

// SetSource records which source is being processed
func (s *Status) SetSource(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentState = StateRunSource
	s.source = source
}

// SetLedgerSize records the ledger size after load or run
func (s *Status) SetLedgerSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgerSize = n
}

// GetState gets the current state (thread-safe)
func (s *Status) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentState
}

// SetError sets the error state
func (s *Status) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentState = StateError
	s.lastErr = err
	s.addLogLocked(fmt.Sprintf("Error: %v", err))
}

// GetStatus returns a snapshot of the current state (thread-safe)
func (s *Status) GetStatus() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		State:      s.currentState,
		Running:    s.running,
		RunID:      s.runID,
		Source:     s.source,
		Logs:       append([]LogEntry{}, s.logs...), // Copy slice
		LedgerSize: s.ledgerSize,
	}
	if s.lastRun != nil {
		summary := *s.lastRun
		resp.LastRun = &summary
	}
	if s.lastErr != nil {
		resp.Error = s.lastErr.Error()
	}
	return resp
}
