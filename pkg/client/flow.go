package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/probsync/probsync/pkg/logger"
)

// FlowState is a login flow state.
type FlowState int

const (
	// FlowIdle is the state before the login window is opened.
	FlowIdle FlowState = iota
	// FlowRedirected means the login window has been opened and the
	// user is at the identity provider.
	FlowRedirected
	// FlowAwaitingResult means the flow is waiting for one of its
	// completion triggers.
	FlowAwaitingResult
	// FlowCompleted is terminal: a result (success or failure) arrived
	// or the window closed.
	FlowCompleted
	// FlowTimedOut is terminal: no trigger fired within the deadline.
	FlowTimedOut
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowRedirected:
		return "redirected"
	case FlowAwaitingResult:
		return "awaiting_result"
	case FlowCompleted:
		return "completed"
	case FlowTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

var (
	// ErrLoginTimeout means no completion trigger fired in time.
	ErrLoginTimeout = errors.New("login timed out")
	// ErrLoginWindowClosed means the user closed the login window
	// before completing authentication.
	ErrLoginWindowClosed = errors.New("login window closed")
	// ErrFlowState means a transition was attempted out of order.
	ErrFlowState = errors.New("invalid login flow state")
)

// LoginWindow is the host-environment view of the login popup. Only
// its liveness is observable from here.
type LoginWindow interface {
	Closed() bool
}

// LoginResult is what the auth callback page reports back.
type LoginResult struct {
	UserID      string
	DisplayName string
	// Err is set for an auth-failure report.
	Err error
}

// LoginFlow coordinates one login attempt across two windows. Three
// independent triggers race to complete it: the callback page's
// result message, a poll observing the window closing, and a
// timeout. The first to fire wins; the losers are cancelled and
// cleanup runs exactly once on every path.
type LoginFlow struct {
	timeout      time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	state   FlowState
	results chan LoginResult
	cleanup func()
}

// LoginFlowConfig configures a LoginFlow.
type LoginFlowConfig struct {
	// Timeout bounds the whole flow. Zero means 2 minutes.
	Timeout time.Duration
	// PollInterval is the window-closed polling period. Zero means
	// 500ms.
	PollInterval time.Duration
}

// NewLoginFlow creates a flow in the idle state.
func NewLoginFlow(cfg LoginFlowConfig) *LoginFlow {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &LoginFlow{
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		state:        FlowIdle,
		results:      make(chan LoginResult, 1),
	}
}

// State returns the current state.
func (f *LoginFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start marks the login window as opened. Only valid from idle.
func (f *LoginFlow) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowIdle {
		return ErrFlowState
	}
	f.state = FlowRedirected
	return nil
}

// Deliver reports the callback page's result. It is a no-op once the
// flow is terminal, so a late message after a timeout does nothing.
func (f *LoginFlow) Deliver(res LoginResult) {
	f.mu.Lock()
	terminal := f.state == FlowCompleted || f.state == FlowTimedOut
	f.mu.Unlock()
	if terminal {
		return
	}
	select {
	case f.results <- res:
	default:
	}
}

// Await blocks until one trigger fires and returns the outcome. Only
// valid after Start. The window poll and the timeout are armed here
// and torn down on every exit path.
func (f *LoginFlow) Await(ctx context.Context, window LoginWindow) (*LoginResult, error) {
	f.mu.Lock()
	if f.state != FlowRedirected {
		f.mu.Unlock()
		return nil, ErrFlowState
	}
	f.state = FlowAwaitingResult
	f.mu.Unlock()

	timer := time.NewTimer(f.timeout)
	ticker := time.NewTicker(f.pollInterval)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			timer.Stop()
			ticker.Stop()
		})
	}
	defer cleanup()

	for {
		select {
		case res := <-f.results:
			f.finish(FlowCompleted)
			if res.Err != nil {
				logger.Warn("login failed", zap.Error(res.Err))
				return nil, res.Err
			}
			logger.Info("login completed", zap.String("user_id", res.UserID))
			return &res, nil

		case <-ticker.C:
			if window != nil && window.Closed() {
				f.finish(FlowCompleted)
				return nil, ErrLoginWindowClosed
			}

		case <-timer.C:
			f.finish(FlowTimedOut)
			return nil, ErrLoginTimeout

		case <-ctx.Done():
			f.finish(FlowCompleted)
			return nil, ctx.Err()
		}
	}
}

func (f *LoginFlow) finish(state FlowState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}
