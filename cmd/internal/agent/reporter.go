// Package agent holds the client-side guard loops: the heartbeat reporter
// and the device/login-status pollers. They mirror what the browser runs on
// protected pages so non-browser clients get the same session semantics.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// HeartbeatInterval is the scheduled cadence.
	HeartbeatInterval = 50 * time.Second

	// HeartbeatDebounce suppresses sends within this window of the previous
	// successful send. Out-of-band wakes (visibility regain) go through the
	// same gate, so a wake shortly after a tick costs no network call.
	HeartbeatDebounce = 45 * time.Second
)

// ReporterConfig configures a Reporter. Zero values take defaults.
type ReporterConfig struct {
	BaseURL string
	Token   string
	Page    string
	// UserAgentSample is echoed in the heartbeat body.
	UserAgentSample string

	Interval time.Duration
	Debounce time.Duration

	HTTPClient *http.Client
	Now        func() time.Time
}

// Reporter posts keep-alives at a fixed cadence with a debounce guard.
type Reporter struct {
	log    *slog.Logger
	client *http.Client
	cfg    ReporterConfig

	mu       sync.Mutex
	lastSent time.Time

	wake chan struct{}
}

// NewReporter constructs a Reporter.
func NewReporter(log *slog.Logger, cfg ReporterConfig) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = HeartbeatInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = HeartbeatDebounce
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Reporter{
		log:    log,
		client: cfg.HTTPClient,
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
	}
}

// Wake requests an out-of-band send, as on visibility regain. The debounce
// window still applies.
func (r *Reporter) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled. Failures are logged and the cycle is
// skipped; the next tick retries.
func (r *Reporter) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-r.wake:
		}
		if _, err := r.TrySend(ctx); err != nil {
			r.log.Warn("agent.heartbeat.fail", "err", err)
		}
	}
}

type heartbeatBody struct {
	Timestamp       int64  `json:"timestamp"`
	Page            string `json:"page"`
	UserAgentSample string `json:"userAgentSample"`
}

// TrySend posts one heartbeat unless the debounce window suppresses it.
// Suppression happens before any network activity. sent reports whether a
// request was made and acknowledged.
func (r *Reporter) TrySend(ctx context.Context) (sent bool, err error) {
	now := r.cfg.Now()

	r.mu.Lock()
	if !r.lastSent.IsZero() && now.Sub(r.lastSent) < r.cfg.Debounce {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	body, _ := json.Marshal(heartbeatBody{
		Timestamp:       now.UnixMilli(),
		Page:            r.cfg.Page,
		UserAgentSample: r.cfg.UserAgentSample,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/api/heartbeat", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	resp, err := r.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("heartbeat: status %d", resp.StatusCode)
	}

	r.mu.Lock()
	r.lastSent = now
	r.mu.Unlock()
	return true, nil
}
