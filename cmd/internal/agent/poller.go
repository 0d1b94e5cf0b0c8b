package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DeviceCheckInterval paces the device-fingerprint poll.
	DeviceCheckInterval = 20 * time.Second

	// MembershipCheckInterval paces the login-status poll. The two timers
	// are deliberately independent.
	MembershipCheckInterval = 30 * time.Second
)

// PollerConfig configures a Poller. Zero values take defaults.
type PollerConfig struct {
	BaseURL  string
	Token    string
	DeviceID string

	DeviceInterval     time.Duration
	MembershipInterval time.Duration

	HTTPClient *http.Client

	// OnDeny receives the navigation target when a check fails. Called at
	// most once per denial; the poller keeps running so a recovered session
	// resumes silently.
	OnDeny func(target string)
}

// Poller runs the device and membership checks on their own tickers.
// Network failures skip the cycle without surfacing to the user.
type Poller struct {
	log    *slog.Logger
	client *http.Client
	cfg    PollerConfig
}

// NewPoller constructs a Poller.
func NewPoller(log *slog.Logger, cfg PollerConfig) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DeviceInterval <= 0 {
		cfg.DeviceInterval = DeviceCheckInterval
	}
	if cfg.MembershipInterval <= 0 {
		cfg.MembershipInterval = MembershipCheckInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.OnDeny == nil {
		cfg.OnDeny = func(string) {}
	}
	return &Poller{log: log, client: cfg.HTTPClient, cfg: cfg}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		t := time.NewTicker(p.cfg.DeviceInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if target, deny, err := p.CheckDevice(ctx); err != nil {
					p.log.Warn("agent.device.fail", "err", err)
				} else if deny {
					p.cfg.OnDeny(target)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		t := time.NewTicker(p.cfg.MembershipInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if target, deny, err := p.CheckMembership(ctx); err != nil {
					p.log.Warn("agent.membership.fail", "err", err)
				} else if deny {
					p.cfg.OnDeny(target)
				}
			}
		}
	}()

	wg.Wait()
}

type deviceCheckReply struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// CheckDevice runs one device-fingerprint check. deny means the session must
// navigate to target.
func (p *Poller) CheckDevice(ctx context.Context) (target string, deny bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/device/check", strings.NewReader("{}"))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	if p.cfg.DeviceID != "" {
		req.AddCookie(&http.Cookie{Name: "ludo_device_id", Value: p.cfg.DeviceID})
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return "", false, nil
	case http.StatusUnauthorized:
		return "/login", true, nil
	case http.StatusForbidden:
		var reply deviceCheckReply
		_ = json.NewDecoder(resp.Body).Decode(&reply)
		if reply.Reason == "device_mismatch" {
			return "/login?error=device_mismatch", true, nil
		}
		return "/login", true, nil
	default:
		return "", false, fmt.Errorf("device check: status %d", resp.StatusCode)
	}
}

type statusReply struct {
	Authenticated bool   `json:"authenticated"`
	Redirect      string `json:"redirect"`
}

// CheckMembership runs one login-status check.
func (p *Poller) CheckMembership(ctx context.Context) (target string, deny bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/auth/status", nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("status check: status %d", resp.StatusCode)
	}

	var reply statusReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", false, err
	}
	if reply.Authenticated {
		return "", false, nil
	}
	if reply.Redirect == "" {
		return "/login", true, nil
	}
	return reply.Redirect, true, nil
}
