// Package proxymgr rotates outbound proxies for the extraction backends.
// Proxies the sources refuse are put into exponential backoff.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"sync"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/observability"
)

// ProxyState represents the current state of a proxy.
type ProxyState int

const (
	// ProxyStateAvailable indicates the proxy is available for use.
	ProxyStateAvailable ProxyState = iota
	// ProxyStateFailed indicates the proxy has failed and is in backoff.
	ProxyStateFailed
)

const (
	healthCheckTimeout = 10 * time.Second
	maxBackoff         = time.Hour
)

type proxyInfo struct {
	label         string
	state         ProxyState
	failureCount  int
	backoffUntil  time.Time
	lastHealthChk time.Time
}

// Manager hands out proxies and tracks their health.
type Manager struct {
	log     *slog.Logger
	cfg     config.Proxy
	metrics *observability.Metrics

	mu      sync.Mutex
	proxies map[string]*proxyInfo
	order   []string
}

// New creates a proxy manager for the configured proxy list.
func New(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics) *Manager {
	mgr := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		cfg:     cfg.Proxy,
		metrics: metrics,
		proxies: make(map[string]*proxyInfo, len(cfg.Proxy.Proxies)),
		order:   make([]string, 0, len(cfg.Proxy.Proxies)),
	}

	for _, proxy := range cfg.Proxy.Proxies {
		if _, dup := mgr.proxies[proxy]; dup {
			continue
		}

		mgr.proxies[proxy] = &proxyInfo{label: redact(proxy)}
		mgr.order = append(mgr.order, proxy)
	}

	mgr.metrics.SetProxiesAvailable(len(mgr.order))

	return mgr
}

// HasProxies reports whether any proxy is configured.
func (m *Manager) HasProxies() bool {
	return len(m.order) > 0
}

// GetRandomProxy returns a random available proxy, or "" when none is.
func (m *Manager) GetRandomProxy() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.available(time.Now())
	if len(available) == 0 {
		return ""
	}

	proxy := available[rand.IntN(len(available))]
	m.metrics.RecordProxyRequest(m.proxies[proxy].label)

	return proxy
}

// MarkFailed records a refusal. Once MaxFailures is reached the proxy is
// withheld for an exponentially growing backoff.
func (m *Manager) MarkFailed(proxy string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.proxies[proxy]
	if !ok {
		return
	}

	info.failureCount++
	m.metrics.RecordProxyFailure(info.label)

	if info.failureCount < max(m.cfg.MaxFailures, 1) {
		return
	}

	backoff := min(m.cfg.FailureBackoff<<(info.failureCount-max(m.cfg.MaxFailures, 1)), maxBackoff)
	if backoff <= 0 {
		backoff = maxBackoff
	}

	info.state = ProxyStateFailed
	info.backoffUntil = time.Now().Add(backoff)

	m.metrics.SetProxiesAvailable(len(m.available(time.Now())))
	m.log.Warn("proxy marked as failed",
		slog.String("proxy", info.label),
		slog.Int("failure_count", info.failureCount),
		slog.Duration("backoff", backoff))
}

// MarkSuccess resets the failure state of proxy.
func (m *Manager) MarkSuccess(proxy string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.proxies[proxy]
	if !ok {
		return
	}

	info.state = ProxyStateAvailable
	info.failureCount = 0
	info.backoffUntil = time.Time{}

	m.metrics.SetProxiesAvailable(len(m.available(time.Now())))
}

// AvailableCount returns the number of proxies not in backoff.
func (m *Manager) AvailableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.available(time.Now()))
}

// HealthCheck dials the proxy host and updates its state.
func (m *Manager) HealthCheck(ctx context.Context, proxy string) error {
	parsed, err := url.Parse(proxy)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	dialer := &net.Dialer{Timeout: healthCheckTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", parsed.Host)
	if err != nil {
		m.MarkFailed(proxy)

		return fmt.Errorf("dial proxy: %w", err)
	}

	_ = conn.Close()

	m.mu.Lock()
	if info, ok := m.proxies[proxy]; ok {
		info.lastHealthChk = time.Now()
	}
	m.mu.Unlock()

	m.MarkSuccess(proxy)

	return nil
}

// StartHealthChecker checks every proxy on each interval tick until ctx is done.
// It returns immediately when there is nothing to check.
func (m *Manager) StartHealthChecker(ctx context.Context) {
	if m.cfg.HealthCheckInterval <= 0 || len(m.order) == 0 {
		return
	}

	m.log.Info("proxy health checker started",
		slog.Duration("interval", m.cfg.HealthCheckInterval),
		slog.Int("proxy_count", len(m.order)))

	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

func (m *Manager) checkAll(ctx context.Context) {
	for _, proxy := range m.order {
		if ctx.Err() != nil {
			return
		}

		if err := m.HealthCheck(ctx, proxy); err != nil {
			m.log.Debug("proxy health check failed",
				slog.String("proxy", m.proxies[proxy].label),
				slog.Any("error", err))
		}
	}
}

// available must be called with mu held.
func (m *Manager) available(now time.Time) []string {
	out := make([]string, 0, len(m.order))

	for _, proxy := range m.order {
		info := m.proxies[proxy]
		if info.state == ProxyStateAvailable || now.After(info.backoffUntil) {
			out = append(out, proxy)
		}
	}

	return out
}

// redact drops credentials so proxies can be logged and used as metric labels.
func redact(proxy string) string {
	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return "invalid"
	}

	return u.Scheme + "://" + u.Host
}
