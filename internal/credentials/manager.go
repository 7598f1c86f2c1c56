package credentials

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lakeloader/internal/domain"
)

// DefaultExpiryBuffer gives downstream operations a safety margin to finish
// before credentials are rejected mid-operation.
const DefaultExpiryBuffer = 5 * time.Minute

// Manager owns the run-wide credential bundle. The bundle is replaced, never
// mutated in place; callers must re-read it at point of use rather than
// caching across long-running operations.
type Manager struct {
	issuer domain.CredentialIssuer
	retry  RetryPolicy
	clock  domain.Clock
	buffer time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	bundle domain.CredentialBundle
	held   bool
}

// NewManager creates a Manager around an issuer with the identity-service
// retry policy. clock may be nil for the system clock.
func NewManager(issuer domain.CredentialIssuer, retry RetryPolicy, buffer time.Duration, clock domain.Clock, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		issuer: issuer,
		retry:  retry,
		clock:  clock,
		buffer: buffer,
		logger: logger.With("component", "credentials"),
	}
}

// Obtain exchanges the fixed identity for a fresh bundle, retrying per the
// policy, and replaces the held bundle.
func (m *Manager) Obtain(ctx context.Context) (domain.CredentialBundle, error) {
	var bundle domain.CredentialBundle
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		b, err := m.issuer.Issue(ctx)
		if err != nil {
			m.logger.Warn("credential exchange failed", "error", err)
			return err
		}
		bundle = b
		return nil
	})
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	m.mu.Lock()
	m.bundle = bundle
	m.held = true
	m.mu.Unlock()

	m.logger.Info("credentials obtained", "expiry", bundle.Expiry.Format(time.RFC3339))
	return bundle, nil
}

// Current returns the held bundle. ok is false before the first Obtain.
func (m *Manager) Current() (domain.CredentialBundle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bundle, m.held
}

// IsExpiring reports whether the held bundle expires within the manager's
// buffer. An empty manager is always expiring.
func (m *Manager) IsExpiring() bool {
	m.mu.RLock()
	bundle, held := m.bundle, m.held
	m.mu.RUnlock()
	if !held {
		return true
	}
	return bundle.IsExpiring(m.clock.Now(), m.buffer)
}

// RefreshIfNeeded re-invokes Obtain only when the held bundle is expiring.
// Downstream components must re-read credentials after this call.
func (m *Manager) RefreshIfNeeded(ctx context.Context) error {
	if !m.IsExpiring() {
		return nil
	}
	m.logger.Info("credentials expiring, refreshing")
	_, err := m.Obtain(ctx)
	return err
}
