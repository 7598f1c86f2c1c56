package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeloader/internal/domain"
)

type mockIssuer struct {
	IssueFn func(ctx context.Context) (domain.CredentialBundle, error)
	calls   int
}

func (m *mockIssuer) Issue(ctx context.Context) (domain.CredentialBundle, error) {
	m.calls++
	return m.IssueFn(ctx)
}

func fixedClock(at time.Time) domain.Clock {
	return domain.ClockFunc(func() time.Time { return at })
}

func noSleepPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Second,
		jitter:      func(d time.Duration) time.Duration { return d },
		sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func TestManager_Obtain(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("happy_path", func(t *testing.T) {
		issuer := &mockIssuer{
			IssueFn: func(context.Context) (domain.CredentialBundle, error) {
				return domain.CredentialBundle{AccessKey: "AK", SecretKey: "SK", Expiry: now.Add(time.Hour)}, nil
			},
		}
		m := NewManager(issuer, noSleepPolicy(3), DefaultExpiryBuffer, fixedClock(now), nil)

		bundle, err := m.Obtain(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "AK", bundle.AccessKey)
		current, ok := m.Current()
		require.True(t, ok)
		assert.Equal(t, bundle, current)
	})

	t.Run("retries_transient_failures", func(t *testing.T) {
		issuer := &mockIssuer{}
		issuer.IssueFn = func(context.Context) (domain.CredentialBundle, error) {
			if issuer.calls < 3 {
				return domain.CredentialBundle{}, domain.ErrAuthFailure("identity service unreachable")
			}
			return domain.CredentialBundle{AccessKey: "AK", SecretKey: "SK", Expiry: now.Add(time.Hour)}, nil
		}
		m := NewManager(issuer, noSleepPolicy(3), DefaultExpiryBuffer, fixedClock(now), nil)

		_, err := m.Obtain(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 3, issuer.calls)
	})

	t.Run("surfaces_auth_failure_after_retries", func(t *testing.T) {
		issuer := &mockIssuer{
			IssueFn: func(context.Context) (domain.CredentialBundle, error) {
				return domain.CredentialBundle{}, domain.ErrAuthFailure("nope")
			},
		}
		m := NewManager(issuer, noSleepPolicy(3), DefaultExpiryBuffer, fixedClock(now), nil)

		_, err := m.Obtain(context.Background())

		require.Error(t, err)
		var authErr *domain.AuthFailureError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, 3, issuer.calls)
		_, held := m.Current()
		assert.False(t, held)
	})
}

func TestManager_IsExpiring(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiring_within_buffer", func(t *testing.T) {
		// Expiry 3 minutes out, 5 minute buffer: expiring.
		issuer := &mockIssuer{
			IssueFn: func(context.Context) (domain.CredentialBundle, error) {
				return domain.CredentialBundle{AccessKey: "AK", SecretKey: "SK", Expiry: now.Add(3 * time.Minute)}, nil
			},
		}
		m := NewManager(issuer, noSleepPolicy(1), 5*time.Minute, fixedClock(now), nil)
		_, err := m.Obtain(context.Background())
		require.NoError(t, err)

		assert.True(t, m.IsExpiring())
	})

	t.Run("fresh_bundle_not_expiring", func(t *testing.T) {
		issuer := &mockIssuer{
			IssueFn: func(context.Context) (domain.CredentialBundle, error) {
				return domain.CredentialBundle{AccessKey: "AK", SecretKey: "SK", Expiry: now.Add(time.Hour)}, nil
			},
		}
		m := NewManager(issuer, noSleepPolicy(1), 5*time.Minute, fixedClock(now), nil)
		_, err := m.Obtain(context.Background())
		require.NoError(t, err)

		assert.False(t, m.IsExpiring())
	})

	t.Run("empty_manager_is_expiring", func(t *testing.T) {
		m := NewManager(&mockIssuer{}, noSleepPolicy(1), 5*time.Minute, fixedClock(now), nil)
		assert.True(t, m.IsExpiring())
	})
}

func TestManager_RefreshIfNeeded(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("refreshes_expiring_bundle", func(t *testing.T) {
		issuer := &mockIssuer{}
		issuer.IssueFn = func(context.Context) (domain.CredentialBundle, error) {
			expiry := now.Add(3 * time.Minute)
			if issuer.calls > 1 {
				expiry = now.Add(time.Hour)
			}
			return domain.CredentialBundle{AccessKey: "AK", SecretKey: "SK", Expiry: expiry}, nil
		}
		m := NewManager(issuer, noSleepPolicy(1), 5*time.Minute, fixedClock(now), nil)
		_, err := m.Obtain(context.Background())
		require.NoError(t, err)

		require.NoError(t, m.RefreshIfNeeded(context.Background()))

		assert.Equal(t, 2, issuer.calls)
		current, _ := m.Current()
		assert.Equal(t, now.Add(time.Hour), current.Expiry)
	})

	t.Run("no_op_when_fresh", func(t *testing.T) {
		issuer := &mockIssuer{
			IssueFn: func(context.Context) (domain.CredentialBundle, error) {
				return domain.CredentialBundle{AccessKey: "AK", SecretKey: "SK", Expiry: now.Add(time.Hour)}, nil
			},
		}
		m := NewManager(issuer, noSleepPolicy(1), 5*time.Minute, fixedClock(now), nil)
		_, err := m.Obtain(context.Background())
		require.NoError(t, err)

		require.NoError(t, m.RefreshIfNeeded(context.Background()))

		assert.Equal(t, 1, issuer.calls)
	})
}
