package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/learning-api/internal/config"
)

func TestRegistry_Lookup(t *testing.T) {
	r, err := NewRegistry(nil, nil,
		Policy{Name: TierGeneral, Limit: 100, Window: time.Minute},
		Policy{Name: TierAuth, Limit: 5, Window: time.Minute, Key: KeyByIP, SkipSuccessful: true},
	)
	require.NoError(t, err)

	l, err := r.Lookup(TierAuth)
	require.NoError(t, err)
	assert.True(t, l.Policy().SkipSuccessful)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownTier)
	assert.Equal(t, []string{TierAuth, TierGeneral}, r.Names())
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(nil, nil,
		Policy{Name: TierGeneral, Limit: 1, Window: time.Minute},
		Policy{Name: TierGeneral, Limit: 2, Window: time.Minute},
	)
	assert.Error(t, err)
}

func TestPolicies_FromConfig(t *testing.T) {
	cfg := config.DefaultRateLimitConfig()
	r, err := NewRegistry(nil, nil, Policies(cfg)...)
	require.NoError(t, err)
	assert.Equal(t, []string{TierAuth, TierElevated, TierGeneral, TierMutation, TierPayment, TierUpload}, r.Names())

	auth, err := r.Lookup(TierAuth)
	require.NoError(t, err)
	assert.Equal(t, 5, auth.Policy().Limit)
	assert.Equal(t, 15*time.Minute, auth.Policy().Window)
}
