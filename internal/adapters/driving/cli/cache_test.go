package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestCacheStatsCmd_Executes(t *testing.T) {
	defer setupTestServices()()

	out, err := execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend:  memory")
	assert.Contains(t, out, "Keys:     4")
	assert.Contains(t, out, "Hit rate: 75.00%")
	assert.NotContains(t, out, "Degraded")
}

func TestCacheStatsCmd_Degraded(t *testing.T) {
	defer setupTestServices()()
	mocks.cache.stats.Backend = domain.CacheBackendRedis
	mocks.cache.stats.Degraded = true

	out, err := execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend:  redis")
	assert.Contains(t, out, "Degraded: yes (serving from memory)")
}

func TestCacheStatsCmd_JSONOutput(t *testing.T) {
	defer setupTestServices()()

	out, err := execute(t, "cache", "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "memory"`)
	assert.Contains(t, out, `"hits": 3`)
}

func TestCacheHealthCmd_States(t *testing.T) {
	tests := []struct {
		name     string
		health   domain.CacheHealth
		expected string
	}{
		{
			name:     "healthy",
			health:   domain.CacheHealth{Backend: domain.CacheBackendMemory, Healthy: true},
			expected: "memory: healthy",
		},
		{
			name:     "degraded",
			health:   domain.CacheHealth{Backend: domain.CacheBackendRedis, Healthy: true, Degraded: true, Message: "connection refused"},
			expected: "redis: degraded",
		},
		{
			name:     "unhealthy",
			health:   domain.CacheHealth{Backend: domain.CacheBackendRedis},
			expected: "redis: unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer setupTestServices()()
			mocks.cache.health = tt.health

			out, err := execute(t, "cache", "health")
			require.NoError(t, err)
			assert.Contains(t, out, tt.expected)
			if tt.health.Message != "" {
				assert.Contains(t, out, tt.health.Message)
			}
		})
	}
}

func TestCacheClearCmd_Pattern(t *testing.T) {
	defer setupTestServices()()

	out, err := execute(t, "cache", "clear", "--pattern", "query:*")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 4 entries.")
	assert.Equal(t, "query:*", mocks.cache.lastPattern)
}

func TestCacheClearCmd_Error(t *testing.T) {
	defer setupTestServices()()
	mocks.cache.err = domain.ErrCacheUnavailable

	_, err := execute(t, "cache", "clear")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestCacheCmd_ServiceNotConfigured(t *testing.T) {
	SetServices(nil)

	_, err := execute(t, "cache", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache service not configured")
}
