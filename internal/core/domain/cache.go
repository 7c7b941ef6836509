package domain

import "fmt"

// CacheBackend identifies which cache variant is serving requests.
type CacheBackend string

// Cache variants.
const (
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendMemory CacheBackend = "memory"
)

// CacheNamespace prefixes every cache key.
type CacheNamespace string

// Cache namespaces.
const (
	CacheNamespaceEmbedding CacheNamespace = "embedding"
	CacheNamespaceChunk     CacheNamespace = "chunk"
	CacheNamespaceQuery     CacheNamespace = "query"
)

// UnknownCount is returned by a full cache flush when the backend
// cannot report how many keys were removed.
const UnknownCount = -1

// CacheStats holds cache counters.
type CacheStats struct {
	Backend CacheBackend `json:"backend"`
	Hits    int64        `json:"hits"`
	Misses  int64        `json:"misses"`
	Sets    int64        `json:"sets"`
	Deletes int64        `json:"deletes"`

	// Keys is the number of live keys, or UnknownCount.
	Keys int64 `json:"keys"`

	// Degraded is true when a remote cache fell back to the in-process cache.
	Degraded bool `json:"degraded"`
}

// HitRate formats hits / (hits + misses) as a percentage.
// Returns "N/A" when there have been no lookups.
func (s CacheStats) HitRate() string {
	total := s.Hits + s.Misses
	if total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", float64(s.Hits)/float64(total)*100)
}

// CacheHealth reports whether the cache backend is reachable.
type CacheHealth struct {
	Backend  CacheBackend `json:"backend"`
	Healthy  bool         `json:"healthy"`
	Degraded bool         `json:"degraded"`
	Message  string       `json:"message,omitempty"`
}
