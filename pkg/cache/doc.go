// Package cache provides an optional Redis-backed cache for WSAPI GET responses.
//
// Only successful responses are cached: HTTP 200, valid JSON, and an empty
// Errors list in the result envelope. The security token query parameter is
// never part of a cache key, so a token refresh does not invalidate cached
// pages.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	cfg := client.DefaultConfig()
//	cfg.Cache = cache.NewManager(redisClient, 2*time.Minute)
//	conn, err := client.New(cfg)
//
// # Direct Access
//
//	key := cache.CacheKey{
//		URL:    "https://rally1.rallydev.com/slm/webservice/v2.0/defect",
//		Params: map[string]string{"pagesize": "200", "start": "1"},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from WSAPI, then manager.Store(ctx, key, body)
//	}
//
// # Metrics
//
//   - wsapi_cache_hits_total{layer="redis"} - Cache hits
//   - wsapi_cache_misses_total - Cache misses
//   - wsapi_cache_written_bytes_total{layer="redis"} - Bytes written
//   - wsapi_cache_errors_total{operation} - Cache operation errors
package cache
