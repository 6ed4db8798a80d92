// Package pagecache provides a Redis-backed read-through cache for pages of
// a primary data source.
//
// Source wraps any primary.DataSource and answers repeated requests for the
// same query and range from Redis. Concurrent misses for the same page are
// collapsed into one upstream fetch. The cache is best effort: Redis errors
// are logged and counted, never returned to the caller.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := pagecache.NewManager(redisClient)
//
//	source := pagecache.NewSource[Book](upstream, manager, 10*time.Minute)
//	m, err := model.New[Book](source, consumer, model.DefaultConfig[Book]())
//
// # Warming
//
// Warm fetches the first pages of a query in parallel through a Source so
// the first scroll is served from Redis:
//
//	result, err := pagecache.Warm[Book](ctx, source, "go books", pagecache.DefaultWarmConfig())
//
// # Keys
//
// Keys are deterministic: uncover:<namespace>:q=<escaped query>:from=<n>:to=<n>.
// Whether the total count was requested is not part of the key; an entry
// without a total does not satisfy a request that needs one.
//
// # Metrics
//
//   - uncover_pagecache_hits_total - Cache hits
//   - uncover_pagecache_misses_total - Cache misses
//   - uncover_pagecache_shared_fetches_total - Misses served by a concurrent fetch
//   - uncover_pagecache_errors_total{operation} - Cache operation errors
package pagecache
