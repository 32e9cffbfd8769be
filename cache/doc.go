// Package cache keeps the last good result of protected calls so fallbacks
// can serve stale data while a dependency is failing.
//
// A Cache stores bytes under string keys with a TTL. Two backends exist:
// MemoryCache, a bounded LRU from github.com/hashicorp/golang-lru/v2, and
// RedisCache on github.com/redis/go-redis/v9, shared by all instances of a
// service. Keys are derived with DefaultKeyer as
// fallback:<callType>:<sha256 of the input>.
//
// LastKnownGood ties a Cache to a call type: Wrap stores every successful
// result, Fallback serves it back.
package cache
