// Package ratelimit implements per-operation request throttling with three
// interchangeable algorithms: fixed window, sliding window, and token bucket.
//
// # Window semantics
//
//   - FixedWindow: the window restarts once now-WindowStart >= Window.
//     Bursts of up to twice MaxRequests across a boundary are accepted.
//   - SlidingWindow: the count restarts once now-LastRequest >= Window.
//   - TokenBucket: capacity MaxRequests, refilled continuously at
//     RefillPerSecond; a new bucket starts full.
//
// State is keyed per (operation, caller), or per operation when the
// configuration is global. [Apply] is the single pure step function; stores
// only decide where state lives and how the step is made atomic.
//
// # Stores
//
//   - [MemoryStore]: sharded in-process maps.
//   - [RedisStore]: one Lua script per check. Key layout "<prefix>:<op>" or
//     "<prefix>:<op>:<caller>", timestamps in milliseconds.
//
// # What this package must NOT do
//
//   - Decide caller roles; configuration writes are authorized by the engine.
//   - Read the wall clock; every call receives now from the caller.
package ratelimit
