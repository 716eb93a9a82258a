// Package redis holds the optional Redis-backed collaborators of the vote
// pipeline: the per-voter token bucket and the score read cache. Every
// command passes through a metrics hook and a circuit breaker hook.
package redis
