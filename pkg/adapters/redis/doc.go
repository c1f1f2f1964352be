// Package redis provides Redis backed session persistence, distributed locking
// and a delayed task queue.
package redis
