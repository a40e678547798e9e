// Package cache implements the in-memory caches that sit in front of the bond
// upstream: a TTL-aware Store, an LRU policy layered over it, and New, which
// picks between them by Kind.
//
// Expiry is checked, not swept. A hit is only trustworthy after IsExpired
// says so.
package cache
