// Package registry provides a typed content registry: a key-value store for
// content tagged as JSON, XML or plain text, persisted through a pluggable
// storage backend.
//
// A Registry owns exactly one Storage implementation. Implementations for
// in-memory, filesystem, S3, Postgres and SQLite persistence, plus a caching
// decorator, are provided under the storage subpackages. Every backend
// satisfies the same contract, exercised by storage/storagetest.
//
// Key Policy
//
// Keys are case-folded with NormalizeKey before any backend lookup, so "Report"
// and "report" address the same item in every backend. The stored item keeps
// the name as it was registered.
package registry
