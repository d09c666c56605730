// Package mocks provides in-memory implementations of the store interfaces
// for tests. The job store mirrors the real state machine contracts,
// including the atomic claim, so concurrency properties can be exercised
// without a database.
package mocks
