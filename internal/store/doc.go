// Package store defines the persistence interfaces and sentinel errors for
// the document library. Implementations live under internal/platform; the
// DBTX abstraction lets every store run against either a *sql.DB or an
// in-flight *sql.Tx.
package store
