// Package postgres implements the store interfaces on PostgreSQL using
// database/sql over the pgx stdlib driver. Job status transitions are
// enforced with conditional single-statement updates so that concurrent
// workers can never double-claim or double-finalize a job.
package postgres
