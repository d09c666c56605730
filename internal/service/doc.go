// Package service implements the application's use cases over the store
// interfaces: document submission (the ingestion fast/slow paths), the
// polling status surface, and job control (retry, cancel, delete).
package service
