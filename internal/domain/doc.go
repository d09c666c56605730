// Package domain defines the core business entities of the document
// library: documents, their background processing jobs, and users.
// Entities validate themselves and own their status transition rules;
// persistence and orchestration live elsewhere.
package domain
