// Package triage is the business boundary for docbox's message triage
// pipeline. It defines the Service (ingestion, escalation, corrections, grid
// reads), the Oracle adapter over an external classification backend, the
// Lexical rule-based classifier, the pure Router and Zone assigner, the Store
// interface, and the domain models.
package triage
