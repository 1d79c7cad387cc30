// Package mapstatus defines the error kinds of spec.md §7 as sentinel
// errors usable with errors.Is, matching the teacher's sentinel-error
// idiom (e.g. internal/lidar/tracking.go's singular-matrix rejection)
// rather than a bespoke error-code type.
package mapstatus

import "errors"

var (
	// ErrTransportTransient marks a transform or subscriber not yet
	// available; retried via queue or dropped after overflow.
	ErrTransportTransient = errors.New("transport transient: not yet available")

	// ErrInputInvalid marks a malformed point record or non-finite
	// coordinate; the point is skipped silently by the caller.
	ErrInputInvalid = errors.New("input invalid: malformed or non-finite")

	// ErrConstraintMalformed marks a pose-graph constraint referencing an
	// unknown node id; the add is rejected with this diagnostic.
	ErrConstraintMalformed = errors.New("constraint malformed: unknown node id")

	// ErrSolverNonConvergence marks a solver that ran to completion
	// without converging; recorded in the summary, not fatal.
	ErrSolverNonConvergence = errors.New("solver did not converge")

	// ErrIOFailure marks a save_map/load_map failure surfaced to the
	// service caller as a boolean failure plus a diagnostic log.
	ErrIOFailure = errors.New("io failure")

	// ErrResourceExhaustion marks a queue overflow; oldest entries are
	// dropped with a throttled warning.
	ErrResourceExhaustion = errors.New("resource exhausted: queue overflow")
)
