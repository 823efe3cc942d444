// Package errkind declares the store's error kinds as sentinel values
// in a root errors.go var-block style, so callers can classify
// failures with errors.Is across package boundaries.
package errkind

import "errors"

var (
	// ConfigInvalid: a metric config fails validation; the metric is
	// dropped and a warning logged, other metrics continue.
	ConfigInvalid = errors.New("errkind: config invalid")

	// SegmentUnavailable: the host shared-memory primitive is missing,
	// or segment open/create failed; latches has_error.
	SegmentUnavailable = errors.New("errkind: segment unavailable")

	// IndexFull: the index segment has no room for another entry.
	IndexFull = errors.New("errkind: index full")

	// DataFull: the data segment has no room for another value.
	DataFull = errors.New("errkind: data full")

	// LockTimeout: the rendezvous lock was not acquired within timeout.
	LockTimeout = errors.New("errkind: lock timeout")

	// VersionConflict: stored header version differs from the
	// requested one (see internal/indexmgr for the resolution policy).
	VersionConflict = errors.New("errkind: version conflict")

	// RangeOrTypeViolation: a value failed validate_value; it is
	// rewritten to 0 and the operation completes with a warning.
	RangeOrTypeViolation = errors.New("errkind: range or type violation")
)
