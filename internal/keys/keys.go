package keys

// Package keys centralizes Redis key construction.
// It is kept in internal to avoid leaking key formats to public API.

// Tasks is the HASH of task id -> task JSON.
func Tasks(ns string) string { return "shikijin:{" + ns + "}:tasks" }

// Order is the ZSET of task ids scored by admission sequence (pickup order).
func Order(ns string) string { return "shikijin:{" + ns + "}:order" }

// Seq is the counter feeding Order scores.
func Seq(ns string) string { return "shikijin:{" + ns + "}:seq" }

// Assignments is the HASH of task id -> active assignment id.
func Assignments(ns string) string { return "shikijin:{" + ns + "}:assignments" }

// AssignmentRecords is the HASH of assignment id -> assignment JSON.
func AssignmentRecords(ns string) string { return "shikijin:{" + ns + "}:assignment_records" }

// LeaseExpiry is a ZSET index of task id scored by lease expiry in microseconds.
func LeaseExpiry(ns string) string { return "shikijin:{" + ns + "}:lease_expiry" }

// Completed is the SET of task ids whose assignment was completed.
func Completed(ns string) string { return "shikijin:{" + ns + "}:completed" }

// Blobs is the HASH of blob id -> blob JSON.
func Blobs(ns string) string { return "shikijin:{" + ns + "}:blobs" }

// Namespace holds all precomputed keys for a namespace to avoid repeated concatenations.
// The hash tag keeps every key of a namespace in one cluster slot, which the
// multi-key Lua scripts require.
type Namespace struct {
	Tasks             string
	Order             string
	Seq               string
	Assignments       string
	AssignmentRecords string
	LeaseExpiry       string
	Completed         string
	Blobs             string
}

// For returns a set of precomputed keys for the provided namespace.
func For(ns string) Namespace {
	return Namespace{
		Tasks:             Tasks(ns),
		Order:             Order(ns),
		Seq:               Seq(ns),
		Assignments:       Assignments(ns),
		AssignmentRecords: AssignmentRecords(ns),
		LeaseExpiry:       LeaseExpiry(ns),
		Completed:         Completed(ns),
		Blobs:             Blobs(ns),
	}
}
