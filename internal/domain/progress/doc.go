// Package progress contains the progression domain model: the user progress
// aggregate, the leveling curve, rank titles, daily streaks, per-section
// activity tracking, and the declarative achievement catalog.
//
// All types in this package are pure in-memory state and logic. Persistence,
// event transport, and scheduling live in the infrastructure layer.
package progress
