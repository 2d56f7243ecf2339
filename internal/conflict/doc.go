// Package conflict decides whether weekly meeting schedules collide.
//
// Schedule endpoints arrive in whatever shape the catalog recorded them. Values that cannot be
// read as a minute-of-day are excluded from every comparison: a malformed schedule never blocks
// an unrelated enrollment. Intervals are half-open, so a block ending at 200 and another starting
// at 200 on the same day do not collide.
package conflict
