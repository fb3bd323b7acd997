// Package sequence runs drip sequences: the per-enrollment state machine,
// the hourly scheduler tick and the admin operations that enroll people and
// append steps.
//
// An enrollment moves through active -> completed or active -> cancelled.
// current_step only ever increases. A send is recorded at most once per
// (enrollment, step); the store enforces this with a unique constraint and
// a tick that finds an existing send advances past the step without sending
// again.
package sequence
