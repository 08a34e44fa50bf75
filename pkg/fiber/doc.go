// Package fiber implements a cooperative concurrency runtime: many
// lightweight fibers multiplexed onto a small set of scheduler instances.
// Each fiber yields control at well-defined suspension points; within one
// scheduler at most one fiber runs at any time.
//
// A Scheduler drives fibers through a pluggable Algorithm (round-robin,
// priority, shared-queue, work-stealing). Synchronization primitives live in
// the fsync, future and channel packages and are built on the Park/Unpark
// surface exposed here.
package fiber
