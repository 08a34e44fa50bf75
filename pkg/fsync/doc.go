// Package fsync provides fiber-aware synchronization primitives: the mutex
// family, condition variables and a one-shot event. Blocking operations take
// the calling fiber explicitly and park it on the primitive's wait queue;
// wake-up order is FIFO and mutex ownership is handed off to the woken
// waiter without re-contention.
package fsync
