// Package errqueue implements the engine's structured, scoped failure
// propagation mechanism (spec §4.B).
//
// Every engine goroutine is expected to carry a *Queue through its call
// chain (the embedding API keeps one per Context). Raise appends an Error
// record and, for Error2-and-above levels, unwinds to the nearest installed
// Handler — the moral equivalent of the source system's
// setjmp/longjmp-based try/catch, implemented here with panic/recover so the
// unwind restores whatever memory scope was current when the handler was
// installed.
//
// Distribution of queued records to sinks (console, syslog, a test
// collector) follows the same broadcast-to-subscribers shape as the
// teacher's pkg/events broker, generalized from cluster events to leveled
// error records.
package errqueue
