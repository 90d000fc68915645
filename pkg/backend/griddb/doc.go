// Package griddb is a reference backend.Driver exercising the Backend
// Adapter Contract end-to-end against the GridDB-compatible wire format
// (spec §6): a fixed binary request header, challenge/response
// authentication, and a TCP transport. It is a worked example, not a
// production client — it is never wired to a live GridDB cluster, only to
// the fake server driver_test.go spins up over net.Pipe.
package griddb
