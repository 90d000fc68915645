// Package log wraps zerolog with the process-wide JSON/console logger used
// everywhere else in this module: call Init once at startup, then either
// use the package-level helpers (Info, Warn, Error, ...) or derive a child
// logger carrying fixed context fields with WithComponent/WithShard/
// WithTransaction/WithSavepoint.
package log
