// Package backend defines the adapter contract every storage driver
// implements: connection lifecycle, transaction control, and plan
// execution against a registered connection.
package backend
