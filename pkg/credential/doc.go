// Package credential stores and releases the per-shard connection secrets
// a backend's connect(cred, db) call needs (username, password, TLS
// material, socket/host/port) without holding plaintext longer than the
// moment of use.
package credential
