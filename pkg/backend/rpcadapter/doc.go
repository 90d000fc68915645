// Package rpcadapter is a reference backend.Driver that proxies every
// Connection method over gRPC to an out-of-process Server, for shards
// whose storage lives behind a network boundary this process never opens
// a raw socket to itself. It hand-rolls the service descriptor and wire
// codec instead of generating stubs from a .proto file: there is no
// protoc available to regenerate them, and the messages this adapter
// needs are simple enough that a JSON grpc.Codec carries them without
// losing anything protobuf would have bought.
package rpcadapter
