package rpcadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/health"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/query"
	"google.golang.org/grpc"
)

const Name = "rpcadapter"

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

var jsonCall = grpc.CallContentSubtype(jsonCodecName)

// Driver is a backend.Driver proxying every Connection call over gRPC to
// a Service registered with ServiceDesc.
type Driver struct {
	// Dial opens the grpc.ClientConn each CreateConnection needs. It must
	// be set: CreateConnection fails when it is nil. driver_test.go supplies a bufconn-backed dialer to talk to an
	// in-process Service without a real listener.
	Dial func(ctx context.Context, address string) (grpc.ClientConnInterface, error)
}

// NewDriver builds a Driver whose connections are opened with dial.
func NewDriver(dial func(ctx context.Context, address string) (grpc.ClientConnInterface, error)) *Driver {
	return &Driver{Dial: dial}
}

func (d *Driver) Name() string { return Name }

func (d *Driver) CreateConnection() (backend.Connection, error) {
	if d.Dial == nil {
		return nil, fmt.Errorf("rpcadapter: driver has no Dial func configured")
	}
	return &conn{dial: d.Dial}, nil
}

// Command renders node using pkg/query's generic formatter with a
// PostgreSQL-style numbered placeholder, the dialect this adapter's
// reference Service understands.
func (d *Driver) Command(node *query.Node, paramOffset int, paramValues []any) (string, error) {
	ctx := query.NewFormatterContext(Name, query.PlaceholderDollar)
	ctx.Params = append(ctx.Params, paramValues[:paramOffset]...)
	if err := query.Emit(node, ctx); err != nil {
		return "", err
	}
	return ctx.String(), nil
}

type conn struct {
	dial      func(ctx context.Context, address string) (grpc.ClientConnInterface, error)
	cc        grpc.ClientConnInterface
	sessionID string
}

func (c *conn) Connect(ctx context.Context, cred credential.Value, database string) error {
	address := cred.Socket
	if address == "" {
		address = fmt.Sprintf("%s:%d", cred.Host, cred.Port)
	}
	cc, err := c.dial(ctx, address)
	if err != nil {
		return fmt.Errorf("rpcadapter: dialing %s: %w", address, err)
	}
	c.cc = cc

	req := &ConnectRequest{
		Username: cred.Username,
		Password: cred.Password,
		Host:     cred.Host,
		Port:     int32(cred.Port),
		Socket:   cred.Socket,
		Database: database,
	}
	resp := new(ConnectResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Connect"), req, resp, jsonCall); err != nil {
		return fmt.Errorf("rpcadapter: connect: %w", err)
	}
	c.sessionID = resp.SessionID
	return nil
}

func (c *conn) session() *SessionRequest {
	return &SessionRequest{SessionID: c.sessionID}
}

func (c *conn) Disconnect(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("Disconnect"), c.session(), new(Empty), jsonCall)
}

func (c *conn) Reset(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("Reset"), c.session(), new(Empty), jsonCall)
}

func (c *conn) Ping(ctx context.Context) health.Result {
	start := time.Now()
	resp := new(PingResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Ping"), c.session(), resp, jsonCall); err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	return health.Result{
		Healthy:   resp.Healthy,
		Message:   resp.Message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (c *conn) Close() error {
	ctx := context.Background()
	return c.cc.Invoke(ctx, fullMethod("Close"), c.session(), new(Empty), jsonCall)
}

func (c *conn) BeginTransaction(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("BeginTransaction"), c.session(), new(Empty), jsonCall)
}

func (c *conn) Commit(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("Commit"), c.session(), new(Empty), jsonCall)
}

func (c *conn) Rollback(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("Rollback"), c.session(), new(Empty), jsonCall)
}

func (c *conn) Savepoint(ctx context.Context, name string) error {
	req := &SavepointRequest{SessionID: c.sessionID, Name: name}
	return c.cc.Invoke(ctx, fullMethod("Savepoint"), req, new(Empty), jsonCall)
}

func (c *conn) RollbackTo(ctx context.Context, name string) error {
	req := &SavepointRequest{SessionID: c.sessionID, Name: name}
	return c.cc.Invoke(ctx, fullMethod("RollbackTo"), req, new(Empty), jsonCall)
}

// Execute sends binding's SQL text and parameters as one Execute RPC and
// materializes the response rows into info's result buffer, one tuple
// per row, in proj's field order.
func (c *conn) Execute(ctx context.Context, binding *planner.Binding, proj *planner.Projection, work, result *memscope.Scope, info backend.CollectorInfo) (backend.ExecResult, error) {
	params := make([]Value, len(binding.Params))
	for i, p := range binding.Params {
		v, err := encodeValue(p)
		if err != nil {
			return backend.ExecResult{}, err
		}
		params[i] = v
	}

	req := &ExecuteRequest{SessionID: c.sessionID, SQL: binding.SQL, Params: params}
	resp := new(ExecuteResponse)
	start := time.Now()
	if err := c.cc.Invoke(ctx, fullMethod("Execute"), req, resp, jsonCall); err != nil {
		return backend.ExecResult{}, fmt.Errorf("rpcadapter: execute: %w", err)
	}
	queryDone := time.Now()

	fields := make([]catalog.HeapField, len(proj.Fields))
	for i, f := range proj.Fields {
		fields[i] = *f.Field
	}

	for _, row := range resp.Rows {
		tup, err := info.Buffers.Allocate(info.ResultBuffer, true)
		if err != nil {
			return backend.ExecResult{}, err
		}
		for i, f := range fields {
			if i >= len(row) {
				return backend.ExecResult{}, fmt.Errorf("rpcadapter: row has %d fields, projection wants %d", len(row), len(fields))
			}
			v, isNull, err := decodeValue(row[i])
			if err != nil {
				return backend.ExecResult{}, fmt.Errorf("rpcadapter: decoding field %s: %w", f.Name, err)
			}
			if err := tup.SetField(f.Name, v, isNull); err != nil {
				return backend.ExecResult{}, err
			}
		}
		if err := info.Collector.Collect(info.State, []*heap.Tuple{tup}, []heap.HTP{tup.Pointer}); err != nil {
			return backend.ExecResult{}, err
		}
	}

	return backend.ExecResult{
		QueryDuration:     queryDone.Sub(start),
		FormationDuration: time.Since(queryDone),
		Rows:              len(resp.Rows),
	}, nil
}
