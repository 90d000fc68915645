package griddb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/health"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/planner"
	"github.com/cuemby/shardbridge/pkg/query"
)

const Name = "griddb"

// Dialer opens the transport Connect speaks the wire protocol over. The
// zero value dials plain TCP; driver_test.go substitutes a net.Pipe to
// talk to its in-process fake server without a real cluster.
type Dialer func(ctx context.Context, address string) (net.Conn, error)

func defaultDialer(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// Driver is a backend.Driver speaking the GridDB-compatible wire format.
type Driver struct {
	Dial Dialer
}

// NewDriver builds a Driver dialing plain TCP.
func NewDriver() *Driver {
	return &Driver{Dial: defaultDialer}
}

func (d *Driver) Name() string { return Name }

func (d *Driver) CreateConnection() (backend.Connection, error) {
	dial := d.Dial
	if dial == nil {
		dial = defaultDialer
	}
	return &conn{dial: dial}, nil
}

// Command renders a single query.Node fragment targeting this backend's
// placeholder style via pkg/query's formatter.
func (d *Driver) Command(node *query.Node, paramOffset int, paramValues []any) (string, error) {
	ctx := query.NewFormatterContext(Name, query.PlaceholderQuestion)
	ctx.Params = append(ctx.Params, paramValues[:paramOffset]...)
	if err := query.Emit(node, ctx); err != nil {
		return "", err
	}
	return ctx.String(), nil
}

// conn is one GridDB-compatible connection: a transport plus the
// statement-id/partition bookkeeping the wire header needs.
type conn struct {
	dial    Dialer
	address string
	nc      net.Conn

	statementID    uint64
	firstStatement bool
	partitionID    int32
}

func (c *conn) nextHeader(stype StatementType) Header {
	h := Header{
		StatementType:  stype,
		PartitionID:    c.partitionID,
		StatementID:    c.statementID,
		FirstStatement: c.firstStatement,
	}
	c.firstStatement = false
	c.statementID++
	return h
}

func (c *conn) roundTrip(stype StatementType, body []byte) ([]byte, error) {
	first := c.firstStatement
	h := c.nextHeader(stype)
	h.FirstStatement = first
	if _, err := c.nc.Write(EncodeHeader(h, body)); err != nil {
		return nil, fmt.Errorf("griddb: writing request: %w", err)
	}
	_, respBody, err := DecodeHeader(c.nc, first)
	if err != nil {
		return nil, fmt.Errorf("griddb: reading response: %w", err)
	}
	return respBody, nil
}

func (c *conn) Connect(ctx context.Context, cred credential.Value, database string) error {
	address := cred.Socket
	if address == "" {
		address = fmt.Sprintf("%s:%d", cred.Host, cred.Port)
	}
	c.address = address
	c.firstStatement = true
	c.statementID = 0

	nc, err := c.dial(ctx, address)
	if err != nil {
		return fmt.Errorf("griddb: dialing %s: %w", address, err)
	}
	c.nc = nc

	var connectBody bytes.Buffer
	PutString(&connectBody, cred.Username)
	PutString(&connectBody, database)
	respBody, err := c.roundTrip(StatementConnect, connectBody.Bytes())
	if err != nil {
		_ = nc.Close()
		return err
	}

	r := bytes.NewReader(respBody)
	challengeBase, err := GetString(r)
	if err != nil {
		_ = nc.Close()
		return fmt.Errorf("griddb: reading challenge: %w", err)
	}
	nonce, err := GetString(r)
	if err != nil {
		_ = nc.Close()
		return err
	}
	baseSalt, err := GetString(r)
	if err != nil {
		_ = nc.Close()
		return err
	}
	cryptBase, err := GetString(r)
	if err != nil {
		_ = nc.Close()
		return err
	}

	cnonce, err := newCnonce()
	if err != nil {
		_ = nc.Close()
		return err
	}
	const nc1 = "00000001"
	response := computeResponse(Challenge{
		ChallengeBase: challengeBase,
		Nonce:         nonce,
		BaseSalt:      baseSalt,
		CryptBase:     cryptBase,
	}, cnonce, nc1)

	var authBody bytes.Buffer
	PutString(&authBody, cred.Username)
	PutString(&authBody, response)
	PutString(&authBody, nc1)
	PutString(&authBody, cnonce)
	authResp, err := c.roundTrip(StatementAuth, authBody.Bytes())
	if err != nil {
		_ = nc.Close()
		return err
	}
	if len(authResp) == 0 || authResp[0] != 0 {
		_ = nc.Close()
		return fmt.Errorf("griddb: authentication rejected")
	}
	return nil
}

func (c *conn) Disconnect(ctx context.Context) error {
	if c.nc == nil {
		return nil
	}
	_, _ = c.roundTrip(StatementDisconnect, nil)
	return c.nc.Close()
}

func (c *conn) Reset(ctx context.Context) error {
	return nil
}

func (c *conn) Ping(ctx context.Context) health.Result {
	start := time.Now()
	if c.nc == nil {
		return health.Result{Healthy: false, Message: "not connected", CheckedAt: start}
	}
	_, err := c.roundTrip(StatementPing, nil)
	if err != nil {
		return health.Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}
	return health.Result{Healthy: true, Message: "pong", CheckedAt: start, Duration: time.Since(start)}
}

func (c *conn) Close() error {
	if c.nc == nil {
		return nil
	}
	return c.nc.Close()
}

func (c *conn) BeginTransaction(ctx context.Context) error {
	_, err := c.roundTrip(StatementBeginTransaction, nil)
	return err
}

func (c *conn) Commit(ctx context.Context) error {
	_, err := c.roundTrip(StatementCommit, nil)
	return err
}

func (c *conn) Rollback(ctx context.Context) error {
	_, err := c.roundTrip(StatementRollback, nil)
	return err
}

func (c *conn) Savepoint(ctx context.Context, name string) error {
	var body bytes.Buffer
	PutString(&body, name)
	_, err := c.roundTrip(StatementSavepoint, body.Bytes())
	return err
}

func (c *conn) RollbackTo(ctx context.Context, name string) error {
	var body bytes.Buffer
	PutString(&body, name)
	_, err := c.roundTrip(StatementRollbackTo, body.Bytes())
	return err
}

// Execute sends binding's SQL text and parameters as one Query statement
// and materializes the response rows into info's result buffer, one tuple
// per row, in proj's field order.
func (c *conn) Execute(ctx context.Context, binding *planner.Binding, proj *planner.Projection, work, result *memscope.Scope, info backend.CollectorInfo) (backend.ExecResult, error) {
	start := time.Now()

	var req bytes.Buffer
	PutString(&req, binding.SQL)
	_ = binary.Write(&req, binary.BigEndian, uint32(len(binding.Params)))
	for _, p := range binding.Params {
		if err := PutValue(&req, p); err != nil {
			return backend.ExecResult{}, err
		}
	}

	respBody, err := c.roundTrip(StatementQuery, req.Bytes())
	if err != nil {
		return backend.ExecResult{}, err
	}
	queryDone := time.Now()

	rows, err := decodeRows(respBody, proj, info)
	if err != nil {
		return backend.ExecResult{}, err
	}

	return backend.ExecResult{
		QueryDuration:     queryDone.Sub(start),
		FormationDuration: time.Since(queryDone),
		Rows:              rows,
	}, nil
}

func decodeRows(body []byte, proj *planner.Projection, info backend.CollectorInfo) (int, error) {
	r := bytes.NewReader(body)
	var rowCount uint32
	if err := binary.Read(r, binary.BigEndian, &rowCount); err != nil {
		return 0, fmt.Errorf("griddb: reading row count: %w", err)
	}

	fields := []catalog.HeapField(nil)
	for _, f := range proj.Fields {
		fields = append(fields, *f.Field)
	}

	for i := uint32(0); i < rowCount; i++ {
		tup, err := info.Buffers.Allocate(info.ResultBuffer, true)
		if err != nil {
			return 0, err
		}
		for _, f := range fields {
			v, isNull, err := GetValue(r)
			if err != nil {
				return 0, fmt.Errorf("griddb: reading field %s: %w", f.Name, err)
			}
			if err := tup.SetField(f.Name, v, isNull); err != nil {
				return 0, err
			}
		}
		if err := info.Collector.Collect(info.State, []*heap.Tuple{tup}, []heap.HTP{tup.Pointer}); err != nil {
			return 0, err
		}
	}
	return int(rowCount), nil
}
