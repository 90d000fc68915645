package rpcadapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
)

// Service is the server side of this adapter: a reference implementation
// of serviceName that tracks one open session per Connect call and
// answers every Execute with a single canned row set, the same
// not-wired-to-a-live-backend stance pkg/backend/griddb's fake server
// takes — this adapter's point is exercising the RPC plumbing, not
// fronting a real remote store.
type Service struct {
	mu       sync.Mutex
	sessions map[string]bool
	rows     [][]any
}

// NewService builds a Service that answers every session's Execute call
// with rows.
func NewService(rows [][]any) *Service {
	return &Service{sessions: make(map[string]bool), rows: rows}
}

// NewGRPCServer builds a *grpc.Server with svc already registered under
// serviceName, ready for Serve.
func NewGRPCServer(svc *Service) *grpc.Server {
	s := grpc.NewServer()
	s.RegisterService(&ServiceDesc, svc)
	return s
}

func (s *Service) Connect(ctx context.Context, req *ConnectRequest) (*ConnectResponse, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = true
	s.mu.Unlock()
	return &ConnectResponse{SessionID: id}, nil
}

func (s *Service) requireSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sessions[id] {
		return fmt.Errorf("rpcadapter: unknown session %q", id)
	}
	return nil
}

func (s *Service) Disconnect(ctx context.Context, req *SessionRequest) (*Empty, error) {
	s.mu.Lock()
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()
	return &Empty{}, nil
}

func (s *Service) Reset(ctx context.Context, req *SessionRequest) (*Empty, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) Ping(ctx context.Context, req *SessionRequest) (*PingResponse, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return &PingResponse{Healthy: false, Message: err.Error()}, nil
	}
	return &PingResponse{Healthy: true, Message: "pong"}, nil
}

func (s *Service) BeginTransaction(ctx context.Context, req *SessionRequest) (*Empty, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) Commit(ctx context.Context, req *SessionRequest) (*Empty, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) Rollback(ctx context.Context, req *SessionRequest) (*Empty, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) Savepoint(ctx context.Context, req *SavepointRequest) (*Empty, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) RollbackTo(ctx context.Context, req *SavepointRequest) (*Empty, error) {
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Service) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	start := time.Now()
	if err := s.requireSession(req.SessionID); err != nil {
		return nil, err
	}

	rows := make([][]Value, len(s.rows))
	for i, row := range s.rows {
		vrow := make([]Value, len(row))
		for j, v := range row {
			val, err := encodeValue(v)
			if err != nil {
				return nil, err
			}
			vrow[j] = val
		}
		rows[i] = vrow
	}
	return &ExecuteResponse{
		Rows:               rows,
		QueryDurationNanos: int64(time.Since(start)),
	}, nil
}

func (s *Service) Close(ctx context.Context, req *SessionRequest) (*Empty, error) {
	s.mu.Lock()
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()
	return &Empty{}, nil
}

// ServiceDesc is this adapter's hand-rolled equivalent of a generated
// _grpc.pb.go's service descriptor: one MethodDesc per unary RPC, each
// decoding its request with the registered json codec and dispatching to
// the matching Service method.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Connect", Handler: connectHandler},
		{MethodName: "Disconnect", Handler: disconnectHandler},
		{MethodName: "Reset", Handler: resetHandler},
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "BeginTransaction", Handler: beginTransactionHandler},
		{MethodName: "Commit", Handler: commitHandler},
		{MethodName: "Rollback", Handler: rollbackHandler},
		{MethodName: "Savepoint", Handler: savepointHandler},
		{MethodName: "RollbackTo", Handler: rollbackToHandler},
		{MethodName: "Execute", Handler: executeHandler},
		{MethodName: "Close", Handler: closeHandler},
	},
}

func connectHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ConnectRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Connect(ctx, req)
}

func disconnectHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Disconnect(ctx, req)
}

func resetHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Reset(ctx, req)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Ping(ctx, req)
}

func beginTransactionHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).BeginTransaction(ctx, req)
}

func commitHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Commit(ctx, req)
}

func rollbackHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Rollback(ctx, req)
}

func savepointHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SavepointRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Savepoint(ctx, req)
}

func rollbackToHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SavepointRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).RollbackTo(ctx, req)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ExecuteRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Execute(ctx, req)
}

func closeHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SessionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*Service).Close(ctx, req)
}
