// Package rpc exposes a minimal read-only EngineStatus gRPC service
// for monitoring a long-running graphine process from outside it:
// current epoch, resident-fragment counts per fragstate, and the
// message manager's pending dirty-set size. It is a thin observability
// shim over internal/scheduler.Scheduler, not a distributed execution
// mechanism — nothing here drives compute on another machine.
//
// There is no .proto/protoc step: GetStatus exchanges plain JSON
// messages over gRPC via the codec registered in codec.go, so the
// service descriptor and client stub below are hand-written the way a
// generated pb.go file would normally look, minus the generator.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/graphine/graphine/internal/scheduler"
)

const serviceName = "graphine.engine.v1.EngineStatus"

// StatusRequest takes no arguments; EngineStatus always reports the
// calling process's own scheduler.
type StatusRequest struct{}

// StatusResponse mirrors scheduler.Status over the wire.
type StatusResponse struct {
	Epoch          uint64           `json:"epoch"`
	FragmentCounts map[string]int64 `json:"fragment_counts"`
	DirtyCount     int64            `json:"dirty_count"`
}

// StatusProvider is satisfied by *scheduler.Scheduler[C] for any C: its
// Status method is non-generic, so the rpc package never needs to know
// the scheduler's PIE context type.
type StatusProvider interface {
	Status() scheduler.Status
}

// EngineStatusServer is the service implementation contract, matching
// the shape a protoc-gen-go-grpc Server interface would have.
type EngineStatusServer interface {
	GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
}

// server adapts a StatusProvider (the running Scheduler) to
// EngineStatusServer.
type server struct {
	provider StatusProvider
}

// NewServer returns an EngineStatusServer backed by provider.
func NewServer(provider StatusProvider) EngineStatusServer {
	return &server{provider: provider}
}

func (s *server) GetStatus(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	st := s.provider.Status()
	return &StatusResponse{
		Epoch:          st.Epoch,
		FragmentCounts: st.FragmentCounts,
		DirtyCount:     st.DirtyCount,
	}, nil
}

func _EngineStatus_GetStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineStatusServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EngineStatusServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is registered against a *grpc.Server with
// RegisterEngineStatusServer, the hand-written equivalent of a
// generated _ServiceDesc var.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EngineStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _EngineStatus_GetStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "engine_status",
}

// RegisterEngineStatusServer registers srv on s under ServiceDesc.
func RegisterEngineStatusServer(s *grpc.Server, srv EngineStatusServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewGRPCServer builds a *grpc.Server with EngineStatus already
// registered against provider, ready for s.Serve(lis). Callers decide
// the listener (TCP for a standalone status port, bufconn for tests).
func NewGRPCServer(provider StatusProvider) *grpc.Server {
	s := grpc.NewServer()
	RegisterEngineStatusServer(s, NewServer(provider))
	return s
}

// EngineStatusClient is the client-side stub, the hand-written
// equivalent of a generated _Client interface.
type EngineStatusClient interface {
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
}

type engineStatusClient struct {
	cc grpc.ClientConnInterface
}

// NewEngineStatusClient wraps cc (typically from grpc.NewClient or a
// bufconn-backed dial) in an EngineStatusClient.
func NewEngineStatusClient(cc grpc.ClientConnInterface) EngineStatusClient {
	return &engineStatusClient{cc: cc}
}

func (c *engineStatusClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
