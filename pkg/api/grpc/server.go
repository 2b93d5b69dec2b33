// Package grpcapi implements the gRPC dice service. Messages are protobuf
// well-known types so any gRPC client can call it without generated stubs.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lemonberrylabs/dicenotation/pkg/dice"
	"github.com/lemonberrylabs/dicenotation/pkg/roll"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

// Server implements the dice gRPC service and the standard health service.
type Server struct {
	svc    *roll.Service
	grpc   *grpc.Server
	health *health.Server
}

var _ DiceServiceServer = (*Server)(nil)

// New creates a new gRPC server backed by svc.
func New(svc *roll.Service) *Server {
	srv := &Server{
		svc:    svc,
		health: health.NewServer(),
	}

	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterDiceServiceServer(gs, srv)
	grpc_health_v1.RegisterHealthServer(gs, srv.health)
	srv.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	srv.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop marks the server as not serving and stops it gracefully.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// --- Dice Service ---

func (s *Server) Roll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	notation := stringField(req, "notation")
	if notation == "" {
		return nil, status.Error(codes.InvalidArgument, "notation is required")
	}
	seed, err := seedField(req)
	if err != nil {
		return nil, err
	}

	r, err := s.svc.Roll(ctx, roll.Request{Notation: notation, Seed: seed})
	if err != nil {
		return nil, toStatus(err)
	}
	return rollToStruct(r)
}

func (s *Server) RollPreset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "name")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	seed, err := seedField(req)
	if err != nil {
		return nil, err
	}

	r, err := s.svc.RollPreset(ctx, name, seed)
	if err != nil {
		return nil, toStatus(err)
	}
	return rollToStruct(r)
}

func (s *Server) GetRoll(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	r, err := s.svc.GetRoll(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return rollToStruct(r)
}

func (s *Server) Format(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "notation is required")
	}
	canonical, err := s.svc.Format(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(canonical), nil
}

// --- Helpers ---

func toStatus(err error) error {
	switch {
	case dice.IsInvalidExpression(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case dice.IsEvaluationError(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// seedField reads an optional seed given as a number or, to keep all 64
// bits, as a decimal string.
func seedField(s *structpb.Struct) (*int64, error) {
	v, ok := s.GetFields()["seed"]
	if !ok {
		return nil, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return nil, status.Errorf(codes.InvalidArgument, "seed %v is not an exact integer; pass it as a string", n)
		}
		seed := int64(n)
		return &seed, nil
	case *structpb.Value_StringValue:
		seed, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid seed %q", kind.StringValue)
		}
		return &seed, nil
	default:
		return nil, status.Error(codes.InvalidArgument, "seed must be a number or a string")
	}
}

func rollToStruct(r *store.Roll) (*structpb.Struct, error) {
	entries := make([]interface{}, len(r.Dice))
	for i, e := range r.Dice {
		entries[i] = map[string]interface{}{
			"sides":  e.Sides,
			"result": e.Result,
		}
	}

	fields := map[string]interface{}{
		"id":         r.ID,
		"notation":   r.Notation,
		"canonical":  r.Canonical,
		"total":      r.Total,
		"dice":       entries,
		"seed":       strconv.FormatInt(r.Seed, 10),
		"createTime": r.CreateTime.Format(time.RFC3339Nano),
	}
	if r.Preset != "" {
		fields["preset"] = r.Preset
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode roll: %v", err)
	}
	return out, nil
}
