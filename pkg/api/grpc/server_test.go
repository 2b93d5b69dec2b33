package grpcapi

import (
	"context"
	"net"
	"strconv"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lemonberrylabs/dicenotation/pkg/preset"
	"github.com/lemonberrylabs/dicenotation/pkg/roll"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

func startTestServer(t *testing.T) (*roll.Service, string, func()) {
	t.Helper()
	svc := roll.NewService(store.New())
	srv := New(svc)

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.grpc.Serve(lis)

	return svc, lis.Addr().String(), func() {
		srv.grpc.Stop()
	}
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestRollAndGet(t *testing.T) {
	_, addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewDiceServiceClient(conn)
	ctx := context.Background()

	out, err := client.Roll(ctx, mustStruct(t, map[string]interface{}{
		"notation": "4d6 keep highest 3",
		"seed":     "9007199254740993",
	}))
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}

	fields := out.GetFields()
	if got := fields["canonical"].GetStringValue(); got != "4d6k3" {
		t.Errorf("canonical: got %q, want %q", got, "4d6k3")
	}
	if got := fields["seed"].GetStringValue(); got != "9007199254740993" {
		t.Errorf("seed should round trip exactly, got %q", got)
	}
	if got := len(fields["dice"].GetListValue().GetValues()); got != 4 {
		t.Errorf("got %d dice, want 4", got)
	}
	total := fields["total"].GetNumberValue()
	if total < 3 || total > 18 {
		t.Errorf("total %v out of range", total)
	}

	got, err := client.GetRoll(ctx, wrapperspb.String(fields["id"].GetStringValue()))
	if err != nil {
		t.Fatalf("GetRoll: %v", err)
	}
	if got.GetFields()["total"].GetNumberValue() != total {
		t.Errorf("stored total differs")
	}
}

func TestRollSeedIsDeterministic(t *testing.T) {
	_, addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewDiceServiceClient(conn)
	ctx := context.Background()

	var totals []float64
	for i := 0; i < 2; i++ {
		out, err := client.Roll(ctx, mustStruct(t, map[string]interface{}{
			"notation": "10d20e20",
			"seed":     42,
		}))
		if err != nil {
			t.Fatalf("Roll: %v", err)
		}
		if got := out.GetFields()["seed"].GetStringValue(); got != strconv.Itoa(42) {
			t.Errorf("seed: got %q", got)
		}
		totals = append(totals, out.GetFields()["total"].GetNumberValue())
	}
	if totals[0] != totals[1] {
		t.Errorf("same seed gave %v and %v", totals[0], totals[1])
	}
}

func TestFormat(t *testing.T) {
	_, addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewDiceServiceClient(conn)
	out, err := client.Format(context.Background(), wrapperspb.String("(d6, d6, d8) drop lowest 1"))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if out.GetValue() != "(d6, d6, d8) drop 1" {
		t.Errorf("got %q", out.GetValue())
	}
}

func TestRollPreset(t *testing.T) {
	svc, addr, cleanup := startTestServer(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.SavePreset(ctx, preset.Preset{Name: "fireball", Notation: "8d6"}); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}

	conn := dial(t, addr)
	defer conn.Close()

	client := NewDiceServiceClient(conn)
	out, err := client.RollPreset(ctx, mustStruct(t, map[string]interface{}{"name": "fireball"}))
	if err != nil {
		t.Fatalf("RollPreset: %v", err)
	}
	if got := out.GetFields()["preset"].GetStringValue(); got != "fireball" {
		t.Errorf("preset: got %q", got)
	}
	if got := len(out.GetFields()["dice"].GetListValue().GetValues()); got != 8 {
		t.Errorf("got %d dice, want 8", got)
	}
}

func TestErrorCodes(t *testing.T) {
	_, addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewDiceServiceClient(conn)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{
			name: "missing notation",
			call: func() error {
				_, err := client.Roll(ctx, mustStruct(t, map[string]interface{}{}))
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "invalid notation",
			call: func() error {
				_, err := client.Roll(ctx, mustStruct(t, map[string]interface{}{"notation": "d6 +"}))
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "fractional seed",
			call: func() error {
				_, err := client.Roll(ctx, mustStruct(t, map[string]interface{}{"notation": "d6", "seed": 1.5}))
				return err
			},
			want: codes.InvalidArgument,
		},
		{
			name: "division by zero",
			call: func() error {
				_, err := client.Roll(ctx, mustStruct(t, map[string]interface{}{"notation": "d6 / 0"}))
				return err
			},
			want: codes.FailedPrecondition,
		},
		{
			name: "unknown roll",
			call: func() error {
				_, err := client.GetRoll(ctx, wrapperspb.String("nope"))
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "unknown preset",
			call: func() error {
				_, err := client.RollPreset(ctx, mustStruct(t, map[string]interface{}{"name": "nope"}))
				return err
			},
			want: codes.NotFound,
		},
		{
			name: "format invalid",
			call: func() error {
				_, err := client.Format(ctx, wrapperspb.String("2d1"))
				return err
			},
			want: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := status.Code(err); got != tt.want {
				t.Errorf("code: got %v, want %v (%v)", got, tt.want, err)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	_, addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	for _, service := range []string{"", ServiceName} {
		resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("Check(%q): %v", service, err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Errorf("Check(%q): got %v", service, resp.GetStatus())
		}
	}
}
