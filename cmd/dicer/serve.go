package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lemonberrylabs/dicenotation/pkg/api"
	grpcapi "github.com/lemonberrylabs/dicenotation/pkg/api/grpc"
	"github.com/lemonberrylabs/dicenotation/pkg/mcptool"
	"github.com/lemonberrylabs/dicenotation/pkg/telemetry"
	"github.com/lemonberrylabs/dicenotation/web"
)

func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", "", "SQLite database path; empty keeps history in memory (env DICER_DB_PATH)")
	cmd.Flags().String("presets-dir", "", "Directory of YAML preset files to import (env DICER_PRESETS_DIR)")
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST, gRPC and web UI servers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env DICER_HTTP_PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env DICER_GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env DICER_HOST)")
	addStorageFlags(cmd)
	return cmd
}

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the dice tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol.
			log.SetOutput(os.Stderr)

			svc, err := setupService(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Repository().Close()

			return mcptool.Run(ctx, svc, version)
		},
	}
	addStorageFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("Error flushing traces: %v", err)
		}
	}()

	svc, err := setupService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Repository().Close()

	server := api.New(svc)
	web.New(svc).Register(server.App())
	grpcServer := grpcapi.New(svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("dicer listening on %s", cfg.HTTPAddr())
		return server.Listen(cfg.HTTPAddr())
	})
	g.Go(func() error {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr())
		return grpcServer.Serve(cfg.GRPCAddr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down dicer...")
		grpcServer.GracefulStop()
		return server.Shutdown()
	})

	return g.Wait()
}
