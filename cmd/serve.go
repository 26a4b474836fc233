package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithmutahir/timeclock/internal/attendance"
	"github.com/codewithmutahir/timeclock/internal/config"
	"github.com/codewithmutahir/timeclock/internal/database/postgres"
	"github.com/codewithmutahir/timeclock/internal/detector"
	"github.com/codewithmutahir/timeclock/internal/verify"
	"github.com/codewithmutahir/timeclock/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the time clock API server",
	Long: `Start the Timeclock API server.
The server exposes the attendance clock endpoints, face enrollment and
identification, and the hold-to-verify verification sessions that kiosk
clients drive by pushing camera frames.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("no-hnsw", false, "Skip building the in-memory identify index, fall back to pgvector queries")
}

// initIdentifyIndex builds the in-memory HNSW index over enrolled descriptors.
func initIdentifyIndex(ctx context.Context, faceRepo *postgres.FaceRepository) {
	fmt.Println("Building in-memory HNSW index for face identification...")
	if err := faceRepo.EnableHNSW(ctx); err != nil {
		fmt.Printf("Warning: failed to build identify index: %v\n", err)
		fmt.Println("Identification will use pgvector queries (slower)")
		return
	}
	fmt.Printf("Identify index built with %d enrolled descriptors\n", faceRepo.HNSWCount())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	attendanceRepo := postgres.NewAttendanceRepository(pool)
	faceRepo := postgres.NewFaceRepository(pool)
	if !mustGetBool(cmd, "no-hnsw") {
		initIdentifyIndex(ctx, faceRepo)
	}

	engine := attendance.NewEngine(attendanceRepo)
	faceDetector := detector.NewHTTPDetector(&cfg.Detector)
	manager := verify.NewManager(&cfg.Verify, &cfg.Guidance, faceDetector)
	go manager.Run(ctx)

	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	server := web.NewServer(cfg, port, host, engine, attendanceRepo, faceRepo, manager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Timeclock API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
