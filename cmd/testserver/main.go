// Command testserver runs the CRM test application that pageflow suites can
// drive locally.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	-port       Port to listen on (default: 8080)
//	-host       Host to bind to (default: localhost)
//	-username   Accepted username (default: $PAGEFLOW_USERNAME or qa@example.com)
//	-password   Accepted password (default: $PAGEFLOW_PASSWORD or pageflow)
//	-delay      Delay added to every page response
//	-verbose    Log every request
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pageflow/testserver"
)

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	username := flag.String("username", envOr("PAGEFLOW_USERNAME", "qa@example.com"), "accepted username")
	password := flag.String("password", envOr("PAGEFLOW_PASSWORD", "pageflow"), "accepted password")
	delay := flag.Duration("delay", 0, "delay added to every page response")
	verbose := flag.Bool("verbose", false, "log every request")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}).
		Level(level).With().Timestamp().Logger()

	server := testserver.NewServer(testserver.Config{
		Username: *username,
		Password: *password,
		Delay:    *delay,
		Logger:   logger,
	})
	addr := fmt.Sprintf("%s:%d", *host, *port)
	srv := &http.Server{Addr: addr, Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}

	fmt.Println("pageflow Test Server")
	fmt.Println("====================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Pages:")
	fmt.Println("  GET  /login                        - Login form")
	fmt.Println("  GET  /home                         - Home with app launcher")
	fmt.Println("  GET  /secur/forgotpassword.jsp     - Password reset")
	fmt.Println("  GET  /lightning/o/Account/list     - Account list")
	fmt.Println("  GET  /lightning/o/Account/new      - New account form")
	fmt.Println("  GET  /lightning/r/Account/{id}/view - Account detail")
	fmt.Println("  GET  /health                       - Health check")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("addr", addr).Str("username", *username).Msg("test server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
