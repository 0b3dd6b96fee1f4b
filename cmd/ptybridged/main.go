// Command ptybridged serves PTY sessions over HTTP and WebSocket for hosts
// that talk to ptybridge as a daemon instead of embedding the library.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/termhost/ptybridge"
	"github.com/termhost/ptybridge/internal/config"
	"github.com/termhost/ptybridge/internal/logging"
	"github.com/termhost/ptybridge/internal/server"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides PTYBRIDGE_HOST/PTYBRIDGE_PORT)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	log := logging.NewFromEnv(cfg.Logging.Level, cfg.Logging.Development)
	defer log.Sync()

	listenAddr := cfg.Server.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	bridge := ptybridge.New(cfg, log)
	srv := server.New(cfg, log, bridge)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(listenAddr); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutting down", zap.String("signal", sig.String()))
		if err := srv.Close(); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	case err := <-errChan:
		log.Fatal("server error", zap.Error(err))
	}
}
