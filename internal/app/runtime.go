package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

const testModeEnv = "EAXY_TEST_MODE"

var (
	testMode     bool
	testModeOnce sync.Once
)

// InTestMode reports whether binaries should skip runtime side effects.
// The flag is read once per process.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode = os.Getenv(testModeEnv) == "1"
	})
	return testMode
}

// NewServer builds the HTTP server from configuration.
func NewServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           handler,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}
}

// Serve runs srv until ctx is cancelled, then drains in-flight requests for
// at most grace.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
