package app

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeHeader = "Content-Type"
)

func (a *Application) startWebServer() {
	cfg := a.getConfig()
	a.styled.Info("Starting WebServer...", "host", cfg.Server.Host, "port", cfg.Server.Port)

	mux := http.NewServeMux()

	a.registerRoutes()
	a.registry.WireUp(mux)

	var handler http.Handler = mux
	handler = a.corsMiddleware(handler)
	if cfg.Server.RequestLogging {
		handler = a.loggingMiddleware(handler)
	}
	a.server.Handler = handler

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.styled.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	a.styled.Info("Started WebServer", "bind", a.server.Addr)
}

// corsMiddleware allows any origin; the dashboard runs on a different
// port during development.
func (a *Application) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures status and size for access logging.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += int64(size)
	return size, err
}

func (rw *responseWriter) WriteHeader(s int) {
	rw.status = s
	rw.ResponseWriter.WriteHeader(s)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack keeps WebSocket upgrades working behind the logging wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (a *Application) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		a.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"size", rw.size,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"remote_addr", r.RemoteAddr)
	})
}
