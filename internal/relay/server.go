package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppp/pppctl/internal/constants"
	loggerPkg "github.com/ppp/pppctl/internal/logger"
)

const requestIDByteSize = 8

// Server is the relay endpoint: it performs upstream calls described by envelopes
// and passes status and body back unchanged.
type Server struct {
	router   *chi.Mux
	upstream *http.Client
	logger   *slog.Logger
	metrics  *serverMetrics
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithUpstreamClient sets the HTTP client used for upstream calls.
func WithUpstreamClient(hc *http.Client) ServerOption {
	return func(s *Server) {
		s.upstream = hc
	}
}

// WithRegisterer registers the relay metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) {
		s.metrics = newServerMetrics(reg)
	}
}

// NewServer creates a relay server.
func NewServer(log *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		upstream: &http.Client{Timeout: constants.DefaultRequestTimeout},
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newServerMetrics(prometheus.DefaultRegisterer)
	}

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(corsMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.Get("/"+constants.RelayPingPath, s.handlePing)
	s.router.Post("/"+constants.RelayFetchPath, s.handleFetch)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// ListenAndServe serves the relay on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  constants.ServerReadTimeout,
		WriteTimeout: constants.ServerWriteTimeout,
		IdleTimeout:  constants.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down relay")
		return srv.Shutdown(shutdownCtx)
	}
}

// wireEnvelope accepts the upstream body either as a JSON string or as a JSON document.
type wireEnvelope struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

func (w wireEnvelope) envelope() (Envelope, error) {
	env := Envelope{Method: w.Method, URL: w.URL, Headers: w.Headers}
	raw := bytes.TrimSpace(w.Body)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &env.Body); err != nil {
			return Envelope{}, fmt.Errorf("invalid body: %w", err)
		}
	default:
		env.Body = string(raw)
		if env.Headers == nil {
			env.Headers = map[string]string{}
		}
		if _, ok := env.Headers[constants.ContentTypeHeader]; !ok {
			env.Headers[constants.ContentTypeHeader] = constants.JSONContentType
		}
	}
	return env, nil
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(constants.ContentTypeHeader, "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(constants.RelayPong))
}

func (s *Server) handleFetch(w http.ResponseWriter, req *http.Request) {
	log := loggerPkg.DeriveRequestLogger(req.Context(), s.logger)

	var wire wireEnvelope
	if err := json.NewDecoder(req.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope", err.Error())
		return
	}
	env, err := wire.envelope()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope", err.Error())
		return
	}
	target, err := url.Parse(env.URL)
	if err != nil || (target.Scheme != "https" && target.Scheme != "http") || target.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid envelope", "url must be an absolute http(s) URL")
		return
	}

	var body io.Reader = http.NoBody
	if env.Body != "" {
		body = strings.NewReader(env.Body)
	}
	upReq, err := http.NewRequestWithContext(req.Context(), env.EffectiveMethod(), target.String(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope", err.Error())
		return
	}
	for k, v := range env.Headers {
		upReq.Header.Set(k, v)
	}

	log.Debug("calling external service", "context", map[string]any{
		"operation": "Relay.Upstream",
		"method":    upReq.Method,
		"host":      target.Host,
		"path":      target.Path,
	})

	start := time.Now()
	resp, err := s.upstream.Do(upReq)
	if err != nil {
		log.Error("upstream call failed", "error", err, "host", target.Host)
		writeError(w, http.StatusBadGateway, "upstream call failed", err.Error())
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if ct := resp.Header.Get(constants.ContentTypeHeader); ct != "" {
		w.Header().Set(constants.ContentTypeHeader, ct)
	}
	w.Header().Set(constants.CacheControlHeader, constants.NoCache)
	w.WriteHeader(resp.StatusCode)
	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		log.Warn("failed to copy upstream body", "error", copyErr)
	}

	log.Info("relayed upstream call",
		"method", upReq.Method,
		"host", target.Host,
		"status", resp.StatusCode,
		"bytes", n,
		"duration", time.Since(start).String())
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set(constants.ContentTypeHeader, constants.JSONContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"details": details,
	})
}

func generateRequestID() string {
	b := make([]byte, requestIDByteSize)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestID := loggerPkg.GetRequestID(req.Context())
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := loggerPkg.WithRequestID(req.Context(), requestID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// corsMiddleware lets browser pages call the relay from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control, Pragma")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, req)
	})
}
