// Package server provides the HTTP surface of the XOP service.
//
// # XOP Endpoint
//
// POST {basePath}/{action} - Runs an action over the request body. The
// request Content-Type must be the multipart/related header of the MTOM
// message; other request headers (apiKey, documentId, attachmentURL) are
// visible to the action as message headers, and query parameters are
// available as request.queryparam.{name} references. Request bodies may be
// gzip-encoded; responses are gzip-encoded when Accept-Encoding allows it.
//
// EDIT_1 and TRANSFORM_TO_EMBEDDED answer with the rewritten message.
// EXTRACT_SOAP and GET_BASE64STR answer with a JSON object of the xop_
// outputs. Input errors give 400, other failures 500.
//
// When auth.oauth2.issuer is configured the endpoint requires a bearer JWT
// signed by a key from the configured JWKS.
//
// # Health & Metrics
//
//   - GET /health  - Liveness check
//   - GET /metrics - Prometheus metrics (if enabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-xop/internal/auth"
	"github.com/sirosfoundation/go-xop/internal/config"
	"github.com/sirosfoundation/go-xop/internal/metrics"
	"github.com/sirosfoundation/go-xop/pkg/compression"
	"github.com/sirosfoundation/go-xop/pkg/xop"
)

// RequestIDHeader carries the per-request identifier in responses
const RequestIDHeader = "X-Request-ID"

// Server is the XOP HTTP server
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	httpSrv *http.Server
	handler *xop.Handler
	metrics *metrics.Metrics
	gzip    *compression.Compressor
	auth    *auth.Authenticator
}

// New creates a new server. m may be nil when metrics are disabled.
func New(cfg *config.Config, handler *xop.Handler, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		handler: handler,
		metrics: m,
		gzip:    compression.NewCompressor().WithMaxSize(cfg.Server.MaxBodySize),
		auth:    auth.NewAuthenticator(&cfg.Auth.OAuth2, logger),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var h http.Handler = mux
	if m != nil {
		h = m.InstrumentHandler(mux)
	}

	s.httpSrv = &http.Server{
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	if s.config.Server.TLS.Enabled {
		return s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	basePath := strings.TrimSuffix(s.config.Server.BasePath, "/")

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST "+basePath+"/{action}", s.withRequestID(s.withAuth(s.handleExecute)))

	if s.metrics != nil && s.config.Metrics.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Metrics.Path, s.metrics.Handler())
	}
}

// Middleware

type contextKey string

const requestIDContextKey contextKey = "request_id"

func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next(w, r.WithContext(ctx))
	}
}

// withAuth rejects requests without a valid bearer token when OAuth2 is
// configured
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	if !s.auth.IsEnabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ValidateRequest(r)
		if err != nil {
			s.logger.Warn("authentication failed",
				"request_id", RequestIDFromContext(r.Context()),
				"error", err,
			)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	}
}

// RequestIDFromContext returns the request ID set by the server
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDContextKey).(string); ok {
		return v
	}
	return ""
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// XOP handlers

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFromContext(r.Context())
	logger := s.logger.With("request_id", requestID)
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		logger = logger.With("subject", claims.Subject)
	}

	logger.Info("received XOP request",
		"action", r.PathValue("action"),
		"content-type", r.Header.Get("Content-Type"),
		"content-length", r.ContentLength,
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("failed to read request body", "error", err)
		s.jsonError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	body, err = s.gzip.Decode(r.Header.Get("Content-Encoding"), body)
	if err != nil {
		if errors.Is(err, compression.ErrTooLarge) {
			s.jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("failed to decode request body", "error", err)
		status := http.StatusBadRequest
		if errors.Is(err, compression.ErrUnsupportedEncoding) {
			status = http.StatusUnsupportedMediaType
		}
		s.jsonError(w, err.Error(), status)
		return
	}

	msg := xop.NewMemoryMessage("", body)
	for name, values := range r.Header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Encoding", "Content-Length":
			continue
		}
		if len(values) > 0 {
			msg.SetHeader(name, values[0])
		}
	}

	flow := xop.NewMemoryFlow()
	flow.SetMessage(xop.DefaultSource, msg)
	flow.SetVariable("request.id", requestID)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			flow.SetVariable("request.queryparam."+name, values[0])
		}
	}

	h := s.handler.WithProperties(map[string]string{
		xop.PropertySource: xop.DefaultSource,
		xop.PropertyAction: r.PathValue("action"),
	})
	if err := h.Run(r.Context(), flow); err != nil {
		status := http.StatusInternalServerError
		if xop.IsInputError(err) {
			status = http.StatusBadRequest
		}
		s.jsonResponse(w, outputs(flow), status)
		return
	}

	out := outputs(flow)
	action := xop.ParseAction(out[xop.OutputAction])
	logger.Info("XOP request processed", "action", action.String())

	if action.RewritesContent() {
		s.writeBody(w, r, msg.Header("Content-Type"), msg.Bytes())
		return
	}
	data, err := json.Marshal(out)
	if err != nil {
		s.jsonError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	s.writeBody(w, r, "application/json", data)
}

// writeBody sends a 200 response, gzip-encoded when the client accepts it
// and the content is not already compressed
func (s *Server) writeBody(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Add("Vary", "Accept-Encoding")
	if compression.AcceptsGzip(r.Header.Get("Accept-Encoding")) && compression.ShouldCompress(contentType) {
		if compressed, err := s.gzip.Compress(body); err == nil {
			w.Header().Set("Content-Encoding", compression.EncodingGzip)
			body = compressed
		} else {
			s.logger.Warn("failed to compress response", "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// outputs collects the xop_ variables of flow without their prefix
func outputs(flow *xop.MemoryFlow) map[string]string {
	out := make(map[string]string)
	for name, value := range flow.Variables() {
		if key, ok := strings.CutPrefix(name, xop.VarPrefix); ok {
			out[key] = value
		}
	}
	return out
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}
