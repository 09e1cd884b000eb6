package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/contentmesh/dispatch"
	"github.com/c360studio/contentmesh/task"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// timestampLayout is the UTC layout used in response timestamps.
const timestampLayout = "2006-01-02T15:04:05Z"

// ServiceInfo describes the running service for the informational endpoints.
type ServiceInfo struct {
	Version       string
	Provider      string
	Model         string
	AIAvailable   bool
	MaxTargetSize int
}

// Server serves one profile's routing table.
type Server struct {
	profile    *Profile
	dispatcher *dispatch.Dispatcher
	info       ServiceInfo
	metrics    http.Handler
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithClock sets the time source for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a server for profile backed by d.
func NewServer(profile *Profile, d *dispatch.Dispatcher, info ServiceInfo, opts ...Option) *Server {
	s := &Server{
		profile:    profile,
		dispatcher: d,
		info:       info,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.info.MaxTargetSize <= 0 {
		s.info.MaxTargetSize = task.DefaultMaxTargetSize
	}
	return s
}

// RegisterHTTPHandlers registers the profile routes on mux.
//
//	GET  /metrics   (when a metrics handler is set)
//	*    /          routed through the profile table
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.HandleFunc("/", s.handleRoute)
}

// Handler returns the complete HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)
	return withCORS(mux)
}

// handleRoute resolves the request against the profile table.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	route, ok := s.profile.Match(r.Method, r.URL.Path)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	switch route.Endpoint {
	case EndpointHealth:
		s.handleHealth(w)
	case EndpointCapabilities:
		s.handleCapabilities(w)
	case EndpointServices:
		s.handleServices(w)
	case EndpointServiceStatus:
		s.handleServiceStatus(w, strings.TrimPrefix(r.URL.Path, "/services/"))
	case EndpointInfo:
		s.handleInfo(w)
	case EndpointTask:
		s.handleTask(w, r, route)
	default:
		s.writeError(w, http.StatusNotFound, "Endpoint not found")
	}
}

// ----------------------------------------------------------------------------
// POST task routes
// ----------------------------------------------------------------------------

// handleTask decodes the payload and dispatches it under the route's kind.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request, route Route) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	payload, err := decodePayload(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		s.logger.Info("Rejected request body", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	env := s.dispatcher.Dispatch(r.Context(), route.Kind, payload)
	writeJSON(w, env.HTTPStatus(), env)
}

// decodePayload reads a JSON object. An empty body is an empty object.
func decodePayload(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return payload, nil
}

// ----------------------------------------------------------------------------
// GET informational routes
// ----------------------------------------------------------------------------

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string             `json:"status"`
	Service      string             `json:"service"`
	Version      string             `json:"version"`
	Timestamp    string             `json:"timestamp"`
	Provider     string             `json:"provider,omitempty"`
	Model        string             `json:"model,omitempty"`
	Capabilities HealthCapabilities `json:"capabilities"`
}

// HealthCapabilities summarises what the service can do right now.
type HealthCapabilities struct {
	AIAvailable  bool        `json:"ai_available"`
	TaskKinds    []task.Kind `json:"task_kinds"`
	ContentTypes []string    `json:"content_types,omitempty"`
	MaxWordCount int         `json:"max_word_count"`
}

func (s *Server) handleHealth(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   s.profile.Name,
		Version:   s.info.Version,
		Timestamp: s.timestamp(),
		Provider:  s.info.Provider,
		Model:     s.info.Model,
		Capabilities: HealthCapabilities{
			AIAvailable:  s.info.AIAvailable,
			TaskKinds:    s.taskKinds(),
			ContentTypes: s.contentTypes(),
			MaxWordCount: s.info.MaxTargetSize,
		},
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": s.profile.Name,
		"version": s.info.Version,
		"supported_content_types": []string{
			task.ContentTypeBlogPost,
			task.ContentTypeSocialMedia,
			"email_newsletter",
			task.ContentTypeGeneric,
		},
		"task_kinds": s.taskKinds(),
		"ai_integration": map[string]any{
			"provider":      s.info.Provider,
			"primary_model": s.info.Model,
			"fallback":      "template-based",
			"available":     s.info.AIAvailable,
		},
		"max_word_count":      s.info.MaxTargetSize,
		"quality_score_range": []float64{4.0, 5.0},
	})
}

// serviceEntry describes one task route on GET /services.
type serviceEntry struct {
	Name        string    `json:"name"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Kind        task.Kind `json:"task_kind"`
	Description string    `json:"description,omitempty"`
	AIAvailable bool      `json:"ai_available"`
	Fallback    string    `json:"fallback"`
}

func (s *Server) services() []serviceEntry {
	var out []serviceEntry
	for _, r := range s.profile.TaskRoutes() {
		if strings.Contains(r.Pattern, "*") {
			continue
		}
		name := strings.Trim(strings.ReplaceAll(r.Pattern, "/", "-"), "-")
		if name == "" {
			name = "root"
		}
		out = append(out, serviceEntry{
			Name:        name,
			Method:      r.Method,
			Path:        r.Pattern,
			Kind:        r.Kind,
			Description: r.Description,
			AIAvailable: s.info.AIAvailable,
			Fallback:    "template-based",
		})
	}
	return out
}

func (s *Server) handleServices(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   s.profile.Name,
		"services":  s.services(),
		"timestamp": s.timestamp(),
	})
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, name string) {
	for _, svc := range s.services() {
		if svc.Name == name {
			writeJSON(w, http.StatusOK, map[string]any{
				"service":   svc,
				"status":    "healthy",
				"timestamp": s.timestamp(),
			})
			return
		}
	}
	s.writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown service %q", name))
}

func (s *Server) handleInfo(w http.ResponseWriter) {
	var endpoints []string
	for _, r := range s.profile.Routes {
		if r.Description == "" || r.Endpoint == EndpointNotFound {
			continue
		}
		endpoints = append(endpoints, fmt.Sprintf("%s %s - %s", r.Method, r.Pattern, r.Description))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":         s.profile.Name,
		"description":     s.profile.Description,
		"version":         s.info.Version,
		"endpoints":       endpoints,
		"provider":        s.info.Provider,
		"model":           s.info.Model,
		"real_ai_enabled": s.info.AIAvailable,
		"timestamp":       s.timestamp(),
	})
}

// taskKinds lists the concrete kinds reachable through the profile.
func (s *Server) taskKinds() []task.Kind {
	seen := make(map[task.Kind]bool)
	var kinds []task.Kind
	add := func(k task.Kind) {
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	for _, r := range s.profile.TaskRoutes() {
		if r.Kind == task.KindAuto {
			add(task.KindContentGeneration)
			add(task.KindSocialPost)
			add(task.KindGeneric)
			continue
		}
		add(r.Kind)
	}
	return kinds
}

// contentTypes lists content types accepted by auto routes.
func (s *Server) contentTypes() []string {
	for _, r := range s.profile.TaskRoutes() {
		if r.Kind == task.KindAuto {
			return []string{task.ContentTypeBlogPost, task.ContentTypeSocialMedia, task.ContentTypeGeneric}
		}
	}
	return nil
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

// errorResponse is the body of transport-level errors.
type errorResponse struct {
	Error      bool   `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Timestamp  string `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:      true,
		Message:    message,
		StatusCode: status,
		Timestamp:  s.timestamp(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	// Response is already partially written on error; nothing to report.
	_ = enc.Encode(v)
}
