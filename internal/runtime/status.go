package runtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/drblury/geobridge/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/geobridge/internal/runtime/logging"
	"github.com/drblury/geobridge/transport"
)

// StatusSnapshot is served on /status.
type StatusSnapshot struct {
	Topic        string                 `json:"topic"`
	PubSubSystem string                 `json:"pubsub_system"`
	Capabilities transport.Capabilities `json:"capabilities"`
	Schemas      []string               `json:"schemas"`
	Running      bool                   `json:"running"`
	Draining     bool                   `json:"draining"`
	InFlight     int64                  `json:"in_flight"`
	StartedAt    time.Time              `json:"started_at"`
	Uptime       string                 `json:"uptime"`
	Queries      QueryStatsSnapshot     `json:"queries"`
	Resources    ResourceUsage          `json:"resources"`
}

// Status reports what the bridge is doing right now.
func (s *Service) Status() StatusSnapshot {
	s.admitMu.Lock()
	draining := s.draining
	s.admitMu.Unlock()

	names := s.schemas.Names()
	schemas := make([]string, 0, len(names))
	for _, n := range names {
		schemas = append(schemas, string(n))
	}

	return StatusSnapshot{
		Topic:        s.Conf.Topic,
		PubSubSystem: s.Conf.PubSubSystem,
		Capabilities: transport.DefaultRegistry.GetCapabilities(s.Conf.PubSubSystem),
		Schemas:      schemas,
		Running:      s.router.IsRunning(),
		Draining:     draining,
		InFlight:     s.inflightCount.Load(),
		StartedAt:    s.startedAt,
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		Queries:      s.stats.Snapshot(),
		Resources:    s.resources.Snapshot(),
	}
}

func (s *Service) registerStatusHandlers() {
	if s.Conf.StatusPort <= 0 {
		return
	}
	s.RegisterHTTPHandler(s.Conf.StatusPort, "/healthz", http.HandlerFunc(s.handleHealth))
	s.RegisterHTTPHandler(s.Conf.StatusPort, "/status", http.HandlerFunc(s.handleStatus))
}

// handleHealth answers 200 while the router consumes and shutdown has not
// begun, 503 otherwise.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.Status()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !st.Running || st.Draining {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable\n"))
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if origin := s.allowedCORSOrigin(r.Header.Get("Origin")); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := jsoncodec.Marshal(s.Status())
	if err != nil {
		s.Logger.Error("Failed to encode status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		s.Logger.Debug("Writing status response failed", loggingpkg.LogFields{"error": err.Error()})
	}
}

func (s *Service) allowedCORSOrigin(requestOrigin string) string {
	if requestOrigin == "" {
		return ""
	}
	for _, allowed := range s.Conf.StatusCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
