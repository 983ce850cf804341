package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrDegraded marks a probe result that is working but impaired.
var ErrDegraded = errors.New("degraded")

// Probe checks one dependency. A failing required probe makes the service
// unhealthy; a failing optional probe only degrades it.
type Probe struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

// DatabaseProbe is required. An exhausted pool reports degraded.
func DatabaseProbe(db *sql.DB) Probe {
	return Probe{
		Name:     "database",
		Required: true,
		Check: func(ctx context.Context) error {
			var one int
			if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
				return err
			}
			stats := db.Stats()
			if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
				return degradedError("connection pool exhausted")
			}
			return nil
		},
	}
}

// RedisProbe is optional: sessions and rate limits in Redis fail without
// taking the whole service down.
func RedisProbe(client *redis.Client) Probe {
	return Probe{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

type degradedError string

func (e degradedError) Error() string { return string(e) }
func (e degradedError) Is(target error) bool {
	return target == ErrDegraded
}

// HealthChecker reports liveness and dependency readiness
type HealthChecker struct {
	probes  []Probe
	version string
	timeout time.Duration
}

// NewHealthChecker creates a checker over probes.
func NewHealthChecker(version string, probes ...Probe) *HealthChecker {
	return &HealthChecker{probes: probes, version: version, timeout: 5 * time.Second}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	Required  bool      `json:"required"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Liveness always answers 200 while the process is serving.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// Readiness answers 503 when a required dependency is down.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// Check runs every probe in order and folds the results.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	overall := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	if len(h.probes) > 0 {
		overall.Dependencies = make(map[string]DependencyStatus, len(h.probes))
	}

	for _, p := range h.probes {
		start := time.Now()
		err := p.Check(ctx)
		dep := DependencyStatus{
			Status:    StatusHealthy,
			Required:  p.Required,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: start.UTC(),
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrDegraded):
			dep.Status = StatusDegraded
			dep.Message = err.Error()
			overall.Status = worse(overall.Status, StatusDegraded)
		default:
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			if p.Required {
				overall.Status = StatusUnhealthy
			} else {
				overall.Status = worse(overall.Status, StatusDegraded)
			}
		}
		overall.Dependencies[p.Name] = dep
	}
	return overall
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// RegisterHealthRoutes registers /healthz and /readyz
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
}
