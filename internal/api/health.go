package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/funnellens/funnellens/internal/pkg/httputil"
)

// ComponentCheck represents the health of a single dependency.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker reports on the database and the optional Redis.
type HealthChecker struct {
	db        Pinger
	redis     *redis.Client
	startTime time.Time
}

// NewHealthChecker creates a checker. Either dependency may be nil.
func NewHealthChecker(db Pinger, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, startTime: time.Now()}
}

// HandleLiveness always returns 200 while the process is up.
//
//	GET /health
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "alive",
		"uptime": time.Since(hc.startTime).Round(time.Second).String(),
	})
}

// HandleReadiness returns 503 when the database is unreachable. Redis is
// optional; a down Redis only degrades the status.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]ComponentCheck{
		"database": hc.check(r.Context(), 3*time.Second, hc.pingDB),
		"redis":    hc.check(r.Context(), 2*time.Second, hc.pingRedis),
	}

	status, code := "healthy", http.StatusOK
	switch {
	case checks["database"].Status == "down":
		status, code = "unhealthy", http.StatusServiceUnavailable
	case checks["redis"].Status == "down":
		status = "degraded"
	}
	httputil.JSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (hc *HealthChecker) pingDB(ctx context.Context) (bool, error) {
	if hc.db == nil {
		return false, nil
	}
	return true, hc.db.PingContext(ctx)
}

func (hc *HealthChecker) pingRedis(ctx context.Context) (bool, error) {
	if hc.redis == nil {
		return false, nil
	}
	return true, hc.redis.Ping(ctx).Err()
}

func (hc *HealthChecker) check(ctx context.Context, timeout time.Duration, ping func(context.Context) (bool, error)) ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	configured, err := ping(ctx)
	latency := time.Since(start)
	switch {
	case !configured:
		return ComponentCheck{Status: "not_configured"}
	case err != nil:
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	case latency > time.Second:
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: "slow response"}
	}
	return ComponentCheck{Status: "up", Latency: latency.String()}
}
