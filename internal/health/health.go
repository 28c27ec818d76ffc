package health

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mediashelf/internal/library"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"

	// latency above this marks a dependency degraded
	degradedAfter = 200 * time.Millisecond
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status  string           `json:"status"`
	Library DependencyStatus `json:"library"`
	DB      DependencyStatus `json:"db"`
	Media   *library.Stats   `json:"media,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

// Checker probes the shared library and the shared-user database
type Checker struct {
	Store *library.Store
	DB    *gorm.DB
}

// RegisterHealthRoutes registers GET /health on router
func RegisterHealthRoutes(router fiber.Router, checker *Checker) {
	router.Get("/health", checker.Handle)
}

// Handle reports the combined status. Anything but ok answers 503.
func (h *Checker) Handle(c *fiber.Ctx) error {
	resp := h.Check(c.UserContext())

	c.Set("Cache-Control", "no-store")
	if resp.Status == StatusOK {
		c.Status(fiber.StatusOK)
	} else {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(resp)
}

// Check runs every probe
func (h *Checker) Check(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Library: h.checkLibrary(),
		DB:      h.checkDB(ctx),
	}
	if h.Store != nil && resp.Library.Status != StatusDown {
		stats := h.Store.Stats()
		resp.Media = &stats
	}

	resp.Status = StatusOK
	for _, dep := range []DependencyStatus{resp.Library, resp.DB} {
		if dep.Status == StatusDown {
			resp.Status = StatusDown
			break
		}
		if dep.Status == StatusDegraded {
			resp.Status = StatusDegraded
		}
	}
	return resp
}

func (h *Checker) checkLibrary() DependencyStatus {
	start := time.Now()
	if h.Store == nil {
		return DependencyStatus{Status: StatusDown, Message: "no library loaded"}
	}
	info, err := os.Stat(h.Store.Root())
	if err == nil && !info.IsDir() {
		return statusFor(start, "library root is not a directory")
	}
	if err != nil {
		return DependencyStatus{
			Status:    StatusDown,
			LatencyMs: time.Since(start).Milliseconds(),
			Message:   err.Error(),
		}
	}
	return statusFor(start, "")
}

func (h *Checker) checkDB(ctx context.Context) DependencyStatus {
	start := time.Now()
	if h.DB == nil {
		return DependencyStatus{Status: StatusDown, Message: "database not configured"}
	}
	sqlDB, err := h.DB.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return DependencyStatus{
			Status:    StatusDown,
			LatencyMs: time.Since(start).Milliseconds(),
			Message:   err.Error(),
		}
	}
	return statusFor(start, "")
}

// statusFor builds an ok or degraded status from the elapsed time. A non-empty
// failure message always means down.
func statusFor(start time.Time, failure string) DependencyStatus {
	latency := time.Since(start)
	status := DependencyStatus{Status: StatusOK, LatencyMs: latency.Milliseconds()}
	switch {
	case failure != "":
		status.Status = StatusDown
		status.Message = failure
	case latency > degradedAfter:
		status.Status = StatusDegraded
		status.Message = "response time is above threshold"
	}
	return status
}
