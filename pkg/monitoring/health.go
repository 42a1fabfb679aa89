package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status    HealthStatus   `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Checks    []HealthCheck  `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// HealthChecker interface for health check implementations
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// HealthManager manages health checks
type HealthManager struct {
	serviceName    string
	serviceVersion string
	checkers       map[string]HealthChecker
	mu             sync.RWMutex
	timeout        time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(serviceName, serviceVersion string) *HealthManager {
	return &HealthManager{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		checkers:       make(map[string]HealthChecker),
		timeout:        30 * time.Second,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// CheckHealth performs all health checks and returns a report
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]HealthChecker)
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	timeout := hm.timeout
	hm.mu.RUnlock()

	report := &HealthReport{
		Service:   hm.serviceName,
		Version:   hm.serviceVersion,
		Timestamp: time.Now(),
		Checks:    make([]HealthCheck, 0, len(checkers)),
		Summary:   make(map[string]int),
	}

	// Run health checks concurrently
	checkChan := make(chan HealthCheck, len(checkers))
	var wg sync.WaitGroup

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			check := checker.Check(checkCtx)
			check.Name = name
			check.LastChecked = start
			check.Duration = time.Since(start)

			checkChan <- check
		}(name, checker)
	}

	go func() {
		wg.Wait()
		close(checkChan)
	}()

	for check := range checkChan {
		report.Checks = append(report.Checks, check)
		report.Summary[string(check.Status)]++
	}

	// Determine overall status
	if report.Summary[string(HealthStatusUnhealthy)] > 0 {
		report.Status = HealthStatusUnhealthy
	} else if report.Summary[string(HealthStatusDegraded)] > 0 {
		report.Status = HealthStatusDegraded
	} else {
		report.Status = HealthStatusHealthy
	}

	return report
}

// HTTPHandler returns an HTTP handler for health checks
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")

		switch report.Status {
		case HealthStatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(report)
	}
}

// DatabaseHealthChecker checks database connectivity
type DatabaseHealthChecker struct {
	db *sql.DB
}

// NewDatabaseHealthChecker creates a new database health checker
func NewDatabaseHealthChecker(db *sql.DB) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

// Check performs the database health check
func (dhc *DatabaseHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{
		Details: make(map[string]interface{}),
	}

	if err := dhc.db.PingContext(ctx); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Database connection failed: %v", err)
		return check
	}

	stats := dhc.db.Stats()
	check.Details["open_connections"] = stats.OpenConnections
	check.Details["in_use"] = stats.InUse
	check.Details["idle"] = stats.Idle

	if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections-5 {
		check.Status = HealthStatusDegraded
		check.Message = "Database connection pool nearly exhausted"
	} else {
		check.Status = HealthStatusHealthy
		check.Message = "Database connection healthy"
	}

	return check
}

// CustomHealthChecker allows custom health check implementations
type CustomHealthChecker struct {
	checkFunc func(ctx context.Context) HealthCheck
}

// NewCustomHealthChecker creates a new custom health checker
func NewCustomHealthChecker(checkFunc func(ctx context.Context) HealthCheck) *CustomHealthChecker {
	return &CustomHealthChecker{checkFunc: checkFunc}
}

// Check performs the custom health check
func (chc *CustomHealthChecker) Check(ctx context.Context) HealthCheck {
	return chc.checkFunc(ctx)
}
