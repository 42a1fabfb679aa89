package orders

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/labtrace/lims/internal/allocation"
	"github.com/labtrace/lims/internal/catalog"
	"github.com/labtrace/lims/pkg/config"
	"github.com/labtrace/lims/pkg/database"
	"github.com/labtrace/lims/pkg/interfaces"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/monitoring"
	"github.com/labtrace/lims/pkg/types"
)

// Service implements the OrderService interface. It owns the order state
// machine and composes the technician registry, eligibility filter and
// allocation ranker on the assignment path.
type Service struct {
	config     *config.Config
	logger     *logger.Logger
	repository interfaces.OrderRepository
	registry   *allocation.Registry
	catalog    interfaces.CatalogService
	metrics    *monitoring.MetricsCollector
	health     *monitoring.HealthManager
	db         *database.DB
	server     *http.Server
}

// New creates a new order service wired to the backing store
func New(cfg *config.Config, log *logger.Logger) interfaces.OrderService {
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		panic(err)
	}

	if err := db.CreateSchema(context.Background()); err != nil {
		log.Errorf("Failed to create schema: %v", err)
		panic(err)
	}

	techRepo := allocation.NewRepository(db, log)
	registry := allocation.NewRegistry(techRepo, log)

	catalogRepo := catalog.NewRepository(db, log)
	resolver := catalog.NewResolver(catalogRepo, log, time.Duration(cfg.Engine.CatalogCacheTTL)*time.Second)

	health := monitoring.NewHealthManager("order-service", "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	health.RegisterChecker("catalog", monitoring.NewCustomHealthChecker(func(ctx context.Context) monitoring.HealthCheck {
		if _, err := catalogRepo.GetEntries(1, 0); err != nil {
			return monitoring.HealthCheck{
				Status:  monitoring.HealthStatusDegraded,
				Message: fmt.Sprintf("Catalog read failed: %v", err),
			}
		}
		return monitoring.HealthCheck{
			Status:  monitoring.HealthStatusHealthy,
			Message: "Catalog readable",
		}
	}))

	return &Service{
		config:     cfg,
		logger:     log,
		repository: NewRepository(db, log),
		registry:   registry,
		catalog:    resolver,
		metrics:    monitoring.NewMetricsCollector("order-service"),
		health:     health,
		db:         db,
	}
}

// CreateOrder creates a new lab order in the requested state
func (s *Service) CreateOrder(order *types.LabOrder, userID string) (*types.LabOrder, error) {
	if err := s.validateOrder(order); err != nil {
		return nil, types.NewValidationError(err.Error(), nil)
	}

	order.ID = uuid.New().String()
	order.Status = types.StatusRequested
	order.RequestedAt = time.Now()
	if order.Priority == "" {
		order.Priority = types.PriorityNormal
	}

	if err := s.repository.CreateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Audit(userID, "create", "lab_order", true, map[string]interface{}{
		"order_id": order.ID,
		"test_id":  order.TestID,
	})

	s.logger.Infof("Created order %s for patient %s", order.ID, order.PatientID)
	return order, nil
}

// GetOrder retrieves an order by ID
func (s *Service) GetOrder(orderID string) (*types.LabOrder, error) {
	return s.repository.GetOrderByID(orderID)
}

// GetOrders retrieves orders based on filters
func (s *Service) GetOrders(filters *types.OrderFilters) ([]*types.LabOrder, error) {
	return s.repository.GetOrders(filters)
}

// FindEligibleTechnicians returns technicians that may accept a new order for
// the given specialization. An unrecognized specialization drops the
// constraint rather than failing. When includeLoadDetail is false the load
// counters are zeroed out of the response.
func (s *Service) FindEligibleTechnicians(specialization string, includeLoadDetail bool) ([]*types.Technician, error) {
	technicians, err := s.registry.ListTechnicians(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}

	eligible := allocation.Rank(allocation.FilterEligible(technicians, specialization))

	if !includeLoadDetail {
		for _, t := range eligible {
			t.CurrentLoad = 0
			t.MaxConcurrentOrders = 0
		}
	}

	return eligible, nil
}

// AssignBest selects the best eligible technician for the order and binds it.
// A nil technician with a nil error means no one is available; the caller
// queues or escalates. Lost races against concurrent assigners are retried a
// bounded number of times with a fresh candidate set.
func (s *Service) AssignBest(orderID, userID string) (*types.Technician, error) {
	var lastErr error

	for attempt := 0; attempt < s.assignRetries(); attempt++ {
		if attempt > 0 {
			s.metrics.RecordAllocationRetry()
		}

		order, err := s.repository.GetOrderByID(orderID)
		if err != nil {
			return nil, err
		}

		if order.Status != types.StatusRequested {
			return nil, types.NewIllegalTransitionError(order.Status, types.StatusRequested)
		}
		if order.AssignedTechnicianID != nil {
			return nil, types.NewConcurrentModificationError("order", orderID)
		}

		requiredSpecialization := s.resolveCategory(order.TestID)

		technicians, err := s.registry.ListTechnicians(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list technicians: %w", err)
		}

		eligible := allocation.FilterEligible(technicians, requiredSpecialization)
		best := allocation.SelectBest(eligible)
		if best == nil {
			s.metrics.RecordAllocationAttempt("none_available")
			s.logger.Allocation(orderID, "", 0, false)
			return nil, nil
		}

		err = s.repository.AssignTechnician(orderID, best.ID, types.StatusRequested)
		if err == nil {
			s.metrics.RecordAllocationAttempt("assigned")
			s.logger.Allocation(orderID, best.ID, len(eligible), true)
			s.logger.Audit(userID, "assign", "lab_order", true, map[string]interface{}{
				"order_id":      orderID,
				"technician_id": best.ID,
			})

			assigned, techErr := s.registry.GetTechnician(best.ID)
			if techErr != nil {
				return nil, techErr
			}
			// Gauge from the committed row; the candidate snapshot may have
			// raced other assignments.
			s.metrics.RecordTechnicianLoad(assigned.ID, assigned.CurrentLoad)
			return assigned, nil
		}

		// The chosen technician filled up or the order moved under us.
		// Both are retryable with a fresh read; anything else surfaces.
		if types.IsErrorCode(err, types.ErrCodeConcurrentModification) ||
			types.IsErrorCode(err, types.ErrCodeCapacityExceeded) {
			lastErr = err
			continue
		}
		return nil, err
	}

	s.metrics.RecordAllocationAttempt("conflict")
	return nil, lastErr
}

// TransitionOrder moves the order to the target status, stamping the
// transition timestamp. Terminal transitions release the assigned
// technician's load exactly once. Optimistic-concurrency conflicts are
// retried internally with a fresh read up to the configured bound.
func (s *Service) TransitionOrder(orderID string, target types.OrderStatus, userID string) (*types.LabOrder, error) {
	if !target.IsValid() {
		return nil, types.NewValidationError(fmt.Sprintf("unknown status: %s", target), nil)
	}

	var lastErr error

	for attempt := 0; attempt < s.assignRetries(); attempt++ {
		order, err := s.repository.GetOrderByID(orderID)
		if err != nil {
			return nil, err
		}

		if !types.CanTransition(order.Status, target) {
			s.metrics.RecordOrderTransition(string(order.Status), string(target), "rejected")
			return nil, types.NewIllegalTransitionError(order.Status, target)
		}

		updated, err := s.repository.UpdateStatus(orderID, order.Status, target, time.Now())
		if err == nil {
			s.metrics.RecordOrderTransition(string(order.Status), string(target), "ok")
			if target.IsTerminal() && updated.AssignedTechnicianID != nil {
				if tech, techErr := s.registry.GetTechnician(*updated.AssignedTechnicianID); techErr == nil {
					s.metrics.RecordTechnicianLoad(tech.ID, tech.CurrentLoad)
				}
			}
			s.logger.Audit(userID, "transition", "lab_order", true, map[string]interface{}{
				"order_id": orderID,
				"from":     string(order.Status),
				"to":       string(target),
			})
			return updated, nil
		}

		if types.IsErrorCode(err, types.ErrCodeConcurrentModification) {
			lastErr = err
			continue
		}
		return nil, err
	}

	s.metrics.RecordOrderTransition("unknown", string(target), "conflict")
	return nil, lastErr
}

// CancelOrder cancels an order still early enough in the workflow. Orders
// past sample collection can no longer be cancelled. The gate is checked on
// the same read the conditional write is predicated on, so a racer moving the
// order past the cutoff surfaces as CancellationNotAllowed on the retry, not
// as a generic transition failure.
func (s *Service) CancelOrder(orderID, userID string) (*types.LabOrder, error) {
	var lastErr error

	for attempt := 0; attempt < s.assignRetries(); attempt++ {
		order, err := s.repository.GetOrderByID(orderID)
		if err != nil {
			return nil, err
		}

		if order.Status != types.StatusRequested && order.Status != types.StatusSampleCollected {
			s.metrics.RecordOrderTransition(string(order.Status), string(types.StatusCancelled), "rejected")
			return nil, types.NewCancellationNotAllowedError(order.Status)
		}

		updated, err := s.repository.UpdateStatus(orderID, order.Status, types.StatusCancelled, time.Now())
		if err == nil {
			s.metrics.RecordOrderTransition(string(order.Status), string(types.StatusCancelled), "ok")
			if updated.AssignedTechnicianID != nil {
				if tech, techErr := s.registry.GetTechnician(*updated.AssignedTechnicianID); techErr == nil {
					s.metrics.RecordTechnicianLoad(tech.ID, tech.CurrentLoad)
				}
			}
			s.logger.Audit(userID, "cancel", "lab_order", true, map[string]interface{}{
				"order_id": orderID,
				"from":     string(order.Status),
			})
			return updated, nil
		}

		if types.IsErrorCode(err, types.ErrCodeConcurrentModification) {
			lastErr = err
			continue
		}
		return nil, err
	}

	s.metrics.RecordOrderTransition("unknown", string(types.StatusCancelled), "conflict")
	return nil, lastErr
}

// ListOverdue returns in-flight orders past their test's expected duration.
// Orders whose test cannot be resolved in the catalog are never flagged.
func (s *Service) ListOverdue(now time.Time) ([]*types.LabOrder, error) {
	pageSize := s.config.Engine.OverduePageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var overdue []*types.LabOrder
	for offset := 0; ; offset += pageSize {
		active, err := s.repository.GetActiveOrders(pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list active orders: %w", err)
		}

		for _, order := range active {
			entry, err := s.catalog.Resolve(order.TestID)
			if err != nil {
				// Missing catalog data must never falsely flag an order.
				continue
			}
			if IsOverdue(order, entry, now) {
				overdue = append(overdue, order)
			}
		}

		if len(active) < pageSize {
			break
		}
	}

	s.metrics.RecordOverdueOrders(len(overdue))
	return overdue, nil
}

// resolveCategory maps the order's test to its required specialization.
// Fail-open: an unresolvable test yields no specialization constraint.
func (s *Service) resolveCategory(testID string) string {
	entry, err := s.catalog.Resolve(testID)
	if err != nil {
		s.logger.WithError(err).Warnf("Could not resolve test %s, assigning without specialization constraint", testID)
		return ""
	}
	return string(entry.Category)
}

func (s *Service) assignRetries() int {
	if s.config.Engine.AssignRetries > 0 {
		return s.config.Engine.AssignRetries
	}
	return 3
}

// validateOrder validates new order data
func (s *Service) validateOrder(order *types.LabOrder) error {
	if order.PatientID == "" {
		return fmt.Errorf("patient ID is required")
	}

	if order.OrderingPartyID == "" {
		return fmt.Errorf("ordering party ID is required")
	}

	if order.TestID == "" {
		return fmt.Errorf("test ID is required")
	}

	if order.Priority != "" && !order.Priority.IsValid() {
		return fmt.Errorf("unknown priority: %s", order.Priority)
	}

	return nil
}

// Start starts the order service HTTP server
func (s *Service) Start(addr string) error {
	router := mux.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.metrics.HTTPMiddleware(router),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}

	s.logger.WithComponent("http").Infof("Starting Order Service on %s", addr)
	return s.server.ListenAndServe()
}

// Stop stops the order service
func (s *Service) Stop() error {
	if s.server != nil {
		s.logger.Info("Stopping Order Service")
		if err := s.server.Close(); err != nil {
			return err
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
