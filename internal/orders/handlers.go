package orders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/labtrace/lims/pkg/rbac"
	"github.com/labtrace/lims/pkg/types"
)

// setupRoutes configures HTTP routes for the order service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Order routes
	api.HandleFunc("/orders", s.createOrderHandler).Methods("POST")
	api.HandleFunc("/orders/overdue", s.listOverdueHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", s.getOrderHandler).Methods("GET")
	api.HandleFunc("/orders", s.getOrdersHandler).Methods("GET")

	// Lifecycle actions
	api.HandleFunc("/orders/{id}/assign", s.assignBestHandler).Methods("POST")
	api.HandleFunc("/orders/{id}/transition", s.transitionOrderHandler).Methods("POST")
	api.HandleFunc("/orders/{id}/cancel", s.cancelOrderHandler).Methods("POST")

	// Technician routes
	api.HandleFunc("/technicians", s.registerTechnicianHandler).Methods("POST")
	api.HandleFunc("/technicians/eligible", s.findEligibleHandler).Methods("GET")
	api.HandleFunc("/technicians/{id}", s.getTechnicianHandler).Methods("GET")
	api.HandleFunc("/technicians/{id}/availability", s.setAvailabilityHandler).Methods("PUT")

	// Health and metrics
	api.HandleFunc("/health", s.healthCheckHandler).Methods("GET")
	if s.config.Monitoring.Enabled {
		router.Path(s.config.Monitoring.MetricsPath).Handler(s.metrics.Handler())
	}

	s.logger.Info("Order service routes configured")
}

// createOrderHandler handles order creation
func (s *Service) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required", err)
		return
	}

	if !rbac.CanCreateOrders(user.Role) {
		s.logger.WithUserID(user.UserID).Warnf("Role %s denied order creation", user.Role)
		s.writeErrorResponse(w, http.StatusForbidden, "Role may not create orders", nil)
		return
	}

	var order types.LabOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := s.CreateOrder(&order, user.UserID)
	if err != nil {
		s.writeServiceError(w, "Failed to create order", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, created)
}

// getOrderHandler handles order retrieval
func (s *Service) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	order, err := s.GetOrder(vars["id"])
	if err != nil {
		s.writeServiceError(w, "Failed to get order", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, order)
}

// getOrdersHandler handles order listing with filters
func (s *Service) getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	filters := s.parseOrderFilters(r)

	orders, err := s.GetOrders(filters)
	if err != nil {
		s.writeServiceError(w, "Failed to get orders", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, orders)
}

// assignBestHandler handles technician allocation for an order. Restricted to
// lab managers, doctors and administrators.
func (s *Service) assignBestHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required", err)
		return
	}

	if !rbac.CanAssignOrders(user.Role) {
		s.logger.WithUserID(user.UserID).Warnf("Role %s denied order assignment", user.Role)
		s.writeErrorResponse(w, http.StatusForbidden, "Role may not assign orders", nil)
		return
	}

	vars := mux.Vars(r)
	technician, err := s.AssignBest(vars["id"], user.UserID)
	if err != nil {
		s.writeServiceError(w, "Failed to assign technician", err)
		return
	}

	if technician == nil {
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"assigned": false,
			"message":  "No technician available",
		})
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"assigned":   true,
		"technician": technician,
	})
}

// transitionOrderHandler handles order status transitions
func (s *Service) transitionOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required", err)
		return
	}

	var body struct {
		Target types.OrderStatus `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	vars := mux.Vars(r)
	order, err := s.TransitionOrder(vars["id"], body.Target, user.UserID)
	if err != nil {
		s.writeServiceError(w, "Failed to transition order", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, order)
}

// cancelOrderHandler handles order cancellation
func (s *Service) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required", err)
		return
	}

	vars := mux.Vars(r)
	order, err := s.CancelOrder(vars["id"], user.UserID)
	if err != nil {
		s.writeServiceError(w, "Failed to cancel order", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, order)
}

// listOverdueHandler lists in-flight orders past their expected duration
func (s *Service) listOverdueHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid 'at' timestamp", err)
			return
		}
		now = parsed
	}

	overdue, err := s.ListOverdue(now)
	if err != nil {
		s.writeServiceError(w, "Failed to list overdue orders", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, overdue)
}

// registerTechnicianHandler handles technician registration
func (s *Service) registerTechnicianHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required", err)
		return
	}

	if user.Role != types.RoleLabManager && user.Role != types.RoleAdministrator {
		s.writeServiceError(w, "Role may not register technicians", types.NewForbiddenError("technician registration requires lab manager or admin role"))
		return
	}

	var tech types.Technician
	if err := json.NewDecoder(r.Body).Decode(&tech); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := s.registry.RegisterTechnician(&tech)
	if err != nil {
		s.writeServiceError(w, "Failed to register technician", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, created)
}

// getTechnicianHandler handles technician retrieval
func (s *Service) getTechnicianHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	tech, err := s.registry.GetTechnician(vars["id"])
	if err != nil {
		s.writeServiceError(w, "Failed to get technician", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, tech)
}

// findEligibleHandler lists technicians eligible for a new order
func (s *Service) findEligibleHandler(w http.ResponseWriter, r *http.Request) {
	specialization := r.URL.Query().Get("specialization")

	includeLoadDetail := false
	if v := r.URL.Query().Get("include_load_detail"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			includeLoadDetail = parsed
		}
	}

	eligible, err := s.FindEligibleTechnicians(specialization, includeLoadDetail)
	if err != nil {
		s.writeServiceError(w, "Failed to find eligible technicians", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, eligible)
}

// setAvailabilityHandler handles the administrative availability toggle
func (s *Service) setAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromRequest(r)
	if err != nil {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Authentication required", err)
		return
	}

	if user.Role != types.RoleLabManager && user.Role != types.RoleAdministrator {
		s.writeServiceError(w, "Role may not change availability", types.NewForbiddenError("availability changes require lab manager or admin role"))
		return
	}

	var body struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	vars := mux.Vars(r)
	if err := s.registry.SetAvailability(vars["id"], body.Available); err != nil {
		s.writeServiceError(w, "Failed to set availability", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Availability updated"})
}

// healthCheckHandler reports service health
func (s *Service) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.HTTPHandler()(w, r)
		return
	}

	if err := s.db.Health(); err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// parseOrderFilters parses query parameters into order filters
func (s *Service) parseOrderFilters(r *http.Request) *types.OrderFilters {
	filters := &types.OrderFilters{}

	if patientID := r.URL.Query().Get("patient_id"); patientID != "" {
		filters.PatientID = patientID
	}

	if technicianID := r.URL.Query().Get("technician_id"); technicianID != "" {
		filters.TechnicianID = technicianID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filters.Status = types.OrderStatus(status)
	}

	if priority := r.URL.Query().Get("priority"); priority != "" {
		filters.Priority = types.Priority(priority)
	}

	if fromDate := r.URL.Query().Get("from_date"); fromDate != "" {
		if parsed, err := time.Parse("2006-01-02", fromDate); err == nil {
			filters.FromDate = parsed
		}
	}

	if toDate := r.URL.Query().Get("to_date"); toDate != "" {
		if parsed, err := time.Parse("2006-01-02", toDate); err == nil {
			filters.ToDate = parsed
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			filters.Limit = parsed
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if parsed, err := strconv.Atoi(offset); err == nil {
			filters.Offset = parsed
		}
	}

	return filters
}

// writeServiceError maps engine error codes to HTTP statuses
func (s *Service) writeServiceError(w http.ResponseWriter, message string, err error) {
	var oe *types.OrderError
	if !errors.As(err, &oe) {
		s.writeErrorResponse(w, http.StatusInternalServerError, message, err)
		return
	}

	status := http.StatusInternalServerError
	switch oe.Type {
	case types.ErrorTypeNotFound:
		status = http.StatusNotFound
	case types.ErrorTypeValidation:
		status = http.StatusBadRequest
	case types.ErrorTypeConflict:
		status = http.StatusConflict
	case types.ErrorTypeForbidden:
		status = http.StatusForbidden
	}

	s.writeErrorResponse(w, status, message, err)
}

// writeJSONResponse writes a JSON response
func (s *Service) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse writes an error response
func (s *Service) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	s.logger.Errorf("%s: %v", message, err)

	response := map[string]interface{}{
		"error":  message,
		"status": statusCode,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	s.writeJSONResponse(w, statusCode, response)
}
