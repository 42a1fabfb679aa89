package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/labtrace/lims/internal/allocation"
	"github.com/labtrace/lims/pkg/config"
	"github.com/labtrace/lims/pkg/logger"
	"github.com/labtrace/lims/pkg/monitoring"
	"github.com/labtrace/lims/pkg/types"
)

// Registering prometheus collectors twice panics, so every test shares one.
var testMetrics = monitoring.NewMetricsCollector("order-service-test")

// MockOrderRepository is a mock implementation of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(order *types.LabOrder) error {
	args := m.Called(order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(id string) (*types.LabOrder, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LabOrder), args.Error(1)
}

func (m *MockOrderRepository) GetOrders(filters *types.OrderFilters) ([]*types.LabOrder, error) {
	args := m.Called(filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.LabOrder), args.Error(1)
}

func (m *MockOrderRepository) GetActiveOrders(limit, offset int) ([]*types.LabOrder, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.LabOrder), args.Error(1)
}

func (m *MockOrderRepository) AssignTechnician(orderID, technicianID string, expected types.OrderStatus) error {
	args := m.Called(orderID, technicianID, expected)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatus(orderID string, expected, target types.OrderStatus, at time.Time) (*types.LabOrder, error) {
	args := m.Called(orderID, expected, target, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LabOrder), args.Error(1)
}

// MockTechnicianRepository is a mock implementation of TechnicianRepository
type MockTechnicianRepository struct {
	mock.Mock
}

func (m *MockTechnicianRepository) CreateTechnician(tech *types.Technician) error {
	args := m.Called(tech)
	return args.Error(0)
}

func (m *MockTechnicianRepository) GetTechnicianByID(id string) (*types.Technician, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Technician), args.Error(1)
}

func (m *MockTechnicianRepository) GetTechnicians(filters *types.TechnicianFilters) ([]*types.Technician, error) {
	args := m.Called(filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Technician), args.Error(1)
}

func (m *MockTechnicianRepository) IncrementLoad(id string) (*types.Technician, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Technician), args.Error(1)
}

func (m *MockTechnicianRepository) DecrementLoad(id string) (*types.Technician, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Technician), args.Error(1)
}

func (m *MockTechnicianRepository) SetAvailability(id string, available bool) error {
	args := m.Called(id, available)
	return args.Error(0)
}

// MockCatalogService is a mock implementation of CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Resolve(testID string) (*types.TestCatalogEntry, error) {
	args := m.Called(testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TestCatalogEntry), args.Error(1)
}

func setupTestService(orderRepo *MockOrderRepository, techRepo *MockTechnicianRepository, catalogSvc *MockCatalogService) *Service {
	log := logger.New("debug")
	cfg := &config.Config{}
	cfg.Engine.AssignRetries = 3
	cfg.Engine.OverduePageSize = 100

	return &Service{
		config:     cfg,
		logger:     log,
		repository: orderRepo,
		registry:   allocation.NewRegistry(techRepo, log),
		catalog:    catalogSvc,
		metrics:    testMetrics,
	}
}

func requestedOrder(id, testID string) *types.LabOrder {
	return &types.LabOrder{
		ID:          id,
		PatientID:   "patient-1",
		TestID:      testID,
		Status:      types.StatusRequested,
		Priority:    types.PriorityNormal,
		RequestedAt: time.Now().Add(-time.Hour),
	}
}

func eligibleTech(id string, load, capacity int, score float64) *types.Technician {
	return &types.Technician{
		ID:                  id,
		Name:                "Tech " + id,
		Specializations:     []types.Specialization{types.SpecHematology},
		IsAvailable:         true,
		MaxConcurrentOrders: capacity,
		CurrentLoad:         load,
		PerformanceScore:    score,
	}
}

func TestCreateOrder_Success(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	orderRepo.On("CreateOrder", mock.AnythingOfType("*types.LabOrder")).Return(nil)

	order := &types.LabOrder{
		PatientID:       "patient-1",
		OrderingPartyID: "doctor-1",
		TestID:          "cbc",
	}

	created, err := service.CreateOrder(order, "user-1")

	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.StatusRequested, created.Status)
	assert.Equal(t, types.PriorityNormal, created.Priority)
	assert.False(t, created.RequestedAt.IsZero())
	orderRepo.AssertExpectations(t)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	tests := []struct {
		name  string
		order *types.LabOrder
	}{
		{"missing patient", &types.LabOrder{OrderingPartyID: "doctor-1", TestID: "cbc"}},
		{"missing ordering party", &types.LabOrder{PatientID: "patient-1", TestID: "cbc"}},
		{"missing test", &types.LabOrder{PatientID: "patient-1", OrderingPartyID: "doctor-1"}},
		{"bad priority", &types.LabOrder{PatientID: "patient-1", OrderingPartyID: "doctor-1", TestID: "cbc", Priority: "urgent-ish"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateOrder(tt.order, "user-1")
			assert.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))
		})
	}

	orderRepo.AssertNotCalled(t, "CreateOrder", mock.Anything)
}

func TestAssignBest_PrefersHigherScoreOnLoadTie(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	techRepo := new(MockTechnicianRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, techRepo, catalogSvc)

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)
	catalogSvc.On("Resolve", "cbc").Return(&types.TestCatalogEntry{
		ID:       "cbc",
		Category: types.SpecHematology,
	}, nil)

	techB := eligibleTech("tech-b", 1, 5, 70)
	techC := eligibleTech("tech-c", 1, 5, 90)
	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).Return([]*types.Technician{techB, techC}, nil)

	orderRepo.On("AssignTechnician", "order-1", "tech-c", types.StatusRequested).Return(nil)
	techRepo.On("GetTechnicianByID", "tech-c").Return(techC, nil)

	assigned, err := service.AssignBest("order-1", "manager-1")

	assert.NoError(t, err)
	assert.NotNil(t, assigned)
	assert.Equal(t, "tech-c", assigned.ID)
	orderRepo.AssertExpectations(t)
}

func TestAssignBest_NoneAvailableWhenAllAtCapacity(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	techRepo := new(MockTechnicianRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, techRepo, catalogSvc)

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)
	catalogSvc.On("Resolve", "cbc").Return(&types.TestCatalogEntry{
		ID:       "cbc",
		Category: types.SpecHematology,
	}, nil)
	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).Return([]*types.Technician{
		eligibleTech("tech-a", 3, 3, 80),
		eligibleTech("tech-b", 5, 5, 95),
	}, nil)

	assigned, err := service.AssignBest("order-1", "manager-1")

	assert.NoError(t, err)
	assert.Nil(t, assigned)
	orderRepo.AssertNotCalled(t, "AssignTechnician", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssignBest_UnresolvableTestAssignsWithoutConstraint(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	techRepo := new(MockTechnicianRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, techRepo, catalogSvc)

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "mystery-test"), nil)
	catalogSvc.On("Resolve", "mystery-test").Return(nil, types.NewNotFoundError("test catalog entry", "mystery-test"))

	tech := eligibleTech("tech-a", 0, 3, 80)
	tech.Specializations = []types.Specialization{types.SpecMicrobiology}
	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).Return([]*types.Technician{tech}, nil)

	orderRepo.On("AssignTechnician", "order-1", "tech-a", types.StatusRequested).Return(nil)
	techRepo.On("GetTechnicianByID", "tech-a").Return(tech, nil)

	assigned, err := service.AssignBest("order-1", "manager-1")

	assert.NoError(t, err)
	assert.NotNil(t, assigned)
	assert.Equal(t, "tech-a", assigned.ID)
}

func TestAssignBest_RetriesOnConflictThenSucceeds(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	techRepo := new(MockTechnicianRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, techRepo, catalogSvc)

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)
	catalogSvc.On("Resolve", "cbc").Return(&types.TestCatalogEntry{
		ID:       "cbc",
		Category: types.SpecHematology,
	}, nil)

	tech := eligibleTech("tech-a", 0, 3, 80)
	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).Return([]*types.Technician{tech}, nil)

	orderRepo.On("AssignTechnician", "order-1", "tech-a", types.StatusRequested).
		Return(types.NewCapacityExceededError("tech-a")).Once()
	orderRepo.On("AssignTechnician", "order-1", "tech-a", types.StatusRequested).
		Return(nil).Once()
	techRepo.On("GetTechnicianByID", "tech-a").Return(tech, nil)

	assigned, err := service.AssignBest("order-1", "manager-1")

	assert.NoError(t, err)
	assert.NotNil(t, assigned)
	orderRepo.AssertNumberOfCalls(t, "AssignTechnician", 2)
}

func TestAssignBest_GivesUpAfterBoundedRetries(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	techRepo := new(MockTechnicianRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, techRepo, catalogSvc)

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)
	catalogSvc.On("Resolve", "cbc").Return(&types.TestCatalogEntry{
		ID:       "cbc",
		Category: types.SpecHematology,
	}, nil)
	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).
		Return([]*types.Technician{eligibleTech("tech-a", 0, 3, 80)}, nil)
	orderRepo.On("AssignTechnician", "order-1", "tech-a", types.StatusRequested).
		Return(types.NewConcurrentModificationError("order", "order-1"))

	_, err := service.AssignBest("order-1", "manager-1")

	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeConcurrentModification))
	orderRepo.AssertNumberOfCalls(t, "AssignTechnician", 3)
}

func TestAssignBest_RejectsOrderPastRequested(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	order := requestedOrder("order-1", "cbc")
	order.Status = types.StatusInProgress
	orderRepo.On("GetOrderByID", "order-1").Return(order, nil)

	_, err := service.AssignBest("order-1", "manager-1")

	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeIllegalTransition))
}

func TestTransitionOrder_Success(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)

	updated := requestedOrder("order-1", "cbc")
	updated.Status = types.StatusSampleCollected
	orderRepo.On("UpdateStatus", "order-1", types.StatusRequested, types.StatusSampleCollected, mock.AnythingOfType("time.Time")).
		Return(updated, nil)

	result, err := service.TransitionOrder("order-1", types.StatusSampleCollected, "nurse-1")

	assert.NoError(t, err)
	assert.Equal(t, types.StatusSampleCollected, result.Status)
	orderRepo.AssertExpectations(t)
}

func TestTransitionOrder_RejectsSkippedStage(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)

	_, err := service.TransitionOrder("order-1", types.StatusInProgress, "tech-1")

	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeIllegalTransition))
	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionOrder_RejectsUnknownStatus(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	_, err := service.TransitionOrder("order-1", types.OrderStatus("shipped"), "tech-1")

	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidInput))
	orderRepo.AssertNotCalled(t, "GetOrderByID", mock.Anything)
}

func TestTransitionOrder_RetriesOnConcurrentModification(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	first := requestedOrder("order-1", "cbc")
	first.Status = types.StatusInProgress
	orderRepo.On("GetOrderByID", "order-1").Return(first, nil)

	orderRepo.On("UpdateStatus", "order-1", types.StatusInProgress, types.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(nil, types.NewConcurrentModificationError("order", "order-1")).Once()

	updated := requestedOrder("order-1", "cbc")
	updated.Status = types.StatusCompleted
	orderRepo.On("UpdateStatus", "order-1", types.StatusInProgress, types.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(updated, nil).Once()

	result, err := service.TransitionOrder("order-1", types.StatusCompleted, "tech-1")

	assert.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, result.Status)
	orderRepo.AssertNumberOfCalls(t, "UpdateStatus", 2)
}

func TestCancelOrder_FromSampleCollected(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	order := requestedOrder("order-1", "cbc")
	order.Status = types.StatusSampleCollected
	orderRepo.On("GetOrderByID", "order-1").Return(order, nil)

	cancelled := requestedOrder("order-1", "cbc")
	cancelled.Status = types.StatusCancelled
	orderRepo.On("UpdateStatus", "order-1", types.StatusSampleCollected, types.StatusCancelled, mock.AnythingOfType("time.Time")).
		Return(cancelled, nil)

	result, err := service.CancelOrder("order-1", "doctor-1")

	assert.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, result.Status)
}

func TestCancelOrder_RacerPastCutoffReportsCancellationNotAllowed(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	// First read sees the order still cancellable; the conditional write loses
	// to a racer that started processing; the re-read finds it past the cutoff.
	early := requestedOrder("order-1", "cbc")
	early.Status = types.StatusSampleCollected
	orderRepo.On("GetOrderByID", "order-1").Return(early, nil).Once()

	orderRepo.On("UpdateStatus", "order-1", types.StatusSampleCollected, types.StatusCancelled, mock.AnythingOfType("time.Time")).
		Return(nil, types.NewConcurrentModificationError("order", "order-1")).Once()

	racedPast := requestedOrder("order-1", "cbc")
	racedPast.Status = types.StatusInProgress
	orderRepo.On("GetOrderByID", "order-1").Return(racedPast, nil)

	_, err := service.CancelOrder("order-1", "doctor-1")

	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeCancellationNotAllowed))
	orderRepo.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestAssignBest_ReturnsCommittedLoad(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	techRepo := new(MockTechnicianRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, techRepo, catalogSvc)

	orderRepo.On("GetOrderByID", "order-1").Return(requestedOrder("order-1", "cbc"), nil)
	catalogSvc.On("Resolve", "cbc").Return(&types.TestCatalogEntry{
		ID:       "cbc",
		Category: types.SpecHematology,
	}, nil)

	// The candidate snapshot is stale by the time the assignment commits.
	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).
		Return([]*types.Technician{eligibleTech("tech-a", 0, 5, 80)}, nil)
	orderRepo.On("AssignTechnician", "order-1", "tech-a", types.StatusRequested).Return(nil)
	techRepo.On("GetTechnicianByID", "tech-a").Return(eligibleTech("tech-a", 2, 5, 80), nil)

	assigned, err := service.AssignBest("order-1", "manager-1")

	assert.NoError(t, err)
	assert.Equal(t, 2, assigned.CurrentLoad)
	techRepo.AssertCalled(t, "GetTechnicianByID", "tech-a")
}

func TestCancelOrder_RejectedOnceInProgress(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), new(MockCatalogService))

	order := requestedOrder("order-1", "cbc")
	order.Status = types.StatusInProgress
	orderRepo.On("GetOrderByID", "order-1").Return(order, nil)

	_, err := service.CancelOrder("order-1", "doctor-1")

	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeCancellationNotAllowed))
	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListOverdue_FlagsOnlyPastDeadline(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	catalogSvc := new(MockCatalogService)
	service := setupTestService(orderRepo, new(MockTechnicianRepository), catalogSvc)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	late := requestedOrder("order-late", "cbc")
	late.RequestedAt = now.Add(-3 * time.Hour)
	onTime := requestedOrder("order-ontime", "cbc")
	onTime.RequestedAt = now.Add(-10 * time.Minute)
	unknownTest := requestedOrder("order-unknown", "mystery-test")
	unknownTest.RequestedAt = now.Add(-3 * time.Hour)

	orderRepo.On("GetActiveOrders", 100, 0).
		Return([]*types.LabOrder{late, onTime, unknownTest}, nil)

	catalogSvc.On("Resolve", "cbc").Return(&types.TestCatalogEntry{
		ID:                      "cbc",
		Category:                types.SpecHematology,
		ExpectedDurationMinutes: 60,
	}, nil)
	catalogSvc.On("Resolve", "mystery-test").
		Return(nil, types.NewNotFoundError("test catalog entry", "mystery-test"))

	overdue, err := service.ListOverdue(now)

	assert.NoError(t, err)
	assert.Len(t, overdue, 1)
	assert.Equal(t, "order-late", overdue[0].ID)
}

func TestFindEligibleTechnicians_HidesLoadDetail(t *testing.T) {
	techRepo := new(MockTechnicianRepository)
	service := setupTestService(new(MockOrderRepository), techRepo, new(MockCatalogService))

	techRepo.On("GetTechnicians", (*types.TechnicianFilters)(nil)).
		Return([]*types.Technician{eligibleTech("tech-a", 2, 5, 80)}, nil)

	eligible, err := service.FindEligibleTechnicians("hematology", false)

	assert.NoError(t, err)
	assert.Len(t, eligible, 1)
	assert.Equal(t, 0, eligible[0].CurrentLoad)
	assert.Equal(t, 0, eligible[0].MaxConcurrentOrders)
}
