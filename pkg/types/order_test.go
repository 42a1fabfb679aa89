package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []OrderStatus{
	StatusRequested,
	StatusSampleCollected,
	StatusInProgress,
	StatusCompleted,
	StatusVerified,
	StatusCancelled,
}

func TestCanTransition_LegalEdges(t *testing.T) {
	legal := []struct{ from, to OrderStatus }{
		{StatusRequested, StatusSampleCollected},
		{StatusRequested, StatusCancelled},
		{StatusSampleCollected, StatusInProgress},
		{StatusSampleCollected, StatusCancelled},
		{StatusInProgress, StatusCompleted},
		{StatusCompleted, StatusVerified},
	}

	for _, edge := range legal {
		assert.True(t, CanTransition(edge.from, edge.to), "%s -> %s should be allowed", edge.from, edge.to)
	}
}

func TestCanTransition_EverythingElseRejected(t *testing.T) {
	legal := map[OrderStatus]map[OrderStatus]bool{
		StatusRequested:       {StatusSampleCollected: true, StatusCancelled: true},
		StatusSampleCollected: {StatusInProgress: true, StatusCancelled: true},
		StatusInProgress:      {StatusCompleted: true},
		StatusCompleted:       {StatusVerified: true},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if legal[from][to] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestCanTransition_UnknownStatuses(t *testing.T) {
	assert.False(t, CanTransition(OrderStatus("shipped"), StatusCompleted))
	assert.False(t, CanTransition(StatusRequested, OrderStatus("shipped")))
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusVerified.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())

	for _, status := range []OrderStatus{StatusRequested, StatusSampleCollected, StatusInProgress, StatusCompleted} {
		assert.False(t, status.IsTerminal(), "%s is not terminal", status)
	}
}

func TestOrderStatus_IsValid(t *testing.T) {
	for _, status := range allStatuses {
		assert.True(t, status.IsValid(), "%s is a known status", status)
	}
	assert.False(t, OrderStatus("shipped").IsValid())
	assert.False(t, OrderStatus("").IsValid())
}

func TestPriority_IsValid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityStat} {
		assert.True(t, p.IsValid())
	}
	assert.False(t, Priority("urgent-ish").IsValid())
	assert.False(t, Priority("").IsValid())
}
