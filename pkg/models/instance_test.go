package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func historyEntry(state string, action HistoryAction, at time.Time) WorkflowHistoryEntry {
	return WorkflowHistoryEntry{State: state, Action: action, Timestamp: at}
}

func TestWorkflowInstance_EnteredCurrentState(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name         string
		currentState string
		history      []WorkflowHistoryEntry
		want         bool
	}{
		{
			name:         "no history",
			currentState: "Start",
			want:         false,
		},
		{
			name:         "entered",
			currentState: "Start",
			history: []WorkflowHistoryEntry{
				historyEntry("Start", HistoryActionEntry, now),
			},
			want: true,
		},
		{
			name:         "transitioned in but not entered",
			currentState: "Review",
			history: []WorkflowHistoryEntry{
				historyEntry("Start", HistoryActionEntry, now),
				historyEntry("Review", HistoryActionTransition, now),
			},
			want: false,
		},
		{
			name:         "entered after transition",
			currentState: "Review",
			history: []WorkflowHistoryEntry{
				historyEntry("Start", HistoryActionEntry, now),
				historyEntry("Review", HistoryActionTransition, now),
				historyEntry("Review", HistoryActionEntry, now),
			},
			want: true,
		},
		{
			name:         "self transition pending re-entry",
			currentState: "Review",
			history: []WorkflowHistoryEntry{
				historyEntry("Review", HistoryActionEntry, now),
				historyEntry("Review", HistoryActionExit, now),
				historyEntry("Review", HistoryActionTransition, now),
			},
			want: false,
		},
		{
			name:         "other states ignored",
			currentState: "Review",
			history: []WorkflowHistoryEntry{
				historyEntry("Review", HistoryActionEntry, now),
				historyEntry("Other", HistoryActionEntry, now),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance := &WorkflowInstance{CurrentState: tt.currentState, History: tt.history}

			assert.Equal(t, tt.want, instance.EnteredCurrentState())
		})
	}
}

func TestWorkflowInstance_LastSeenAt(t *testing.T) {
	first := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	instance := &WorkflowInstance{
		History: []WorkflowHistoryEntry{
			historyEntry("Start", HistoryActionEntry, first),
			historyEntry("Review", HistoryActionTransition, second),
		},
	}

	seen, ok := instance.LastSeenAt("Review")
	assert.True(t, ok)
	assert.Equal(t, second, seen)

	seen, ok = instance.LastSeenAt("Start")
	assert.True(t, ok)
	assert.Equal(t, first, seen)

	_, ok = instance.LastSeenAt("Missing")
	assert.False(t, ok)
}

func TestInstanceStatus_Terminal(t *testing.T) {
	assert.False(t, InstanceStatusRunning.Terminal())
	assert.False(t, InstanceStatusSuspended.Terminal())
	assert.True(t, InstanceStatusCompleted.Terminal())
	assert.True(t, InstanceStatusFailed.Terminal())
	assert.True(t, InstanceStatusCancelled.Terminal())
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, TaskStatusPending.Terminal())
	assert.False(t, TaskStatusInProgress.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
	assert.True(t, TaskStatusCancelled.Terminal())
	assert.True(t, TaskStatusExpired.Terminal())
}
