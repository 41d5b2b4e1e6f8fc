package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence/memory"
	"github.com/procflow/procflow/pkg/registry"
	"github.com/procflow/procflow/pkg/web"
	"github.com/procflow/procflow/pkg/workflow"
)

func setupTestApp(t *testing.T) (*fiber.App, *workflow.Engine) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reg := registry.NewRegistry(logger)
	registry.RegisterBuiltins(reg)

	engine := workflow.NewEngine(memory.NewPersistence(), reg, nil, logger)

	handlers := web.NewAPIHandlers(engine, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, engine
}

func registerTestWorkflow(t *testing.T, app *fiber.App) string {
	t.Helper()

	body, err := json.Marshal(web.RegisterWorkflowRequest{
		Name: "document-review",
		States: []models.WorkflowState{
			{Name: "Review", Tasks: []models.TaskTemplate{{Name: "review", AssignedTo: "alice"}}},
			{Name: "Done", IsFinal: true},
		},
		Transitions: []models.WorkflowTransition{
			{From: "Review", To: "Done", Condition: &models.Condition{Expression: "approved == true"}},
		},
		InitialState: "Review",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	return created.ID
}

func startTestInstance(t *testing.T, app *fiber.App, engine *workflow.Engine, workflowID string) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/workflows/"+workflowID+"/instances", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		InstanceID string `json:"instance_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))

	engine.Wait()

	return started.InstanceID
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_RegisterWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+workflowID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var def models.WorkflowDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	assert.Equal(t, "document-review", def.Name)
	assert.Equal(t, models.DefinitionStatusActive, def.Status)
}

func TestAPIHandlers_RegisterWorkflow_Errors(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "malformed json",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing name",
			body:           `{"states":[{"name":"A","is_final":true}],"initial_state":"A"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "initial state not a state",
			body:           `{"name":"broken-flow","states":[{"name":"A","is_final":true}],"initial_state":"Missing"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "not_found")
}

func TestAPIHandlers_InstanceLifecycle(t *testing.T) {
	app, engine := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)
	instanceID := startTestInstance(t, app, engine, workflowID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+instanceID, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var instance models.WorkflowInstance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&instance))
	assert.Equal(t, models.InstanceStatusRunning, instance.Status)
	assert.Equal(t, "Review", instance.CurrentState)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/instances/"+instanceID+"/suspend", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/instances/"+instanceID+"/resume", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	engine.Wait()

	// Resuming a Running instance conflicts.
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/instances/"+instanceID+"/resume", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/instances/"+instanceID+"/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIHandlers_ListInstances(t *testing.T) {
	app, engine := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)
	startTestInstance(t, app, engine, workflowID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/instances?workflow_id="+workflowID+"&status=running", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Instances  []models.WorkflowInstance `json:"instances"`
		TotalCount int                       `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Equal(t, 1, listed.TotalCount)
	require.Len(t, listed.Instances, 1)
}

func TestAPIHandlers_Variables(t *testing.T) {
	app, engine := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)
	instanceID := startTestInstance(t, app, engine, workflowID)

	req := httptest.NewRequest(http.MethodPut, "/instances/"+instanceID+"/variables/reviewer",
		bytes.NewBufferString(`{"value":"alice"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+instanceID+"/variables/reviewer", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var variable struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&variable))
	assert.Equal(t, "alice", variable.Value)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+instanceID+"/variables/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_Tasks(t *testing.T) {
	app, engine := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)
	instanceID := startTestInstance(t, app, engine, workflowID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tasks?assignee=alice", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Tasks      []models.WorkflowTask `json:"tasks"`
		TotalCount int                   `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Equal(t, 1, listed.TotalCount)

	taskID := listed.Tasks[0].ID
	assert.Equal(t, instanceID, listed.Tasks[0].InstanceID)

	// Missing assignee query is rejected.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/tasks", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/reassign",
		bytes.NewBufferString(`{"assigned_to":"bob"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/complete",
		bytes.NewBufferString(`{"result":{"approved":true}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	engine.Wait()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/tasks/"+taskID, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task models.WorkflowTask
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	// Completing again conflicts.
	req = httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/complete",
		bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_FailTask(t *testing.T) {
	app, engine := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)
	instanceID := startTestInstance(t, app, engine, workflowID)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tasks?assignee=alice", nil))
	require.NoError(t, err)

	var listed struct {
		Tasks []models.WorkflowTask `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Tasks, 1)

	taskID := listed.Tasks[0].ID

	// Missing error message fails validation.
	req := httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/fail", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/tasks/"+taskID+"/fail",
		bytes.NewBufferString(`{"error":"document corrupted"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+instanceID, nil))
	require.NoError(t, err)

	var instance models.WorkflowInstance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&instance))
	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
	assert.Equal(t, "document corrupted", instance.Error)
}

func TestAPIHandlers_StatsAndCleanup(t *testing.T) {
	app, engine := setupTestApp(t)

	workflowID := registerTestWorkflow(t, app)
	instanceID := startTestInstance(t, app, engine, workflowID)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/instances/"+instanceID+"/cancel", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+workflowID+"/stats", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats workflow.WorkflowStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalInstances)
	assert.Equal(t, 1, stats.InstancesByStatus[models.InstanceStatusCancelled])

	// Invalid hours parameter.
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/cleanup?hours=-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/cleanup?hours=0", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cleaned struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cleaned))
	assert.Equal(t, 1, cleaned.Removed)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/instances/"+instanceID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
