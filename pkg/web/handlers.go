// Package web provides HTTP handlers and REST API endpoints for the workflow engine.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/procflow/procflow/pkg/models"
	"github.com/procflow/procflow/pkg/persistence"
	"github.com/procflow/procflow/pkg/workflow"
)

type APIHandlers struct {
	engine    *workflow.Engine
	validator *validator.Validate
}

func NewAPIHandlers(engine *workflow.Engine, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		validator: validator,
	}
}

// RegisterRoutes mounts every endpoint on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Post("/workflows", h.RegisterWorkflow)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Post("/workflows/:id/instances", h.StartWorkflow)
	app.Get("/workflows/:id/stats", h.GetStats)
	app.Get("/stats", h.GetStats)

	app.Get("/instances", h.ListInstances)
	app.Get("/instances/:id", h.GetInstance)
	app.Post("/instances/:id/suspend", h.SuspendInstance)
	app.Post("/instances/:id/resume", h.ResumeInstance)
	app.Post("/instances/:id/cancel", h.CancelInstance)
	app.Put("/instances/:id/variables/:name", h.SetVariable)
	app.Get("/instances/:id/variables/:name", h.GetVariable)

	app.Get("/tasks", h.ListPendingTasks)
	app.Get("/tasks/:id", h.GetTask)
	app.Post("/tasks/:id/complete", h.CompleteTask)
	app.Post("/tasks/:id/fail", h.FailTask)
	app.Post("/tasks/:id/reassign", h.ReassignTask)

	app.Post("/cleanup", h.Cleanup)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) RegisterWorkflow(c fiber.Ctx) error {
	var req RegisterWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def := &models.WorkflowDefinition{
		Name:         req.Name,
		Version:      req.Version,
		States:       req.States,
		Transitions:  req.Transitions,
		InitialState: req.InitialState,
	}

	id, err := h.engine.RegisterWorkflow(c.Context(), def)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.engine.GetWorkflowDefinition(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req StartWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	instanceID, err := h.engine.StartWorkflow(c.Context(), id, req.Context, req.Session)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"instance_id": instanceID})
}

func (h *APIHandlers) ListInstances(c fiber.Ctx) error {
	filter := persistence.InstanceFilter{
		WorkflowID: c.Query("workflow_id"),
		Status:     models.InstanceStatus(c.Query("status")),
	}

	instances, err := h.engine.GetWorkflowInstances(c.Context(), filter)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"instances": instances, "total_count": len(instances)})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	instance, err := h.engine.GetWorkflowInstance(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) SuspendInstance(c fiber.Ctx) error {
	if err := h.engine.SuspendWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ResumeInstance(c fiber.Ctx) error {
	if err := h.engine.ResumeWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	if err := h.engine.CancelWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetVariable(c fiber.Ctx) error {
	var req SetVariableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	err := h.engine.SetVariable(c.Context(), c.Params("id"), c.Params("name"), req.Value)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetVariable(c fiber.Ctx) error {
	value, ok, err := h.engine.GetVariable(c.Context(), c.Params("id"), c.Params("name"))
	if err != nil {
		return handleEngineError(c, err)
	}

	if !ok {
		return notFound(c, "Variable not found")
	}

	return c.JSON(fiber.Map{"name": c.Params("name"), "value": value})
}

func (h *APIHandlers) ListPendingTasks(c fiber.Ctx) error {
	assignee := c.Query("assignee")
	if assignee == "" {
		return badRequest(c, "assignee query parameter is required")
	}

	tasks, err := h.engine.GetPendingTasks(c.Context(), assignee)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks, "total_count": len(tasks)})
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.engine.GetTask(c.Context(), c.Params("id"))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	var req CompleteTaskRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	err := h.engine.CompleteTask(c.Context(), c.Params("id"), req.Result, req.Session)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) FailTask(c fiber.Ctx) error {
	var req FailTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.engine.FailTask(c.Context(), c.Params("id"), req.Error, req.Session)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReassignTask(c fiber.Ctx) error {
	var req ReassignTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.engine.ReassignTask(c.Context(), c.Params("id"), req.AssignedTo)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		workflowID = c.Query("workflow_id")
	}

	stats, err := h.engine.GetWorkflowStats(c.Context(), workflowID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) Cleanup(c fiber.Ctx) error {
	hours := 24

	if hoursStr := c.Query("hours"); hoursStr != "" {
		parsed, err := strconv.Atoi(hoursStr)
		if err != nil || parsed < 0 {
			return badRequest(c, "hours must be a non-negative integer")
		}

		hours = parsed
	}

	removed, err := h.engine.CleanupCompletedInstances(c.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{"removed": removed})
}
