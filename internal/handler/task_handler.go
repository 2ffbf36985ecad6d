package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/service"
)

// TaskHandler serves task endpoints.
type TaskHandler struct {
	svc service.TaskService
}

// NewTaskHandler creates a task handler.
func NewTaskHandler(svc service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// CreateTaskRequest represents a new task.
type CreateTaskRequest struct {
	Title       string                   `json:"title" validate:"required"`
	Description string                   `json:"description"`
	DueDate     string                   `json:"dueDate" validate:"required"`
	Priority    string                   `json:"priority"`
	Status      string                   `json:"status"`
	AssignedTo  model.OptionalID         `json:"assignedTo" swaggertype:"string"`
	Recurrence  *service.RecurrenceInput `json:"recurrence"`
}

// UpdateTaskRequest is a partial task update. Send assignedTo as null to unassign.
type UpdateTaskRequest struct {
	Title       *string                  `json:"title"`
	Description *string                  `json:"description"`
	DueDate     *string                  `json:"dueDate"`
	Priority    *string                  `json:"priority"`
	Status      *string                  `json:"status"`
	AssignedTo  model.OptionalID         `json:"assignedTo" swaggertype:"string"`
	Recurrence  *service.RecurrenceInput `json:"recurrence"`
}

// TaskQuery holds the list filters accepted on the query string.
type TaskQuery struct {
	Search     string `query:"search"`
	Status     string `query:"status"`
	Priority   string `query:"priority"`
	DueDate    string `query:"dueDate"`
	DueFrom    string `query:"dueFrom"`
	DueTo      string `query:"dueTo"`
	AssignedTo string `query:"assignedTo"`
	CreatedBy  string `query:"createdBy"`
	Overdue    bool   `query:"overdue"`
}

func (q TaskQuery) input() (service.ListTasksInput, error) {
	in := service.ListTasksInput{
		Search:   q.Search,
		Status:   q.Status,
		Priority: q.Priority,
		DueDate:  q.DueDate,
		DueFrom:  q.DueFrom,
		DueTo:    q.DueTo,
		Overdue:  q.Overdue,
	}
	var err error
	if in.AssignedTo, err = optionalUUID(q.AssignedTo, "assignedTo"); err != nil {
		return in, err
	}
	if in.CreatedBy, err = optionalUUID(q.CreatedBy, "createdBy"); err != nil {
		return in, err
	}
	return in, nil
}

// Create godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} model.TaskView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	task, err := h.svc.CreateTask(c.Request().Context(), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo.Value,
		Recurrence:  req.Recurrence,
	}, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

// List godoc
// @Summary List visible tasks
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param search query string false "Text search over title and description"
// @Param status query string false "Status"
// @Param priority query string false "Priority"
// @Param dueDate query string false "Due on this day (YYYY-MM-DD)"
// @Param dueFrom query string false "Due on or after"
// @Param dueTo query string false "Due on or before"
// @Param assignedTo query string false "Assignee ID"
// @Param createdBy query string false "Creator ID"
// @Param overdue query bool false "Only overdue tasks"
// @Success 200 {array} model.TaskView
// @Failure 400 {object} errors.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	return h.list(c, service.ViewAll)
}

// ListAssigned godoc
// @Summary Tasks assigned to the caller
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.TaskView
// @Router /tasks/assigned [get]
func (h *TaskHandler) ListAssigned(c echo.Context) error {
	return h.list(c, service.ViewAssigned)
}

// ListCreated godoc
// @Summary Tasks created by the caller
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.TaskView
// @Router /tasks/created [get]
func (h *TaskHandler) ListCreated(c echo.Context) error {
	return h.list(c, service.ViewCreated)
}

// ListOverdue godoc
// @Summary Overdue tasks visible to the caller
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.TaskView
// @Router /tasks/overdue [get]
func (h *TaskHandler) ListOverdue(c echo.Context) error {
	return h.list(c, service.ViewOverdue)
}

func (h *TaskHandler) list(c echo.Context, view service.ListView) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var q TaskQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return errors.Validation("invalid query parameters")
	}
	in, err := q.input()
	if err != nil {
		return err
	}

	tasks, err := h.svc.ListTasks(c.Request().Context(), in, view, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

// Get godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} model.TaskView
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	task, err := h.svc.GetTask(c.Request().Context(), id, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// Update godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to change"
// @Success 200 {object} model.TaskView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	task, err := h.svc.UpdateTask(c.Request().Context(), id, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
		Recurrence:  req.Recurrence,
	}, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.svc.DeleteTask(c.Request().Context(), id, user); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "task deleted"})
}
