package api

import (
	"net/http"
	"strings"
	"time"

	"task-reminder/internal/model"
	"task-reminder/internal/recurrence"
	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

type createTaskRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	CategoryID     *uint             `json:"category_id"`
	AssigneeID     *uint             `json:"assignee_id"`
	DueDate        *time.Time        `json:"due_date"`
	IsRecurring    bool              `json:"is_recurring"`
	RecurrenceType recurrence.Period `json:"recurrence_type"`
}

type updateTaskRequest struct {
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Category       *string            `json:"category"`
	AssigneeID     *uint              `json:"assignee_id"`
	DueDate        *time.Time         `json:"due_date"`
	ClearDueDate   bool               `json:"clear_due_date"`
	IsRecurring    *bool              `json:"is_recurring"`
	RecurrenceType *recurrence.Period `json:"recurrence_type"`
}

type completeTaskResponse struct {
	Task *model.Task `json:"task"`
	Next *model.Task `json:"next,omitempty"`
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, err := parseUintPtr(q.Get("category_id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := repository.TaskFilter{
		Status:     model.TaskStatus(strings.TrimSpace(q.Get("status"))),
		CategoryID: categoryID,
		Recurring:  parseBoolPtr(q.Get("recurring")),
		Search:     strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && filter.Status != model.TaskPending && filter.Status != model.TaskCompleted {
		writeErr(w, http.StatusBadRequest, "status must be Pending or Completed")
		return
	}

	tasks, err := h.svc.Tasks.ListTasks(r.Context(), userID(r), filter)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.svc.Tasks.CreateTask(r.Context(), userID(r), service.TaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		CategoryID:     req.CategoryID,
		AssigneeID:     req.AssigneeID,
		DueDate:        req.DueDate,
		IsRecurring:    req.IsRecurring,
		RecurrenceType: req.RecurrenceType,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.svc.Tasks.GetTask(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.svc.Tasks.UpdateTask(r.Context(), userID(r), id, service.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		AssigneeID:     req.AssigneeID,
		DueDate:        req.DueDate,
		ClearDueDate:   req.ClearDueDate,
		IsRecurring:    req.IsRecurring,
		RecurrenceType: req.RecurrenceType,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Tasks.DeleteTask(r.Context(), userID(r), id); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint{"deleted": id})
}

func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Tasks.CompleteTask(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeTaskResponse{Task: res.Task, Next: res.Next})
}

func (h *Handler) markPending(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.svc.Tasks.MarkPending(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) stopRecurrence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.svc.Tasks.StopRecurrence(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) overdueTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.Tasks.ListOverdue(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) upcomingTasks(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"), 7)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks, err := h.svc.Tasks.ListUpcoming(r.Context(), userID(r), days)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) processRecurring(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Tasks.ProcessRecurringTasks(r.Context())
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories.ListWithCounts(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
