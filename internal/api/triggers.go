package api

import (
	"net/http"
	"strings"
	"time"

	"task-reminder/internal/cadence"
	"task-reminder/internal/model"
	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

type reminderRequest struct {
	Minutes int           `json:"minutes"`
	Channel model.Channel `json:"channel"`
}

type bulkReminderRequest struct {
	Offsets []int         `json:"offsets"`
	Channel model.Channel `json:"channel"`
}

type ruleRequest struct {
	Channel model.Channel   `json:"channel"`
	At      *time.Time      `json:"at"`
	Before  *cadence.Offset `json:"before"`
}

type offsetRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handler) taskTriggers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	triggers, err := h.svc.Reminders.ListForTask(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (h *Handler) createReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.CreateReminder(r.Context(), userID(r), id, req.Minutes, req.Channel)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trigger)
}

func (h *Handler) createReminders(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req bulkReminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	batch, err := h.svc.Reminders.CreateMultipleReminders(r.Context(), userID(r), id, req.Offsets, req.Channel)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.CreateRule(r.Context(), userID(r), id, service.RuleInput{
		Channel: req.Channel,
		At:      req.At,
		Before:  req.Before,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trigger)
}

func (h *Handler) listTriggers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TriggerFilter{
		State:   model.TriggerState(strings.TrimSpace(q.Get("state"))),
		Channel: model.Channel(strings.TrimSpace(q.Get("channel"))),
		Kind:    model.TriggerKind(strings.TrimSpace(q.Get("kind"))),
	}
	if filter.Channel != "" && !filter.Channel.Valid() {
		writeErr(w, http.StatusBadRequest, "unknown channel "+string(filter.Channel))
		return
	}
	triggers, err := h.svc.Reminders.ListForUser(r.Context(), userID(r), filter)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (h *Handler) activeTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.svc.Reminders.ListActive(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (h *Handler) triggerHistory(w http.ResponseWriter, r *http.Request) {
	triggers, err := h.svc.Reminders.ListHistory(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Reminders.ClearHistory(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) upcomingTriggers(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"), 7)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	triggers, err := h.svc.Reminders.Upcoming(r.Context(), userID(r), days)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

func (h *Handler) checkTriggers(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Dispatch.CheckAndFire(r.Context())
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.Get(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trigger)
}

func (h *Handler) detailedHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.DetailedHistory(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trigger)
}

func (h *Handler) updateTriggerOffset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	var req offsetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.UpdateReminderOffset(r.Context(), userID(r), id, req.Minutes)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trigger)
}

func (h *Handler) deleteTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Reminders.Delete(r.Context(), userID(r), id); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint{"deleted": id})
}

func (h *Handler) snoozeTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.Snooze(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trigger)
}

func (h *Handler) unsnoozeTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	trigger, err := h.svc.Reminders.Unsnooze(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trigger)
}
