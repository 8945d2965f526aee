package api

import (
	"net/http"
	"strings"

	"task-reminder/internal/model"
	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.NotificationFilter{
		IsRead:  parseBoolPtr(q.Get("is_read")),
		Status:  model.NotificationStatus(strings.TrimSpace(q.Get("status"))),
		Channel: model.Channel(strings.TrimSpace(q.Get("channel"))),
	}
	notifications, err := h.svc.Notifications.List(r.Context(), userID(r), filter)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.UnreadCount(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) getNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.svc.Notifications.Get(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.svc.Notifications.MarkRead(r.Context(), userID(r), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Notifications.Delete(r.Context(), userID(r), id); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint{"deleted": id})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Notifications.User(r.Context(), userID(r))
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs service.Preferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.svc.Notifications.UpdatePreferences(r.Context(), userID(r), prefs)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
