// Package api serves tasks, triggers and notifications as JSON over HTTP.
//
// Every response is wrapped as {"data": ...} or {"error": "..."}.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

// Services bundles what the handlers call into.
type Services struct {
	Tasks         *service.TaskService
	Reminders     *service.ReminderService
	Dispatch      *service.DispatchService
	Notifications *service.NotificationService
	Categories    *repository.CategoryRepository
}

type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the full handler tree including middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	user := func(fn http.HandlerFunc) http.Handler { return requireUser(fn) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("GET /api/tasks", user(h.listTasks))
	mux.Handle("POST /api/tasks", user(h.createTask))
	mux.Handle("GET /api/tasks/overdue", user(h.overdueTasks))
	mux.Handle("GET /api/tasks/upcoming", user(h.upcomingTasks))
	mux.HandleFunc("POST /api/tasks/process-recurring", h.processRecurring)
	mux.Handle("GET /api/tasks/{id}", user(h.getTask))
	mux.Handle("PATCH /api/tasks/{id}", user(h.updateTask))
	mux.Handle("DELETE /api/tasks/{id}", user(h.deleteTask))
	mux.Handle("POST /api/tasks/{id}/complete", user(h.completeTask))
	mux.Handle("POST /api/tasks/{id}/pending", user(h.markPending))
	mux.Handle("POST /api/tasks/{id}/stop-recurrence", user(h.stopRecurrence))
	mux.Handle("GET /api/tasks/{id}/triggers", user(h.taskTriggers))
	mux.Handle("POST /api/tasks/{id}/reminders", user(h.createReminder))
	mux.Handle("POST /api/tasks/{id}/reminders/bulk", user(h.createReminders))
	mux.Handle("POST /api/tasks/{id}/rules", user(h.createRule))

	mux.Handle("GET /api/categories", user(h.listCategories))

	mux.Handle("GET /api/triggers", user(h.listTriggers))
	mux.Handle("GET /api/triggers/active", user(h.activeTriggers))
	mux.Handle("GET /api/triggers/history", user(h.triggerHistory))
	mux.Handle("DELETE /api/triggers/history", user(h.clearHistory))
	mux.Handle("GET /api/triggers/upcoming", user(h.upcomingTriggers))
	mux.HandleFunc("POST /api/triggers/check", h.checkTriggers)
	mux.Handle("GET /api/triggers/{id}", user(h.getTrigger))
	mux.Handle("GET /api/triggers/{id}/history", user(h.detailedHistory))
	mux.Handle("PATCH /api/triggers/{id}", user(h.updateTriggerOffset))
	mux.Handle("DELETE /api/triggers/{id}", user(h.deleteTrigger))
	mux.Handle("POST /api/triggers/{id}/snooze", user(h.snoozeTrigger))
	mux.Handle("POST /api/triggers/{id}/unsnooze", user(h.unsnoozeTrigger))

	mux.Handle("GET /api/notifications", user(h.listNotifications))
	mux.Handle("GET /api/notifications/unread-count", user(h.unreadCount))
	mux.Handle("POST /api/notifications/read-all", user(h.markAllRead))
	mux.Handle("GET /api/notifications/{id}", user(h.getNotification))
	mux.Handle("PATCH /api/notifications/{id}/read", user(h.markRead))
	mux.Handle("DELETE /api/notifications/{id}", user(h.deleteNotification))

	mux.Handle("GET /api/me", user(h.me))
	mux.Handle("PATCH /api/me/preferences", user(h.updatePreferences))

	return chain(mux, withRequestID, withRecover, withAccessLog)
}

// Server runs the handler tree until its context is cancelled.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, h *Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[info] http server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Println("[info] http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
