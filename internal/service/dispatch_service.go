package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"task-reminder/internal/clock"
	"task-reminder/internal/model"
	"task-reminder/internal/notify"
	"task-reminder/internal/repository"
)

const (
	defaultDispatchTimeout = 10 * time.Second
	// scanTimeout bounds how long one scan keeps claiming triggers.
	scanTimeout = 5 * time.Minute
)

// TickResult summarizes one scan of the trigger store.
type TickResult struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Scanned   int       `json:"scanned"`
	Fired     int       `json:"fired"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
}

// DispatchService fires due triggers and records their notifications.
type DispatchService struct {
	triggers      TriggerStore
	tasks         TaskStore
	users         UserStore
	notifications NotificationStore
	dispatcher    notify.Dispatcher
	clock         clock.Clock
	timeout       time.Duration

	group singleflight.Group
}

func NewDispatchService(triggers TriggerStore, tasks TaskStore, users UserStore, notifications NotificationStore, dispatcher notify.Dispatcher, clk clock.Clock, timeout time.Duration) *DispatchService {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &DispatchService{
		triggers:      triggers,
		tasks:         tasks,
		users:         users,
		notifications: notifications,
		dispatcher:    dispatcher,
		clock:         clk,
		timeout:       timeout,
	}
}

// CheckAndFire scans for due triggers and fires each one at most once. Callers
// arriving while a scan is running share its result. The scan runs detached from
// ctx under its own deadline; a caller that gives up only stops waiting.
func (s *DispatchService) CheckAndFire(ctx context.Context) (*TickResult, error) {
	scanCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("tick", func() (interface{}, error) {
		tickCtx, cancel := context.WithTimeout(scanCtx, scanTimeout)
		defer cancel()
		return s.tick(tickCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			log.Printf("[info] trigger check joined a running scan")
		}
		return r.Val.(*TickResult), nil
	}
}

func (s *DispatchService) tick(ctx context.Context) (*TickResult, error) {
	now := s.clock.Now()
	res := &TickResult{RunID: uuid.NewString(), StartedAt: now}

	due, err := s.triggers.FindDue(ctx, now)
	if err != nil {
		return nil, err
	}
	res.Scanned = len(due)

	for i := range due {
		if ctx.Err() != nil {
			log.Printf("[warn] tick %s: stopped after %d of %d triggers: %v", res.RunID, i, len(due), ctx.Err())
			break
		}
		s.fire(ctx, &due[i], now, res)
	}

	if res.Scanned > 0 {
		log.Printf("[info] tick %s: scanned=%d fired=%d delivered=%d failed=%d skipped=%d errors=%d",
			res.RunID, res.Scanned, res.Fired, res.Delivered, res.Failed, res.Skipped, res.Errors)
	}
	return res, nil
}

// fire processes one trigger. Errors are logged and counted, never returned:
// one bad trigger must not stop the scan.
func (s *DispatchService) fire(ctx context.Context, trigger *model.Trigger, now time.Time, res *TickResult) {
	task, err := s.tasks.Get(ctx, trigger.TaskID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[warn] tick %s: load task %d: %v", res.RunID, trigger.TaskID, err)
		}
		task = nil
	}
	snapshot := model.TriggerSnapshot{OffsetMinutes: trigger.OffsetMinutes, SentAt: now}
	if task != nil {
		title := task.Title
		snapshot.TaskTitle = &title
		snapshot.DueDate = task.DueDate
	}

	if err := s.triggers.MarkTriggered(ctx, trigger.ID, now, snapshot); err != nil {
		if errors.Is(err, repository.ErrAlreadyTriggered) {
			res.Skipped++
			return
		}
		log.Printf("[error] tick %s: claim trigger %d: %v", res.RunID, trigger.ID, err)
		res.Errors++
		return
	}
	res.Fired++
	// A claimed trigger is never retried, so the rest must not be cut short.
	ctx = context.WithoutCancel(ctx)

	title := "(deleted task)"
	if snapshot.TaskTitle != nil {
		title = *snapshot.TaskTitle
	}
	if err := s.triggers.AppendHistory(ctx, trigger.ID, model.TriggerHistory{
		TriggeredAt: now,
		Status:      "triggered",
		Message:     fmt.Sprintf("Reminder triggered for task: %s", title),
	}); err != nil {
		log.Printf("[warn] tick %s: history for trigger %d: %v", res.RunID, trigger.ID, err)
	}

	user, err := s.users.FindByID(ctx, trigger.UserID)
	if err != nil {
		log.Printf("[error] tick %s: recipient of trigger %d: %v", res.RunID, trigger.ID, err)
		res.Errors++
		return
	}

	offset := trigger.OffsetMinutes
	meta := model.NotificationMeta{
		TaskTitle:     snapshot.TaskTitle,
		DueDate:       snapshot.DueDate,
		OffsetMinutes: &offset,
		TriggerType:   string(trigger.TriggerType),
	}
	triggerID := trigger.ID
	n := &model.Notification{
		UserID:    trigger.UserID,
		TaskID:    trigger.TaskID,
		TriggerID: &triggerID,
		Channel:   trigger.Channel,
		Title:     "Task reminder",
		Message:   ReminderText(trigger, title, snapshot.DueDate),
		Status:    model.NotificationPending,
		Metadata:  datatypes.NewJSONType(meta),
		DedupKey:  DedupKey(trigger),
	}
	created, err := s.notifications.Create(ctx, n)
	if err != nil {
		log.Printf("[error] tick %s: notification for trigger %d: %v", res.RunID, trigger.ID, err)
		res.Errors++
		return
	}
	if !created {
		res.Skipped++
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result := s.dispatcher.Send(sendCtx, notify.Message{
		Channel:   trigger.Channel,
		Recipient: *user,
		Title:     n.Title,
		Body:      n.Message,
		Metadata:  meta,
	})
	cancel()

	status := model.NotificationSent
	if result.Success {
		res.Delivered++
	} else {
		status = model.NotificationFailed
		res.Failed++
		log.Printf("[warn] tick %s: deliver trigger %d on %s: %s", res.RunID, trigger.ID, trigger.Channel, result.Reason)
	}
	if err := s.notifications.RecordDelivery(ctx, n.ID, status, s.clock.Now(), result.Reason); err != nil {
		log.Printf("[error] tick %s: record delivery of notification %d: %v", res.RunID, n.ID, err)
	}
}

// DedupKey identifies one firing event of a trigger.
func DedupKey(trigger *model.Trigger) string {
	return fmt.Sprintf("%d@%d", trigger.ID, trigger.FireAt.Unix())
}

// ReminderText renders the text a user receives when trigger fires.
func ReminderText(trigger *model.Trigger, title string, due *time.Time) string {
	if trigger.TriggerType == model.TypeOnDue || (trigger.TriggerType == model.TypeBeforeDue && trigger.OffsetMinutes == 0) {
		if due != nil {
			return fmt.Sprintf("⏰ Task %q is due now (%s)", title, due.Format("02.01.2006 15:04"))
		}
		return fmt.Sprintf("⏰ Task %q is due now", title)
	}
	if trigger.TriggerType == model.TypeAtTime {
		return fmt.Sprintf("🔔 Reminder for task %q", title)
	}

	m := trigger.OffsetMinutes
	switch {
	case m == 1:
		return fmt.Sprintf("⏰ Task %q is due in 1 minute!", title)
	case m <= 5:
		return fmt.Sprintf("⏰ Task %q is due in %d minutes!", title, m)
	case m%(24*60) == 0:
		return fmt.Sprintf("⏰ Task %q is due in %s", title, plural(m/(24*60), "day"))
	case m%60 == 0:
		return fmt.Sprintf("⏰ Task %q is due in %s", title, plural(m/60, "hour"))
	default:
		return fmt.Sprintf("⏰ Task %q is due in %d minutes", title, m)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
