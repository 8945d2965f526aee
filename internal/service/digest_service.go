package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"task-reminder/internal/clock"
	"task-reminder/internal/model"
	"task-reminder/internal/repository"
)

const dueSoonWindow = 48 * time.Hour

// DigestService builds human-readable summaries for daily notifications.
type DigestService struct {
	taskRepo     TaskStore
	categoryRepo *repository.CategoryRepository
	clock        clock.Clock
}

func NewDigestService(taskRepo TaskStore, categoryRepo *repository.CategoryRepository, clk clock.Clock) *DigestService {
	return &DigestService{taskRepo: taskRepo, categoryRepo: categoryRepo, clock: clk}
}

// DailySummary renders the open and recurring tasks of user as Telegram HTML.
func (s *DigestService) DailySummary(ctx context.Context, user model.User, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	now := s.clock.Now().In(loc)

	tasks, err := s.taskRepo.ListByUser(ctx, user.ID, repository.TaskFilter{Status: model.TaskPending})
	if err != nil {
		return "", err
	}

	categories, err := s.categoryRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	catNames := make(map[uint]string)
	for _, cat := range categories {
		catNames[cat.ID] = cat.Name
	}

	var overdue, soon, later, recurring []model.Task
	for _, task := range tasks {
		if task.IsRecurring {
			recurring = append(recurring, task)
		}
		switch {
		case task.DueDate == nil:
			later = append(later, task)
		case now.After(*task.DueDate):
			overdue = append(overdue, task)
		case task.DueDate.Sub(now) <= dueSoonWindow:
			soon = append(soon, task)
		default:
			later = append(later, task)
		}
	}
	for _, group := range [][]model.Task{overdue, soon, later} {
		sortByDue(group)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily summary</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))

	writeSection(&builder, "⚠️ <b>Overdue</b>", overdue, catNames, now)
	writeSection(&builder, "⏳ <b>Due soon</b>", soon, catNames, now)
	writeSection(&builder, "🟢 <b>Later</b>", later, catNames, now)

	builder.WriteString("\n♻️ <b>Recurring tasks</b>\n")
	if len(recurring) == 0 {
		builder.WriteString("— no recurring tasks\n")
	} else {
		for _, task := range recurring {
			builder.WriteString(formatRecurring(task, now, catNames))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func writeSection(builder *strings.Builder, header string, tasks []model.Task, catNames map[uint]string, now time.Time) {
	builder.WriteString("\n" + header + "\n")
	if len(tasks) == 0 {
		builder.WriteString("— nothing here\n")
		return
	}
	for _, task := range tasks {
		builder.WriteString(formatTask(task, catNames, now))
	}
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case tasks[i].DueDate == nil && tasks[j].DueDate == nil:
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		case tasks[i].DueDate == nil:
			return false
		case tasks[j].DueDate == nil:
			return true
		default:
			return tasks[i].DueDate.Before(*tasks[j].DueDate)
		}
	})
}

func categorySuffix(task model.Task, catNames map[uint]string) string {
	if task.CategoryID == nil {
		return ""
	}
	name := strings.TrimSpace(catNames[*task.CategoryID])
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name))
}

func formatTask(task model.Task, catNames map[uint]string, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("#%d %s%s", task.ID, html.EscapeString(strings.TrimSpace(task.Title)), categorySuffix(task, catNames)))

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · <b>overdue</b>", d.Format("2006-01-02 15:04")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d d. left", d.Format("2006-01-02 15:04"), daysLeft))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatRecurring(task model.Task, now time.Time, catNames map[uint]string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("♻️ %s%s", html.EscapeString(strings.TrimSpace(task.Title)), categorySuffix(task, catNames)))
	sb.WriteString(fmt.Sprintf("\n   🔁 %s", task.RecurrenceType))
	if task.NextOccurrence != nil {
		sb.WriteString(fmt.Sprintf(" · next %s", task.NextOccurrence.In(now.Location()).Format("2006-01-02")))
	}

	sb.WriteByte('\n')
	return sb.String()
}
