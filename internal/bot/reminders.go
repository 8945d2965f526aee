package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-reminder/internal/model"
	"task-reminder/internal/repository"
)

const upcomingDays = 7

// handleRemind creates minute reminders before a task's due date:
// /remind <task id> [minutes...]
func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) == 0 {
		return b.sendText(msg.Chat.ID, "Give the task ID and optional minutes: /remind 12 15 5")
	}
	taskID, err := parseID(fields[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	var offsets []int
	for _, raw := range fields[1:] {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return b.sendText(msg.Chat.ID, "Minutes must be positive numbers.")
		}
		offsets = append(offsets, minutes)
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	batch, err := b.svc.Reminders.CreateMultipleReminders(ctx, user.ID, taskID, offsets, model.ChannelPush)
	if err != nil {
		return b.sendText(msg.Chat.ID, userError(err))
	}

	text := fmt.Sprintf("🔔 %d reminder(s) added.", len(batch.Created))
	if len(batch.Skipped) > 0 {
		text += fmt.Sprintf("\nSkipped (already set or in the past): %s minutes.", joinInts(batch.Skipped))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReminders(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	triggers, err := b.svc.Reminders.Upcoming(ctx, user.ID, upcomingDays)
	if err != nil {
		return b.sendText(msg.Chat.ID, userError(err))
	}
	if len(triggers) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("No reminders in the next %d days.", upcomingDays))
	}

	titles := b.taskTitles(ctx, user.ID)
	var builder strings.Builder
	builder.WriteString("🔔 <b>Upcoming reminders</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, tr := range triggers {
		builder.WriteString(fmt.Sprintf("• <b>#%d</b> %s · %s · %s\n",
			tr.ID, tr.FireAt.In(b.location).Format("01-02 15:04"), tr.Channel, escape(titles[tr.TaskID])))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("💤 #%d", tr.ID), fmt.Sprintf("%s%d", cbSnoozePrefix, tr.ID)),
		))
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) taskTitles(ctx context.Context, userID uint) map[uint]string {
	titles := make(map[uint]string)
	tasks, err := b.svc.Tasks.ListTasks(ctx, userID, repository.TaskFilter{})
	if err != nil {
		return titles
	}
	for _, task := range tasks {
		titles[task.ID] = normalizeTitle(task.Title)
	}
	return titles
}

func (b *Bot) handleSnooze(ctx context.Context, msg *tgbotapi.Message, snooze bool) error {
	triggerID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the reminder ID from /reminders, e.g. /snooze 7")
	}
	return b.snooze(ctx, msg.Chat.ID, msg.From, triggerID, snooze)
}

func (b *Bot) snooze(ctx context.Context, chatID int64, from *tgbotapi.User, triggerID uint, snooze bool) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	if snooze {
		if _, err := b.svc.Reminders.Snooze(ctx, user.ID, triggerID); err != nil {
			return b.sendText(chatID, userError(err))
		}
		return b.sendText(chatID, fmt.Sprintf("💤 Reminder #%d paused. /unsnooze %d resumes it.", triggerID, triggerID))
	}
	if _, err := b.svc.Reminders.Unsnooze(ctx, user.ID, triggerID); err != nil {
		return b.sendText(chatID, userError(err))
	}
	return b.sendText(chatID, fmt.Sprintf("🔔 Reminder #%d is active again.", triggerID))
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	unread := false
	list, err := b.svc.Notifications.List(ctx, user.ID, repository.NotificationFilter{IsRead: &unread})
	if err != nil {
		return b.sendText(msg.Chat.ID, userError(err))
	}
	if len(list) == 0 {
		return b.sendText(msg.Chat.ID, "📭 No unread notifications.")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📬 <b>%d unread</b>\n", len(list)))
	for _, n := range list {
		builder.WriteString(fmt.Sprintf("• %s %s\n", n.CreatedAt.In(b.location).Format("01-02 15:04"), escape(n.Message)))
	}
	if _, err := b.svc.Notifications.MarkAllRead(ctx, user.ID); err != nil {
		return b.sendText(msg.Chat.ID, userError(err))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handlePush(ctx context.Context, msg *tgbotapi.Message) error {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return b.sendText(msg.Chat.ID, "Use /push on or /push off.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if err := b.svc.Users.UpdatePreferences(ctx, user, &enabled, nil, nil); err != nil {
		return b.sendText(msg.Chat.ID, userError(err))
	}
	if enabled {
		return b.sendText(msg.Chat.ID, "🔔 Reminders will be sent to this chat.")
	}
	return b.sendText(msg.Chat.ID, "🔕 Reminders will no longer be sent to this chat.")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
