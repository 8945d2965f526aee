package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-reminder/internal/recurrence"
	"task-reminder/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageDueDate
	stageRecurring
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

// Date-only input lands at this hour on the given day.
const defaultDueHour = 9

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or tap «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category or type your own (or «Skip»).", categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2026-11-30 18:00</code> or <code>2026-11-30</code> (or «Skip»).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			due, err := parseDueDate(text, b.location)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Could not read that date. Use <code>2026-11-30 18:00</code>, <code>2026-11-30</code> or «Skip».", skipKeyboard())
			}
			state.input.DueDate = &due
		}
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Should the task repeat?", recurrenceKeyboard())
	case stageRecurring:
		if isNoInput(text) {
			state.input.IsRecurring = false
		} else {
			period := recurrence.Period(text)
			if !recurrence.IsValidPeriod(period) {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the options below.", recurrenceKeyboard())
			}
			state.input.IsRecurring = true
			state.input.RecurrenceType = period
		}
		err := b.finishTaskCreation(ctx, msg, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, msg *tgbotapi.Message, input service.TaskInput) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.svc.Tasks.CreateTask(ctx, user.ID, input)
	if err != nil {
		return b.sendTextWithRemove(msg.Chat.ID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%d user=%d recurring=%t", task.ID, user.ID, task.IsRecurring)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.In(b.location).Format("2006-01-02 15:04")))
	}
	if task.IsRecurring {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", task.RecurrenceType))
		if task.NextOccurrence != nil {
			summary.WriteString(fmt.Sprintf("• <b>Next:</b> %s\n", task.NextOccurrence.In(b.location).Format("2006-01-02")))
		}
	}

	if err := b.sendTextWithRemove(msg.Chat.ID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user.ID)
}

// parseDueDate accepts "2006-01-02 15:04" or a bare date in loc.
func parseDueDate(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.ParseInLocation("2006-01-02 15:04", text, loc); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", text, loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(defaultDueHour * time.Hour), nil
}
