package commands

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"task-reminder/internal/bot"
	"task-reminder/internal/clock"
	"task-reminder/internal/config"
	"task-reminder/internal/model"
	"task-reminder/internal/notify"
	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

// app holds everything the commands share.
type app struct {
	cfg    config.Config
	db     *gorm.DB
	router *notify.Router

	users      *repository.UserRepository
	categories *repository.CategoryRepository

	tasks         *service.TaskService
	reminders     *service.ReminderService
	dispatch      *service.DispatchService
	notifications *service.NotificationService
	digest        *service.DigestService
}

func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	clk := clock.Real{}
	users := repository.NewUserRepository(db)
	categories := repository.NewCategoryRepository(db)
	tasks := repository.NewTaskRepository(db)
	triggers := repository.NewTriggerRepository(db)
	notifications := repository.NewNotificationRepository(db)

	router := notify.NewRouter()
	router.Register(model.ChannelInApp, notify.InApp())
	router.Register(model.ChannelEmail, notify.Log("email"))
	router.Register(model.ChannelSMS, notify.Log("sms"))

	return &app{
		cfg:           cfg,
		db:            db,
		router:        router,
		users:         users,
		categories:    categories,
		tasks:         service.NewTaskService(tasks, categories, triggers, notifications, clk),
		reminders:     service.NewReminderService(tasks, triggers, clk),
		dispatch:      service.NewDispatchService(triggers, tasks, users, notifications, router, clk, cfg.DispatchTimeout),
		notifications: service.NewNotificationService(notifications, users, clk),
		digest:        service.NewDigestService(tasks, categories, clk),
	}, nil
}

// startBot connects to Telegram and installs the bot as the push channel.
// It returns nil when no token is configured.
func (a *app) startBot() (*bot.Bot, error) {
	if !a.cfg.BotEnabled() {
		log.Println("[warn] telegram token not set, bot and push channel disabled")
		return nil, nil
	}
	b, err := bot.New(a.cfg.TelegramToken, bot.Services{
		Users:         a.users,
		Categories:    a.categories,
		Tasks:         a.tasks,
		Reminders:     a.reminders,
		Notifications: a.notifications,
		Digest:        a.digest,
		Dispatch:      a.dispatch,
		Clock:         clock.Real{},
	}, a.cfg.Location)
	if err != nil {
		return nil, err
	}
	a.router.Register(model.ChannelPush, b.Push())
	return b, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
