package commands

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"task-reminder/internal/api"
	"task-reminder/internal/service"
)

const jobTimeout = 5 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the scheduler and the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	telegramBot, err := a.startBot()
	if err != nil {
		return err
	}

	scheduler := service.NewSchedulerService(a.cfg.Location)
	if err := scheduler.ScheduleInterval("trigger-check", a.cfg.CheckInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if _, err := a.dispatch.CheckAndFire(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[error] trigger check: %v", err)
		}
	}); err != nil {
		return err
	}
	if err := scheduler.ScheduleDaily("daily-check", a.cfg.DailyCheckTime, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		if _, err := a.dispatch.CheckAndFire(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[error] daily trigger check: %v", err)
		}
		if _, err := a.tasks.ProcessRecurringTasks(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[error] recurrence catch-up: %v", err)
		}
		if telegramBot != nil {
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[error] daily reports: %v", err)
			}
		}
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.StopAll()

	server := api.NewServer(a.cfg.HTTPAddr, api.NewHandler(api.Services{
		Tasks:         a.tasks,
		Reminders:     a.reminders,
		Dispatch:      a.dispatch,
		Notifications: a.notifications,
		Categories:    a.categories,
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if telegramBot != nil {
		g.Go(func() error {
			return telegramBot.Start(gctx)
		})
	}

	log.Printf("[info] task reminder started, jobs: %v", scheduler.JobNames())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("[info] shutdown complete")
	return nil
}
