package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/app"
	"github.com/segyhp/credit-engine/internal/config"
	"github.com/segyhp/credit-engine/internal/logger"
	"github.com/segyhp/credit-engine/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.Logging)
	log.Info("starting portfolio scheduler")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer a.Close()

	c := cron.New(
		cron.WithParser(cron.NewParser(config.CronFields)),
		cron.WithLocation(cfg.SchedulerLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(cfg.Scheduler.Spec, sweepJob(ctx, a.Service, log)); err != nil {
		log.WithError(err).WithField("spec", cfg.Scheduler.Spec).Fatal("failed to schedule portfolio sweep")
	}

	c.Start()
	log.WithFields(logrus.Fields{
		"spec":     cfg.Scheduler.Spec,
		"timezone": cfg.Scheduler.Timezone,
	}).Info("scheduler started")

	<-ctx.Done()

	log.Info("shutting down scheduler")
	// wait for a running sweep to finish
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

// sweepJob refreshes overdue state and verifies client credit across the open portfolio.
func sweepJob(ctx context.Context, svc *service.LoanService, log logrus.FieldLogger) func() {
	return func() {
		if _, err := svc.SweepPortfolio(ctx, time.Now()); err != nil {
			log.WithError(err).Error("portfolio sweep failed")
		}
	}
}
