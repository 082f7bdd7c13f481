package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	config "github.com/maheshrc27/persona-scheduler/configs"
	"github.com/maheshrc27/persona-scheduler/internal/api"
	"github.com/maheshrc27/persona-scheduler/internal/clock"
	"github.com/maheshrc27/persona-scheduler/internal/content"
	"github.com/maheshrc27/persona-scheduler/internal/conversation"
	"github.com/maheshrc27/persona-scheduler/internal/engagement"
	"github.com/maheshrc27/persona-scheduler/internal/generator"
	job "github.com/maheshrc27/persona-scheduler/internal/jobs"
	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/media"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/platform/fanvue"
	"github.com/maheshrc27/persona-scheduler/internal/platform/instagram"
	"github.com/maheshrc27/persona-scheduler/internal/platform/twitter"
	"github.com/maheshrc27/persona-scheduler/internal/platform/youtube"
	"github.com/maheshrc27/persona-scheduler/internal/queue"
	"github.com/maheshrc27/persona-scheduler/internal/quota"
	"github.com/maheshrc27/persona-scheduler/internal/repository"
	"github.com/maheshrc27/persona-scheduler/internal/scheduler"
	"github.com/maheshrc27/persona-scheduler/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel, cfg.LogJSON)
	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(cfg.PostgresURI)
	if err != nil {
		fatal(log, "database unavailable", err)
	}
	defer repository.CloseDB(db)

	repos := repository.NewRepositories(db)
	clk := clock.Real{}

	sealer, err := utils.NewSealer([]byte(cfg.SecretKey))
	if err != nil {
		fatal(log, "failed to create credential sealer", err)
	}
	saveCredentials := func(ctx context.Context, acc *models.PlatformAccount, creds platform.Credentials) error {
		sealed, err := sealer.SealJSON(creds)
		if err != nil {
			return err
		}
		return repos.Accounts.SetCredentials(ctx, acc.ID, sealed)
	}

	registry := newRegistry(ctx, cfg, sealer, saveCredentials, log)
	defer func() {
		if err := registry.CloseAll(); err != nil {
			log.Error("failed to close adapters", "error", err)
		}
	}()

	var (
		responder  generator.Responder = generator.NewTemplates()
		contentGen generator.ContentGenerator
	)
	if cfg.GeneratorURL != "" {
		gen := generator.NewHTTPClient(cfg.GeneratorURL, nil)
		responder, contentGen = gen, gen
	}

	tracker := quota.NewTracker(repos.Quotas, quota.DefaultsFromConfig(cfg.Quotas), clk, log)
	contents := content.NewLifecycle(repos.Contents, clk, cfg.Scheduler.RetryCeiling, log)
	convs := conversation.NewLifecycle(repos.Conversations, conversation.NewKeywordClassifier(), clk, cfg.Scheduler.RetryCeiling, log)
	planner := engagement.NewPlanner(engagement.HashtagSource{}, engagement.NewBalanced(0.2), repos.Engagements, 25, cfg.Scheduler.RetryCeiling, log)

	sched := scheduler.New(scheduler.Deps{
		Repos:         repos,
		Quota:         tracker,
		Registry:      registry,
		Content:       contents,
		Conversations: convs,
		Planner:       planner,
		Responder:     responder,
		Clock:         clk,
		Logger:        log,
	}, scheduler.ConfigFrom(cfg.Scheduler))

	if _, err := contents.RequeueStuck(ctx, cfg.Scheduler.AdapterTimeout); err != nil {
		log.Error("failed to requeue stuck content", "error", err)
	}

	// cron jobs
	tickJob := job.NewTickJob(ctx, sched, 0, log)
	analyticsJob := job.NewAnalyticsJob(ctx, repos.Accounts, registry, clk, cfg.Scheduler.WorkerConcurrency, cfg.Scheduler.AdapterTimeout, log)

	c := cron.New()
	mustSchedule(log, c, cfg.Scheduler.TickInterval, tickJob.Run)
	mustSchedule(log, c, cfg.Scheduler.AnalyticsInterval, analyticsJob.Run)
	if contentGen != nil {
		draftJob := job.NewDraftJob(ctx, repos, contentGen, cfg.Scheduler.MinDraftBacklog, log)
		mustSchedule(log, c, cfg.Scheduler.DraftInterval, draftJob.Run)
	}
	c.Start()

	// queue
	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	worker := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.Scheduler.WorkerConcurrency,
		Logger:      &asynqLogger{log.With("component", "asynq")},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeInboundMessage, queue.NewQueue(repos.Accounts, convs, log).HandleInboundMessageTask)
	if err := worker.Start(mux); err != nil {
		fatal(log, "could not start asynq server", err)
	}
	defer worker.Shutdown()

	app := api.NewServer(api.Deps{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		Enqueuer:      client,
		Accounts:      repos.Accounts,
		Registry:      registry,
		Content:       contents,
		Conversations: convs,
		AccessLog:     cfg.LogLevel == "debug",
		Logger:        log,
	})
	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error("http server stopped", "error", err)
			stop()
		}
	}()
	log.Info("scheduler running", "addr", cfg.HTTPAddr, "tick_interval", cfg.Scheduler.TickInterval, "platforms", registry.Platforms())

	<-ctx.Done()
	log.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("failed to shut down http server", "error", err)
	}

	// cron.Stop does not wait for running jobs; a pass may be mid-publish.
	c.Stop()
	tickJob.Wait()
	log.Info("scheduler stopped")
}

func newRegistry(ctx context.Context, cfg *config.Config, opener platform.CredentialOpener, save platform.CredentialSaver, log *slog.Logger) *platform.Registry {
	registry := platform.NewRegistry(log)

	igOpts := instagram.Options{Opener: opener}
	if cfg.R2.BucketName != "" {
		mirror, err := media.NewR2Mirror(ctx, cfg.R2)
		if err != nil {
			fatal(log, "failed to configure media mirror", err)
		}
		igOpts.Mirror = mirror
	}
	registry.Register(models.PlatformInstagram, instagram.NewFactory(igOpts))

	if cfg.Twitter.ClientID != "" {
		registry.Register(models.PlatformTwitter, twitter.NewFactory(twitter.Options{
			ClientID:     cfg.Twitter.ClientID,
			ClientSecret: cfg.Twitter.ClientSecret,
			Opener:       opener,
			Save:         save,
			Logger:       log,
		}))
	}

	registry.Register(models.PlatformFanvue, fanvue.NewFactory(fanvue.Options{
		BaseURL: cfg.FanvueAPIURL,
		Opener:  opener,
	}))

	if cfg.Google.ClientID != "" {
		registry.Register(models.PlatformYoutube, youtube.NewFactory(youtube.Options{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Opener:       opener,
			Save:         save,
			Logger:       log,
		}))
	}
	return registry
}

func mustSchedule(log *slog.Logger, c *cron.Cron, every time.Duration, fn func()) {
	if err := c.AddFunc("@every "+every.String(), fn); err != nil {
		fatal(log, "invalid job interval", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}

// asynqLogger routes asynq's logs through slog.
type asynqLogger struct{ l *slog.Logger }

func (a *asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...any) { a.l.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...any) { a.l.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a *asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
