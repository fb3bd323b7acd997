// Package app wires configuration, storage, providers and services into a
// runnable engine shared by the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rijksuitgaven/mailengine/internal/api"
	"github.com/rijksuitgaven/mailengine/internal/config"
	"github.com/rijksuitgaven/mailengine/internal/contactsync"
	"github.com/rijksuitgaven/mailengine/internal/metrics"
	"github.com/rijksuitgaven/mailengine/internal/pkg/distlock"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/provider/resend"
	"github.com/rijksuitgaven/mailengine/internal/provider/ses"
	"github.com/rijksuitgaven/mailengine/internal/repository/postgres"
	"github.com/rijksuitgaven/mailengine/internal/service/audience"
	"github.com/rijksuitgaven/mailengine/internal/service/campaign"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
	"github.com/rijksuitgaven/mailengine/internal/service/engagement"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
	"github.com/rijksuitgaven/mailengine/internal/storage"
	"github.com/rijksuitgaven/mailengine/internal/worker"
)

// App holds the wired engine. Optional parts are nil when unconfigured.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Metrics *metrics.Metrics

	Audience    *audience.Service
	Campaigns   *campaign.Service
	Sequences   *sequence.Service
	Suppression *suppression.Service
	Engagement  *engagement.Service
	Verifier    *engagement.Verifier
	Contacts    *contactsync.Syncer
	Worker      *worker.SequenceWorker
}

// ConfigureLogger applies the log settings of cfg to the global logger.
func ConfigureLogger(cfg config.LogConfig, service string) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(!cfg.DisableRedaction)
	logger.SetService(service)
}

// New connects to Postgres and Redis and builds every service. The caller
// owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	loc, err := cfg.Mail.Location()
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, Metrics: metrics.New()}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = a.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, scheduler lock falls back to postgres", "error", err.Error())
			a.Redis.Close()
			a.Redis = nil
		}
	}

	if err := a.build(ctx, loc); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, loc *time.Location) error {
	cfg := a.Config

	renderer, err := delivery.NewRenderer(cfg.Mail.BaseURL)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	var resendClient *resend.Client
	if cfg.Resend.APIKey != "" {
		resendClient = resend.NewClient(resend.Config{
			APIKey:     cfg.Resend.APIKey,
			AudienceID: cfg.Resend.AudienceID,
			BaseURL:    cfg.Resend.BaseURL,
			Timeout:    cfg.Resend.Timeout(),
			MaxRetries: cfg.Resend.MaxRetries,
		})
	}

	var sender delivery.Sender
	switch cfg.ProviderName() {
	case "resend":
		if resendClient == nil {
			return errors.New("mail provider resend selected but RESEND_API_KEY is empty")
		}
		sender = resendClient
	case "ses":
		s, err := ses.NewSender(ctx, ses.Config{
			Region:           cfg.SES.Region,
			AccessKey:        cfg.SES.AccessKey,
			SecretKey:        cfg.SES.SecretKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
		})
		if err != nil {
			return fmt.Errorf("init ses: %w", err)
		}
		sender = s
	}

	var pipeline *delivery.Pipeline
	if sender != nil {
		pipeline = delivery.NewPipeline(sender, a.Metrics).
			WithDelay(cfg.Mail.SendDelay()).
			WithBatchSize(cfg.Mail.BatchSize)
		logger.Info("mail provider configured", "provider", cfg.ProviderName())
	} else {
		logger.Warn("no mail provider configured, sends will fail")
	}

	archive, err := storage.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}

	var mirror suppression.ContactMirror
	if cfg.ContactSync.Enabled && resendClient != nil && cfg.Resend.AudienceID != "" {
		a.Contacts = contactsync.NewSyncer(resendClient, postgres.NewContactRepo(a.DB), a.Metrics, contactsync.Config{
			QueueSize:   cfg.ContactSync.QueueSize,
			CallTimeout: cfg.Resend.Timeout(),
		})
		mirror = a.Contacts
	}

	a.Audience = audience.NewService(postgres.NewAudienceRepo(a.DB))
	a.Suppression = suppression.NewService(postgres.NewSuppressionRepo(a.DB), mirror)
	a.Engagement = engagement.NewService(postgres.NewEventRepo(a.DB), a.Suppression, a.Metrics)
	a.Campaigns = campaign.NewService(postgres.NewCampaignRepo(a.DB), a.Audience, pipeline, renderer, campaign.Options{
		BaseURL:    cfg.Mail.BaseURL,
		From:       cfg.Mail.From,
		ReplyTo:    cfg.Mail.ReplyTo,
		Archive:    archive,
		ArchiveKey: storage.CampaignKey,
	})
	a.Sequences = sequence.NewService(postgres.NewSequenceRepo(a.DB), pipeline, renderer, sequence.Options{
		BaseURL:  cfg.Mail.BaseURL,
		From:     cfg.Mail.From,
		Location: loc,
		Metrics:  a.Metrics,
	})

	if cfg.Resend.WebhookSecret != "" {
		v, err := engagement.NewVerifier(cfg.Resend.WebhookSecret, cfg.Webhook.Tolerance(), cfg.Webhook.MaxBodyBytes)
		if err != nil {
			return fmt.Errorf("init webhook verifier: %w", err)
		}
		a.Verifier = v
	} else {
		logger.Warn("RESEND_WEBHOOK_SECRET not set, webhooks will be refused")
	}

	lock := distlock.NewLock(a.Redis, a.DB, cfg.Worker.LockKey, cfg.Worker.LockTTL())
	a.Worker, err = worker.NewSequenceWorker(a.Sequences, lock, worker.SequenceConfig{
		Schedule: cfg.Worker.Schedule,
		Location: loc,
	})
	if err != nil {
		return fmt.Errorf("init sequence worker: %w", err)
	}
	return nil
}

// Handlers builds the HTTP handlers over the wired services.
func (a *App) Handlers() *api.Handlers {
	d := api.Deps{
		Ticks:              a.Worker,
		Verifier:           a.Verifier,
		Sequences:          a.Sequences,
		Events:             a.Engagement,
		Unsubscriber:       a.Suppression,
		Audience:           a.Audience,
		Campaigns:          a.Campaigns,
		Metrics:            a.Metrics,
		CronSecret:         a.Config.Security.CronSecret,
		AdminToken:         a.Config.Security.AdminToken,
		UnsubscribeMaxBody: int64(a.Config.Unsubscribe.MaxBodyBytes),
		UnsubscribePerMin:  a.Config.Unsubscribe.RatePerMinute,
	}
	// A nil *Syncer must not become a non-nil interface.
	if a.Contacts != nil {
		d.Contacts = a.Contacts
	}
	return api.NewHandlers(d)
}

// HealthChecker checks the app's database, Redis and scheduler.
func (a *App) HealthChecker() *api.HealthChecker {
	return api.NewHealthChecker(a.DB, a.Redis, a.Worker, 2*time.Hour)
}

// Start launches background goroutines that are not tied to a binary.
func (a *App) Start(ctx context.Context) {
	if a.Contacts != nil {
		a.Contacts.Start(ctx)
	}
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.Contacts != nil {
		a.Contacts.Stop()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
