package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/httpserver"
	"github.com/civicdesk/civicdesk/internal/inference"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/metrics"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/mykafka"
	"github.com/civicdesk/civicdesk/internal/realtime"
	"github.com/civicdesk/civicdesk/internal/repo"
	"github.com/civicdesk/civicdesk/internal/search"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/pkg/config"
	"github.com/civicdesk/civicdesk/pkg/db"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhooks and realtime hubs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations on startup")
	return cmd
}

func closeDB(gdb *gorm.DB, log *slog.Logger) {
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Error("db handle", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("db close", "error", err)
	}
}

func serve(parent context.Context, cfg config.Config, migrate bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.ServiceName)
	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(ctx, cfg.DatabaseURL, db.Pool{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns})
	if err != nil {
		return err
	}
	defer closeDB(gdb, log)
	if migrate {
		if err := db.Migrate(ctx, gdb); err != nil {
			return err
		}
	}

	r := repo.New(gdb)
	bus := eventbus.New(log)
	sessions := &service.SessionService{Repo: r, AccessTTL: cfg.AccessTokenTTL, RefreshTTL: cfg.RefreshTokenTTL}
	complaints := &service.ComplaintService{Repo: r, Bus: bus, Labels: cfg.AILabels}
	intake := &service.IntakeService{Complaints: complaints, Bus: bus}
	voiceAgent := &service.VoiceAgentService{Complaints: complaints}
	if cfg.AIServiceURL != "" {
		ai := inference.NewClient(cfg.AIServiceURL)
		complaints.Classifier = ai
		voiceAgent.Agent, voiceAgent.Classifier = ai, ai
	}
	auth := &service.AuthService{
		Repo:        r,
		Sessions:    sessions,
		Sender:      service.LogSender{},
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		EchoCode:    cfg.OTPEchoCode,
	}

	workers, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	var wg sync.WaitGroup
	var subs []*eventbus.Subscription
	runWorker := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(workers)
		}()
	}

	searchHTTP := &httpserver.SearchHTTP{}
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword, log)
		if err != nil {
			return err
		}
		searchHTTP.Searcher = &search.Searcher{ES: es, Index: cfg.ESIndex}
		indexer := search.NewIndexer(r, es, cfg.ESIndex, search.DefaultQueueSize, log)
		subs = append(subs, indexer.Subscribe(bus))
		runWorker(indexer.Run)
	}

	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		sink := mykafka.NewSink(producer, mykafka.DefaultBufferSize, log)
		subs = append(subs, sink.Subscribe(bus))
		runWorker(sink.Run)
		log.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	rt := realtime.NewServer(sessions, complaints, bus, log)
	subs = append(subs, rt.Subscribe())

	e := httpserver.New(&httpserver.Deps{
		Log:           log,
		Health:        &httpserver.HealthHTTP{DB: gdb},
		Auth:          &httpserver.AuthHTTP{Auth: auth, Sessions: sessions},
		Complaints:    &httpserver.ComplaintHTTP{Svc: complaints},
		Media:         &httpserver.MediaHTTP{Svc: complaints},
		Assignments:   &httpserver.AssignmentHTTP{Svc: &service.AssignmentService{Repo: r, Bus: bus}},
		AI:            &httpserver.AIHTTP{Svc: complaints},
		Citizens:      &httpserver.CitizenHTTP{Svc: &service.CitizenService{Repo: r}},
		Notifications: &httpserver.NotificationHTTP{Svc: &service.NotificationService{Repo: r}},
		Interactions:  &httpserver.InteractionHTTP{Intake: intake, Voice: voiceAgent},
		Search:        searchHTTP,
		Intake:        &httpserver.IntakeHTTP{Svc: intake},

		Sessions:     sessions,
		OTPLimiter:   middleware.NewRateLimiter(cfg.OTPRatePerMinute, cfg.OTPRateBurst),
		IntakeKey:    cfg.IntakeJWTSecret,
		IntakeIssuer: cfg.IntakeJWTIssuer,
		Realtime:     rt,
	})
	if len(cfg.IntakeJWTSecret) == 0 {
		log.Warn("intake webhooks are not authenticated", "hint", "set INTAKE_JWT_SECRET")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		log.Error("http server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	rt.Close()
	for _, s := range subs {
		s.Close()
	}
	cancelWorkers()
	wg.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("kafka close", "error", err)
		}
	}
	log.Info("shutdown complete")
	return serveErr
}
