package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"warden/internal/accounts"
	httpapi "warden/internal/http"
	"warden/internal/notification"
	"warden/internal/platform/accesstoken"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/logger"
	"warden/internal/platform/postgres"
	redisplatform "warden/internal/platform/redis"
	rethandler "warden/internal/retention/handler"
	retmetrics "warden/internal/retention/metrics"
	retmodels "warden/internal/retention/models"
	retscheduler "warden/internal/retention/scheduler"
	retservice "warden/internal/retention/service"
	"warden/internal/retention/store/lock"
	retmetricsstore "warden/internal/retention/store/metrics"
	retrecordstore "warden/internal/retention/store/record"
	seshandler "warden/internal/sessionpolicy/handler"
	sesmetrics "warden/internal/sessionpolicy/metrics"
	sesservice "warden/internal/sessionpolicy/service"
	grantstore "warden/internal/sessionpolicy/store/grant"
	policystore "warden/internal/sessionpolicy/store/policy"
	sessionstore "warden/internal/sessionpolicy/store/session"
	"warden/internal/sessionpolicy/token"
	"warden/internal/verification/dns"
	vhandler "warden/internal/verification/handler"
	vmetrics "warden/internal/verification/metrics"
	vservice "warden/internal/verification/service"
	domainstore "warden/internal/verification/store/domain"
	profilestore "warden/internal/verification/store/profile"
	id "warden/pkg/domain"
	"warden/pkg/platform/audit"
	auditkafka "warden/pkg/platform/audit/publishers/kafka"
	auditmem "warden/pkg/platform/audit/store/memory"
	auditpg "warden/pkg/platform/audit/store/postgres"
	auditworker "warden/pkg/platform/audit/worker"
)

// accountStore is the slice of the accounts store the services share.
type accountStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*accounts.Account, error)
	ListWithLogin(ctx context.Context) ([]*accounts.Account, error)
	RecordLogin(ctx context.Context, userID id.UserID, at time.Time) error
	Anonymize(ctx context.Context, userID id.UserID) error
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store selection: PostgreSQL when configured, in-memory otherwise.
	var (
		db       *sql.DB
		domains  vservice.DomainStore
		profiles vservice.ProfileStore
		records  retservice.RecordStore
		daily    retservice.MetricsStore
		dirStore accountStore
		policies sesservice.PolicyStore
		locker   lock.Locker
		auditLog audit.Store
	)
	if cfg.Database.URL != "" {
		db, err = postgres.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			return err
		}
		domains = domainstore.NewPostgres(db)
		profiles = profilestore.NewPostgres(db)
		records = retrecordstore.NewPostgres(db)
		daily = retmetricsstore.NewPostgres(db)
		dirStore = accounts.NewPostgres(db)
		policies = policystore.NewPostgres(db)
		locker = lock.NewAdvisoryLocker(db)
		auditLog = auditpg.New(db)
		log.Info("using postgres stores")
	} else {
		domains = domainstore.NewInMemoryStore()
		profiles = profilestore.NewInMemoryStore()
		records = retrecordstore.NewInMemoryStore()
		daily = retmetricsstore.NewInMemoryStore()
		dirStore = accounts.NewMemory()
		policies = policystore.NewInMemoryStore()
		locker = lock.NewInMemoryLocker()
		auditLog = auditmem.New()
		log.Warn("no database configured, using in-memory stores")
	}

	var (
		sessions sesservice.SessionStore
		grants   sesservice.GrantStore
	)
	rdb, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		sessions = sessionstore.NewRedis(rdb.Client)
		grants = grantstore.NewRedis(rdb.Client)
		log.Info("using redis session stores")
	} else {
		sessions = sessionstore.NewInMemoryStore()
		grants = grantstore.NewInMemoryStore()
		log.Warn("no redis configured, using in-memory session stores")
	}

	publisher := audit.NewPublisher(auditLog)
	notifier := notification.NewLogSender(log)
	signingKey := []byte(cfg.JWTSigningKey)

	verificationSvc := vservice.NewService(domains, profiles, dns.New(cfg.Verification.DNSTimeout),
		vservice.WithLogger(log),
		vservice.WithMetrics(vmetrics.New()),
		vservice.WithNotifier(notifier),
		vservice.WithAuditPublisher(publisher),
	)

	periods := retmodels.DefaultPeriods()
	periods.PersonalMonths = cfg.Retention.PersonalMonths
	periods.BusinessMonths = cfg.Retention.BusinessMonths
	retentionSvc := retservice.NewService(records, daily, dirStore, dirStore,
		retservice.WithLogger(log),
		retservice.WithMetrics(retmetrics.New()),
		retservice.WithNotifier(notifier),
		retservice.WithLocker(locker),
		retservice.WithPeriods(periods),
		retservice.WithAuditPublisher(publisher),
	)

	sessionSvc := sesservice.NewService(policies, sessions, grants,
		accounts.NewVerifier(dirStore),
		token.NewIssuer(signingKey, cfg.Session.ReauthGrantTTL),
		sesservice.WithLogger(log),
		sesservice.WithMetrics(sesmetrics.New()),
		sesservice.WithAuditPublisher(publisher),
	)

	health := map[string]func(ctx context.Context) error{}
	if db != nil {
		health["postgres"] = db.PingContext
	}
	if rdb != nil {
		health["redis"] = rdb.Health
	}

	router := httpapi.New(httpapi.Deps{
		Logger:       log,
		Validator:    accesstoken.NewManager(signingKey, time.Hour),
		Enforcer:     sessionSvc,
		Verification: vhandler.New(verificationSvc, log),
		Retention:    rethandler.New(retentionSvc, log),
		Sessions:     seshandler.New(sessionSvc, log),
		HealthChecks: health,
	})

	scheduler := retscheduler.New(retentionSvc, log)
	if err := scheduler.Register(cfg.Retention.ScanSchedule, cfg.Retention.ScrubSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	group, ctx := errgroup.WithContext(ctx)

	if db != nil && len(cfg.Kafka.Seeds) > 0 {
		producer, err := auditkafka.NewProducer(cfg.Kafka.Seeds, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		worker := auditworker.New(db, producer, log, 5*time.Second, 100)
		group.Go(func() error { return worker.Run(ctx) })
		log.Info("audit outbox worker started", "topic", cfg.Kafka.AuditTopic)
	}

	srv := httpserver.New(cfg.Addr, router)
	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
