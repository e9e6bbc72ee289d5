// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
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

	"helpdesk/internal/database"
	"helpdesk/internal/events"
	jwttoken "helpdesk/internal/jwt"
	"helpdesk/internal/notification/channel"
	"helpdesk/internal/notification/dispatcher"
	nhandler "helpdesk/internal/notification/handler"
	nstore "helpdesk/internal/notification/store"
	"helpdesk/internal/permission"
	"helpdesk/internal/platform/config"
	"helpdesk/internal/platform/httpserver"
	"helpdesk/internal/platform/logger"
	"helpdesk/internal/platform/metrics"
	platformredis "helpdesk/internal/platform/redis"
	"helpdesk/internal/realtime/gateway"
	"helpdesk/internal/realtime/registry"
	thandler "helpdesk/internal/ticket/handler"
	"helpdesk/internal/ticket/models"
	"helpdesk/internal/ticket/sequence"
	"helpdesk/internal/ticket/service"
	tstore "helpdesk/internal/ticket/store"
	httptransport "helpdesk/internal/transport/http"
	id "helpdesk/pkg/domain"
	"helpdesk/pkg/email"
	"helpdesk/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Record stores: Postgres when a DSN is configured, in-memory otherwise.
	var (
		db            *sql.DB
		tickets       tstore.TicketStore
		history       tstore.HistoryStore
		statuses      tstore.StatusStore
		numbers       tstore.NumberStore
		notifications nstore.NotificationStore
		runner        tx.Runner
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = database.Open(cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Postgres.RunMigrate {
			if err := database.Migrate(db); err != nil {
				return err
			}
		}
		tickets = tstore.NewPostgresTicketStore(db)
		history = tstore.NewPostgresHistoryStore(db)
		statuses = tstore.NewPostgresStatusStore(db)
		numbers = tstore.NewPostgresNumberStore(db)
		notifications = nstore.NewPostgresNotificationStore(db)
		runner = tx.NewSQLRunner(db)
		log.Info("record store", "backend", "postgres")
	} else {
		tickets = tstore.NewInMemoryTicketStore()
		history = tstore.NewInMemoryHistoryStore()
		statuses = tstore.NewInMemoryStatusStore(
			models.Status{ID: 1, Name: "New"},
			models.Status{ID: 2, Name: "In Progress"},
			models.Status{ID: 3, Name: "Waiting on Customer"},
			models.Status{ID: 4, Name: "Resolved"},
			models.Status{ID: 5, Name: "Closed"},
		)
		numbers = tstore.NewInMemoryNumberStore()
		notifications = nstore.NewInMemoryNotificationStore()
		runner = tx.NewNoopRunner()
		log.Warn("record store", "backend", "memory", "note", "state is lost on restart")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "helpdesk", "helpdesk")

	reg := registry.New()
	gw := gateway.New(reg, jwtService, log, gateway.WithMetrics(m))

	oracle := permission.NewInMemoryOracle(func(ctx context.Context, number id.TicketNumber) (id.UserID, error) {
		t, err := tickets.FindByNumber(ctx, number)
		if err != nil {
			return id.UserID{}, err
		}
		return t.CreatorID, nil
	})

	directory := channel.NewStaticDirectory()
	var sender email.Sender
	if cfg.SMTP.Addr != "" {
		sender = email.NewSMTPSender(cfg.SMTP.Addr, cfg.SMTP.From, cfg.SMTP.Timeout)
	} else {
		sender = email.NewLogSender(log)
	}

	realtimeChannel := channel.NewRealtime(reg, gw)
	messageChannel := channel.NewMessage(sender, directory)

	disp := dispatcher.New(
		notifications,
		realtimeChannel,
		messageChannel,
		gw,
		gw,
		oracle,
		log,
		dispatcher.WithMetrics(m),
		dispatcher.WithUnreadCache(dispatcher.NewUnreadCache(redisClient, log)),
	)

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		publisher = events.NewPublisher(sink, log)
	}

	allocator := sequence.New(numbers, sequence.WithLogger(log), sequence.WithMetrics(m))
	lifecycle := service.New(tickets, history, statuses, allocator, oracle, disp, runner, log,
		service.WithMetrics(m), service.WithPublisher(publisher))

	health := map[string]httptransport.HealthChecker{}
	if db != nil {
		health["postgres"] = pingChecker{db: db}
	}
	if redisClient != nil {
		health["redis"] = redisClient
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Tickets:       thandler.New(lifecycle, log, m, jwtService),
		Notifications: nhandler.New(disp, log, m, jwtService),
		Websocket:     gw.HandleWS,
		Logger:        log,
		Health:        health,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ignoreCanceled(disp.Run(ctx))
	})
	if publisher != nil {
		group.Go(func() error {
			return ignoreCanceled(publisher.Run(ctx))
		})
	}
	group.Go(func() error {
		log.Info("starting helpdesk server", "addr", cfg.Server.Addr)
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

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type pingChecker struct{ db *sql.DB }

func (p pingChecker) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
