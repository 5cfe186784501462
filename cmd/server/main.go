package main

import (
	"cmp"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/HgH7/installment-tracker-2.0/internal/attachments"
	"github.com/HgH7/installment-tracker-2.0/internal/config"
	"github.com/HgH7/installment-tracker-2.0/internal/events/kafka"
	"github.com/HgH7/installment-tracker-2.0/internal/httpapi"
	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/ledger"
	"github.com/HgH7/installment-tracker-2.0/internal/logging"
	"github.com/HgH7/installment-tracker-2.0/internal/messaging"
	"github.com/HgH7/installment-tracker-2.0/internal/notifier"
	"github.com/HgH7/installment-tracker-2.0/internal/schedule"
	"github.com/HgH7/installment-tracker-2.0/internal/storage/csvfile"
	"github.com/HgH7/installment-tracker-2.0/internal/storage/memory"
	"github.com/HgH7/installment-tracker-2.0/internal/storage/sqlstore"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal("unable to load config", "err", err)
	}
	logger := logging.New(conf.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("close failed", "err", err)
			}
		}
	}()

	// storage backend
	var store interfaces.LedgerStore
	switch conf.Backend {
	case config.BackendCSV:
		store, err = csvfile.New(conf.LedgerFile, conf.BackupDir, logger)
	case config.BackendPostgres:
		var s *sqlstore.Store
		s, err = sqlstore.OpenPostgres(conf.DatabaseURL, logger)
		if err == nil {
			closers = append(closers, s)
			store = s
		}
	case config.BackendSQLite:
		var s *sqlstore.Store
		s, err = sqlstore.OpenSQLite(conf.SQLitePath, logger)
		if err == nil {
			closers = append(closers, s)
			store = s
		}
	default:
		store = memory.NewMemoryLedgerStore()
	}
	if err != nil {
		logger.Fatal("unable to open ledger storage", "backend", conf.Backend, "err", err)
	}

	policy, err := schedule.PolicyByName(conf.SchedulePolicy)
	if err != nil {
		logger.Fatal("bad schedule policy", "err", err)
	}

	// events and reminders go to Kafka when brokers are configured
	var publisher interfaces.EventPublisher = interfaces.NopPublisher{}
	var messenger interfaces.Messenger = messaging.NewLogMessenger(logger)
	if conf.KafkaEnabled() {
		p := kafka.NewPublisher(conf.KafkaBrokers, conf.KafkaEventsTopic)
		m := kafka.NewMessenger(conf.KafkaBrokers, conf.KafkaSMSTopic)
		closers = append(closers, p, m)
		publisher, messenger = p, m
		logger.Info("kafka enabled", "brokers", conf.KafkaBrokers)
	}

	l, err := ledger.New(ledger.Config{
		Store:     store,
		CacheTTL:  conf.CacheTTL,
		Policy:    policy,
		Publisher: publisher,
		Logger:    logger.WithPrefix("ledger"),
	})
	if err != nil {
		logger.Fatal("unable to create ledger", "err", err)
	}

	n, err := notifier.New(notifier.Config{
		Ledger:       l,
		Messenger:    messenger,
		Publisher:    publisher,
		Logger:       logger.WithPrefix("notifier"),
		Interval:     conf.NotifyInterval,
		WindowDays:   conf.NotifyWindowDays,
		MaxAttempts:  conf.NotifyMaxAttempts,
		RetryBackoff: conf.NotifyRetryBackoff,
		SendGap:      conf.NotifySendGap,
		Template:     cmp.Or(conf.ReminderTemplate, messaging.DefaultTemplate),
		Enabled:      conf.NotifyEnabled,
	})
	if err != nil {
		logger.Fatal("unable to create notifier", "err", err)
	}

	files, err := attachments.New(conf.AttachmentsDir, logger.WithPrefix("attachments"))
	if err != nil {
		logger.Fatal("unable to open attachments folder", "err", err)
	}

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		StartTime:   time.Now(),
		Ledger:      l,
		Notifier:    n,
		Attachments: files,
		Logger:      logger.WithPrefix("http"),
	})
	if err != nil {
		logger.Fatal("unable to create server", "err", err)
	}

	go n.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              conf.HTTPAddr,
		Handler:           server.GetRouterEngine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("starting server", "addr", conf.HTTPAddr, "backend", conf.Backend, "notifications", conf.NotifyEnabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "err", err)
	}
	logger.Info("server stopped")
}
