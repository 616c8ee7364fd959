// Interflow Scheduler — запускает flows по расписаниям.
//
// Scheduler:
//   - Раз в секунду выбирает due расписания (enabled, next_due_at <= now)
//   - Запускает каждый flow синхронно через движок
//   - Сдвигает next_due_at по cron-выражению или интервалу
//
// Несколько экземпляров соревнуются за pg advisory lock: тикает
// только лидер, остальные ждут. Потерявший лидерство экземпляр
// подхватит работу, как только лок освободится.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torbel/Interflow/internal/dispatch"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/executor"
	"github.com/torbel/Interflow/internal/mq"
	"github.com/torbel/Interflow/internal/repo"
	"github.com/torbel/Interflow/internal/scheduler"
	"github.com/torbel/Interflow/internal/telemetry"
)

const schedLockKey int64 = 515253

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting interflow-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории
	flowRepo := repo.NewFlowRepo(pool)
	runRepo := repo.NewRunRepo(pool)
	ifaceRepo := repo.NewInterfaceRepo(pool)
	credRepo := repo.NewCredentialRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ: опционально, только для событий запусков
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), "interflow-scheduler", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, run events disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")
		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Движок: расписания выполняют flows синхронно внутри тика
	dispatcher := dispatch.New(dispatch.Config{
		Interfaces:  ifaceRepo,
		Credentials: credRepo,
		Logger:      logger,
	})

	var mailer executor.Mailer
	if addr := os.Getenv("SMTP_ADDR"); addr != "" {
		mailer = executor.NewSMTPMailer(executor.SMTPConfig{
			Addr:     addr,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		})
	}

	registry := executor.DefaultRegistry(executor.RegistryConfig{
		Dispatcher: dispatcher,
		Interfaces: ifaceRepo,
		Mailer:     mailer,
		Logger:     logger,
	})

	engCfg := engine.Config{
		Flows:    flowRepo,
		Runs:     runRepo,
		Registry: registry,
		Logger:   logger,
	}
	if publisher != nil {
		engCfg.Publisher = publisher
	}
	eng := engine.New(engCfg)

	sched := scheduler.New(scheduler.Config{
		Schedules: scheduleRepo,
		Runner:    eng,
		Logger:    logger,
	})

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock", "error", err)
						continue
					}
					if ok {
						logger.Info("became scheduler leader")
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("interflow-scheduler stopped")
}
