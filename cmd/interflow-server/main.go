// Interflow Server — API и движок выполнения flows в одном процессе.
//
// Сервер:
//   - Отдаёт REST API для flows, runs, интерфейсов, credentials и расписаний
//   - Выполняет flows синхронно: POST /flows/{id}/execute возвращает
//     завершённый run
//   - Потребляет flow.trigger из RabbitMQ (если очередь доступна)
//   - Помечает зависшие runs как FAILED (sweep)
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torbel/Interflow/internal/api"
	"github.com/torbel/Interflow/internal/dispatch"
	"github.com/torbel/Interflow/internal/engine"
	"github.com/torbel/Interflow/internal/executor"
	"github.com/torbel/Interflow/internal/mq"
	"github.com/torbel/Interflow/internal/repo"
	"github.com/torbel/Interflow/internal/telemetry"
	"github.com/torbel/Interflow/internal/worker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting interflow-server")

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

	// RabbitMQ: без него сервер живёт, но триггерная очередь
	// и события запусков выключены
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqConn, err = mq.NewConnection(mq.URLFromEnv(), "interflow-server", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, trigger queue and run events disabled", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Диспетчер исходящих вызовов
	dispatcher := dispatch.New(dispatch.Config{
		Interfaces:  ifaceRepo,
		Credentials: credRepo,
		Logger:      logger,
	})

	// Почта: без SMTP_ADDR email-узлы работают в эмуляции
	var mailer executor.Mailer
	if addr := os.Getenv("SMTP_ADDR"); addr != "" {
		mailer = executor.NewSMTPMailer(executor.SMTPConfig{
			Addr:     addr,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		})
		logger.Info("SMTP mailer configured", "addr", addr)
	}

	// Реестр исполнителей и движок
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

	// Worker: триггеры из очереди + sweep зависших runs
	w := worker.New(worker.Config{
		Runner: eng,
		Flows:  flowRepo,
		Runs:   runRepo,
		Conn:   mqConn,
		Logger: logger,
	})
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// API handler
	handler := api.NewHandler(api.Config{
		FlowRepo:     flowRepo,
		RunRepo:      runRepo,
		IfaceRepo:    ifaceRepo,
		CredRepo:     credRepo,
		ScheduleRepo: scheduleRepo,
		Engine:       eng,
		Dispatcher:   dispatcher,
		Kinds:        registry,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
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

	w.Stop()

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("interflow-server stopped")
}
