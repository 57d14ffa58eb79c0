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
	"github.com/shaiso/Flowline/internal/api"
	"github.com/shaiso/Flowline/internal/domain"
	"github.com/shaiso/Flowline/internal/engine"
	"github.com/shaiso/Flowline/internal/executor"
	"github.com/shaiso/Flowline/internal/manifest"
	"github.com/shaiso/Flowline/internal/mq"
	"github.com/shaiso/Flowline/internal/steps"
	"github.com/shaiso/Flowline/internal/store"
	"github.com/shaiso/Flowline/internal/telemetry"
	"github.com/shaiso/Flowline/internal/trigger"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting flowline-server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Загружаем манифест workflow
	manifestPath := os.Getenv("MANIFEST_PATH")
	if manifestPath == "" {
		manifestPath = "manifest.json"
	}

	loader, err := manifest.NewLoader(manifestPath)
	if err != nil {
		logger.Error("failed to load manifest", "path", manifestPath, "error", err)
		os.Exit(1)
	}
	logger.Info("manifest loaded", "path", manifestPath, "workflows", len(loader.Names()))

	// Выбираем хранилище: Postgres при заданном DB_URL, иначе память
	var st store.Store
	if os.Getenv("DB_URL") != "" {
		pool, err := store.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
		logger.Info("using postgres store")
	} else {
		st = store.NewMemory()
		logger.Info("using in-memory store")
	}

	// RabbitMQ опционален: без него нет событий жизненного цикла
	// и внешних очередей триггеров
	var conn *mq.Connection
	var publisher *mq.Publisher
	if os.Getenv("RABBITMQ_URL") != "" {
		conn, err = mq.Dial(mq.DefaultURL(), logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		publisher = mq.NewPublisher(conn, logger)
	}

	// Реестр обработчиков: встроенные задачи регистрируются здесь,
	// доменные обработчики добавляются по мере развития проекта
	registry := steps.NewRegistry()
	registry.Register(domain.StepTypeFileUploader, steps.NewFileUploaderHandler())

	exec := executor.New(registry, logger)

	eng := engine.New(engine.Config{
		Loader:    loader,
		Executor:  exec,
		Store:     st,
		Publisher: eventPublisher(publisher),
		Logger:    logger,
	})

	// start-sub-workflow замыкается на движок после его создания
	registry.Register(domain.StepTypeSubWorkflow, steps.NewSubWorkflowHandler(eng))

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	dispatcher := trigger.New(trigger.Config{
		Engine: eng,
		Conn:   conn,
		Logger: logger,
	})
	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start trigger dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Engine:     eng,
		Dispatcher: dispatcher,
		Logger:     logger,
		BaseCtx:    ctx,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
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
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown: сначала перестаём принимать запросы,
	// затем останавливаем триггеры и движок
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	dispatcher.Stop()
	eng.Stop()

	logger.Info("stopped")
}

// eventPublisher возвращает nil-интерфейс при отсутствии publisher:
// движок проверяет интерфейс на nil, а не конкретный тип.
func eventPublisher(p *mq.Publisher) engine.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
