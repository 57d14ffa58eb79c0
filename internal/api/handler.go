package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Flowline/internal/engine"
)

// TriggerRestarter перезапускает диспетчер триггеров после reload
// манифеста (новое поколение — новые таймеры).
type TriggerRestarter interface {
	Restart(ctx context.Context) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine     *engine.Engine
	dispatcher TriggerRestarter
	logger     *slog.Logger

	// baseCtx — жизненный цикл процесса: перезапущенные таймеры
	// не должны наследовать контекст HTTP-запроса reload.
	baseCtx context.Context
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine     *engine.Engine
	Dispatcher TriggerRestarter
	Logger     *slog.Logger
	BaseCtx    context.Context
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx := cfg.BaseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handler{
		engine:     cfg.Engine,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
		baseCtx:    baseCtx,
	}
}
