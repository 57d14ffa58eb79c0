package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Flowline/internal/domain"
)

// Ошибки реестра обработчиков.
var (
	// ErrHandlerNotFound — обработчик не найден в реестре.
	ErrHandlerNotFound = errors.New("step handler not found")

	// ErrInvalidParams — невалидные params шага.
	ErrInvalidParams = errors.New("invalid step params")
)

// Request — входные данные для выполнения шага.
type Request struct {
	// Step — определение шага (ID, params, retry-настройки).
	Step *domain.Step

	// Message — входное сообщение от предыдущего шага.
	Message *domain.FlowMessage

	// Context — контекст инстанса для обмена объектами между шагами.
	Context *domain.ExecutionContext
}

// Handler — обработчик одного типа шага.
//
// Обработчик — внешний коллаборатор ядра: он получает входное сообщение
// и контекст инстанса и обязан вернуть новое FlowMessage либо ошибку.
// Ключи ExecutionContext, которые обработчик читает и пишет, он объявляет
// в своей документации; ядро их не проверяет.
//
// Обработчик должен учитывать ctx.Done() для graceful shutdown.
type Handler interface {
	Execute(ctx context.Context, req *Request) (*domain.FlowMessage, error)
}

// HandlerFunc — адаптер функции к интерфейсу Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*domain.FlowMessage, error)

// Execute реализует Handler.
func (f HandlerFunc) Execute(ctx context.Context, req *Request) (*domain.FlowMessage, error) {
	return f(ctx, req)
}

// Registry — реестр обработчиков по ключу.
//
// Ключ — stype шага либо params.method (переопределение). Регистрация
// происходит при старте процесса; никакой строковой рефлексии во время
// выполнения нет. Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register регистрирует обработчик по ключу.
// Если ключ уже занят, обработчик перезаписывается.
func (r *Registry) Register(key string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
}

// Get возвращает обработчик по ключу.
// Возвращает ErrHandlerNotFound, если обработчик не зарегистрирован.
func (r *Registry) Get(key string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, key)
	}
	return h, nil
}

// Has проверяет, зарегистрирован ли обработчик.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[key]
	return ok
}

// Keys возвращает отсортированный список зарегистрированных ключей.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
