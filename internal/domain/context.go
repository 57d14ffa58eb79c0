package domain

import "sync"

// ContextKey — типизированный ключ ExecutionContext.
//
// По соглашению обработчики используют ключи вида "owner.name"
// и документируют их в описании обработчика; ядро их не проверяет.
type ContextKey string

// ExecutionContext — key/value-хранилище в рамках одного инстанса.
//
// Используется для передачи объектов между шагами: один шаг кладёт
// объект, последующие читают. Контекст никогда не разделяется между
// инстансами, поэтому блокировка нужна только из-за конкурентных
// внешних наблюдателей, не из-за самих шагов (шаги одного инстанса
// выполняются строго последовательно).
type ExecutionContext struct {
	mu      sync.RWMutex
	values  map[ContextKey]any
	configs map[string]string
}

// NewExecutionContext создаёт контекст, засеянный значениями
// конфигурации definition (ключ "group.name" → value).
func NewExecutionContext(def *WorkflowDefinition) *ExecutionContext {
	configs := make(map[string]string)
	if def != nil {
		for _, c := range def.Configs {
			configs[c.Group+"."+c.Name] = c.Value
		}
	}

	return &ExecutionContext{
		values:  make(map[ContextKey]any),
		configs: configs,
	}
}

// Set сохраняет значение по ключу.
func (c *ExecutionContext) Set(key ContextKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get возвращает значение по ключу (nil, если не найдено).
func (c *ExecutionContext) Get(key ContextKey) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Lookup возвращает значение и флаг наличия.
func (c *ExecutionContext) Lookup(key ContextKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Delete удаляет значение по ключу.
func (c *ExecutionContext) Delete(key ContextKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Clear очищает контекст. Вызывается движком при завершении
// ephemeral-инстансов; для persistent-режимов контекст сохраняется.
func (c *ExecutionContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[ContextKey]any)
}

// Len возвращает количество значений (без учёта конфигурации).
func (c *ExecutionContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Config возвращает значение конфигурации workflow ("group.name").
func (c *ExecutionContext) Config(group, name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.configs[group+"."+name]
	return v, ok
}
