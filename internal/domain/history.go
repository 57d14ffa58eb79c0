package domain

import (
	"sync"
	"time"
)

// HistoryEntry — одна запись в журнале выполнения инстанса.
//
// Записи никогда не мутируются после добавления.
type HistoryEntry struct {
	// StepID — шаг, к которому относится запись.
	StepID string `json:"step_id"`

	// State — статус шага в момент записи (STARTED/COMPLETED/FAILED/SKIPPED).
	State StepStatus `json:"state"`

	// Timestamp — момент добавления записи.
	Timestamp time.Time `json:"timestamp"`

	// Elapsed — время выполнения шага (для терминальных записей).
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// Error — текст ошибки (для FAILED).
	Error string `json:"error,omitempty"`

	// OutputText — свободный текст результата шага.
	OutputText string `json:"output_text,omitempty"`

	// Payload — снимок payload сообщения на момент записи.
	Payload any `json:"payload,omitempty"`
}

// History — append-only журнал выполнения одного инстанса.
//
// Записи строго упорядочены по порядку добавления; журнал —
// единственный источник правды о том, "что произошло".
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

// NewHistory создаёт пустой журнал.
func NewHistory() *History {
	return &History{}
}

// Append добавляет запись в конец журнала.
func (h *History) Append(e HistoryEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

// Entries возвращает копию всех записей в порядке добавления.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len возвращает количество записей.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// EntriesFor возвращает записи для конкретного шага.
func (h *History) EntriesFor(stepID string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []HistoryEntry
	for _, e := range h.entries {
		if e.StepID == stepID {
			out = append(out, e)
		}
	}
	return out
}

// Filtered возвращает представление журнала, в котором запись STARTED,
// за которой сразу следует COMPLETED того же шага, схлопывается в одну
// COMPLETED-запись. Это только вид для отображения — сам журнал
// не изменяется.
func (h *History) Filtered() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return FilterEntries(h.entries)
}

// FilterEntries схлопывает пары STARTED+COMPLETED одного шага
// в одну COMPLETED-запись. Используется и для журналов, прочитанных
// из хранилища.
func FilterEntries(entries []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if e.State == StepStatusStarted && i+1 < len(entries) {
			next := entries[i+1]
			if next.State == StepStatusCompleted && next.StepID == e.StepID {
				out = append(out, next)
				i++
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// LastError возвращает текст последней FAILED-записи.
func (h *History) LastError() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].State == StepStatusFailed {
			return h.entries[i].Error
		}
	}
	return ""
}
