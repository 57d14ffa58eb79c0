package manifest

import (
	"fmt"
	"os"
	"sync"

	"github.com/shaiso/Flowline/internal/domain"
)

// Loader хранит активное поколение манифеста и атомарно подменяет его
// при reload.
//
// Новые инстансы всегда получают definition из текущего поколения;
// уже запущенные инстансы держат ссылку на definition того поколения,
// с которым стартовали, — переопределение "на лету" невозможно.
type Loader struct {
	mu         sync.RWMutex
	path       string
	manifest   *Manifest
	generation int
}

// NewLoader создаёт Loader для файла манифеста и выполняет первую загрузку.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	if _, err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewLoaderFromBytes создаёт Loader из готового содержимого манифеста.
// Используется в тестах и для встраивания.
func NewLoaderFromBytes(data []byte) (*Loader, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Loader{manifest: m, generation: 1}, nil
}

// Reload перечитывает манифест и атомарно подменяет активное поколение.
//
// При ошибке разбора или валидации активное поколение остаётся прежним.
// Возвращает номер нового поколения.
func (l *Loader) Reload() (int, error) {
	if l.path == "" {
		return 0, fmt.Errorf("loader has no manifest path")
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, fmt.Errorf("read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return 0, fmt.Errorf("parse manifest: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.manifest = m
	l.generation++
	return l.generation, nil
}

// SwapBytes подменяет активное поколение содержимым data.
// Используется в тестах вместо файловой системы.
func (l *Loader) SwapBytes(data []byte) (int, error) {
	m, err := Parse(data)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.manifest = m
	l.generation++
	return l.generation, nil
}

// Generation возвращает номер активного поколения.
func (l *Loader) Generation() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.generation
}

// Workflow возвращает definition по имени из активного поколения
// вместе с номером поколения.
func (l *Loader) Workflow(name string) (*domain.WorkflowDefinition, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.manifest.Workflow(name)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	return def, l.generation, nil
}

// Workflows возвращает все definitions активного поколения.
func (l *Loader) Workflows() []domain.WorkflowDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.WorkflowDefinition, len(l.manifest.Workflows))
	copy(out, l.manifest.Workflows)
	return out
}

// Names возвращает имена workflow активного поколения.
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.manifest.Names()
}
