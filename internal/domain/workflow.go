package domain

// Типы шагов, известные ядру.
//
// Ядро интерпретирует только trigger-типы и wait-for-event.
// Остальные типы — просто ключи реестра обработчиков: бизнес-логика
// шага живёт снаружи и регистрируется при старте процесса.
const (
	// StepTypeFunction — шаг с внешним обработчиком.
	// Обработчик выбирается по params.method, либо по самому stype.
	StepTypeFunction = "function-step"

	// StepTypeHTTPTrigger — точка входа, запускаемая HTTP-вызовом.
	StepTypeHTTPTrigger = "http-trigger"

	// StepTypeTimeTrigger — точка входа, запускаемая по расписанию.
	// Интервал задаётся в params.interval ("every 2 minutes", ...).
	StepTypeTimeTrigger = "time-trigger"

	// StepTypeWaitForEvent — пауза посреди графа: инстанс приостанавливается
	// до внешнего вызова resume.
	StepTypeWaitForEvent = "wait-for-event"

	// StepTypeSubWorkflow — встроенная задача: запуск другого workflow.
	StepTypeSubWorkflow = "start-sub-workflow"

	// StepTypeFileUploader — встроенная задача: выгрузка payload в файл.
	StepTypeFileUploader = "file-uploader"
)

// StartMethod — политика запуска инстансов workflow.
type StartMethod string

const (
	// StartPersistentBlocking — не более одного RUNNING инстанса;
	// конкурирующий запуск ждёт завершения предыдущего до max_wait.
	// Политика по умолчанию.
	StartPersistentBlocking StartMethod = "persistent_blocking"

	// StartPersistentNonBlocking — не более одного RUNNING инстанса;
	// конкурирующий запуск немедленно отклоняется с ошибкой.
	StartPersistentNonBlocking StartMethod = "persistent_non_blocking"

	// StartEphemeral — неограниченное количество параллельных инстансов,
	// каждый со своим ExecutionContext; live-статистика недоступна.
	StartEphemeral StartMethod = "ephemeral_instance"
)

// IsValid возвращает true для известных политик запуска.
// Пустое значение не считается политикой: см. EffectiveStartMethod.
func (m StartMethod) IsValid() bool {
	switch m {
	case StartPersistentBlocking, StartPersistentNonBlocking, StartEphemeral:
		return true
	default:
		return false
	}
}

// Step — один шаг workflow.
type Step struct {
	// ID — уникальный идентификатор шага в рамках definition.
	ID string `json:"id"`

	// Label — человекочитаемое имя шага.
	Label string `json:"label,omitempty"`

	// Type — тип шага (stype): function-step, http-trigger, time-trigger,
	// wait-for-event, start-sub-workflow, file-uploader, ...
	Type string `json:"stype"`

	// Enabled — флаг активности. Отключённые шаги пропускаются
	// (в историю пишется SKIPPED), их transition_to выполняются.
	Enabled bool `json:"enabled"`

	// Trigger — помечает точку входа. Шаги с trigger=true не могут
	// иметь предшественников; шаги без trigger обязаны их иметь.
	Trigger bool `json:"trigger,omitempty"`

	// MaxRetries — количество повторных попыток при ошибке обработчика.
	// Общее число вызовов обработчика = MaxRetries + 1.
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryDelayMs — фиксированная задержка между попытками (мс).
	RetryDelayMs int `json:"retry_delay_ms,omitempty"`

	// Params — свободная конфигурация шага. Ядро не интерпретирует
	// содержимое, кроме params.method (переопределение обработчика)
	// и params.interval (для time-trigger).
	Params map[string]any `json:"params,omitempty"`

	// TransitionTo — упорядоченный список ID следующих шагов.
	// Пустой список означает терминальный шаг.
	TransitionTo []string `json:"transition_to,omitempty"`
}

// HandlerKey возвращает ключ обработчика для шага:
// params.method, если задан, иначе stype.
func (s *Step) HandlerKey() string {
	if s.Params != nil {
		if method, ok := s.Params["method"].(string); ok && method != "" {
			return method
		}
	}
	return s.Type
}

// ParamString возвращает строковый параметр шага.
func (s *Step) ParamString(name string) (string, bool) {
	if s.Params == nil {
		return "", false
	}
	v, ok := s.Params[name].(string)
	return v, ok
}

// IsTrigger возвращает true для точек входа.
func (s *Step) IsTrigger() bool {
	return s.Trigger
}

// ConfigEntry — именованное значение конфигурации workflow.
//
// Ядро хранит эти значения как непрозрачные строки; их интерпретируют
// обработчики шагов.
type ConfigEntry struct {
	Group    string   `json:"group"`
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
	Type     string   `json:"type,omitempty"`
}

// WorkflowDefinition — статическое декларативное описание workflow.
//
// Definition загружается из манифеста один раз при старте процесса
// (или при явном reload) и неизменяем на всё время жизни запущенных
// на нём инстансов: reload создаёт новое поколение, уже работающие
// инстансы продолжают со своим.
type WorkflowDefinition struct {
	// Name — уникальное имя workflow.
	Name string `json:"name"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// StartMethod — политика запуска (default: persistent_blocking).
	StartMethod StartMethod `json:"start_method,omitempty"`

	// MaxWaitMs — максимальное время ожидания в очереди запуска
	// для persistent_blocking (мс). 0 — не ждать вовсе.
	MaxWaitMs int `json:"max_wait_ms,omitempty"`

	// Configs — значения конфигурации с объявленными умолчаниями.
	Configs []ConfigEntry `json:"configs,omitempty"`

	// Steps — упорядоченный набор шагов.
	Steps []Step `json:"steps"`
}

// EffectiveStartMethod возвращает политику запуска с учётом умолчания.
func (d *WorkflowDefinition) EffectiveStartMethod() StartMethod {
	switch d.StartMethod {
	case StartPersistentNonBlocking, StartEphemeral, StartPersistentBlocking:
		return d.StartMethod
	default:
		return StartPersistentBlocking
	}
}

// Step возвращает шаг по ID.
func (d *WorkflowDefinition) Step(id string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// TriggerSteps возвращает включённые точки входа в порядке объявления.
func (d *WorkflowDefinition) TriggerSteps() []*Step {
	var triggers []*Step
	for i := range d.Steps {
		if d.Steps[i].Trigger && d.Steps[i].Enabled {
			triggers = append(triggers, &d.Steps[i])
		}
	}
	return triggers
}

// ConfigValue возвращает значение конфигурации по группе и имени.
func (d *WorkflowDefinition) ConfigValue(group, name string) (string, bool) {
	for i := range d.Configs {
		if d.Configs[i].Group == group && d.Configs[i].Name == name {
			return d.Configs[i].Value, true
		}
	}
	return "", false
}
