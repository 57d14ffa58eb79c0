package domain

// StepStatus — статус выполнения одного шага.
//
// Жизненный цикл:
//
//	UNKNOWN → STARTED → COMPLETED
//	                  ↘ FAILED
//	          (или) → SKIPPED (шаг отключён или условие не выполнено)
type StepStatus string

const (
	// StepStatusUnknown — статус не определён (сообщение ещё не обработано).
	StepStatusUnknown StepStatus = "UNKNOWN"

	// StepStatusStarted — шаг начал выполнение (одна запись на каждую попытку).
	StepStatusStarted StepStatus = "STARTED"

	// StepStatusCompleted — шаг успешно завершён.
	StepStatusCompleted StepStatus = "COMPLETED"

	// StepStatusFailed — шаг завершился с ошибкой (после всех retry).
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг пропущен (enabled=false).
	StepStatusSkipped StepStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный для шага.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// FlowMessage — значение, передаваемое между шагами workflow.
//
// FlowMessage создаётся заново на каждый вызов шага и потребляется
// следующим шагом. После того как шаг вернул сообщение, оно считается
// неизменяемым — движок его не модифицирует, а создаёт новое.
type FlowMessage struct {
	// Payload — полезная нагрузка. Движок трактует её как непрозрачное
	// значение и никогда не ветвится по её содержимому.
	Payload any `json:"payload,omitempty"`

	// Headers — строковые заголовки сообщения.
	Headers map[string]string `json:"headers,omitempty"`

	// OutputText — свободный текст результата шага (для истории и UI).
	OutputText string `json:"output_text,omitempty"`

	// ErrorText — текст ошибки, если шаг завершился с FAILED.
	ErrorText string `json:"error_text,omitempty"`

	// NextStepIDs — динамическое переопределение следующих шагов.
	// Если список не пуст, движок использует его вместо transition_to.
	NextStepIDs []string `json:"next_step_ids,omitempty"`

	// Status — статус выполнения шага, создавшего сообщение.
	Status StepStatus `json:"status"`
}

// NewMessage создаёт новое сообщение с payload и пустыми заголовками.
func NewMessage(payload any) *FlowMessage {
	return &FlowMessage{
		Payload: payload,
		Headers: make(map[string]string),
		Status:  StepStatusUnknown,
	}
}

// CompletedMessage создаёт сообщение об успешном завершении шага.
func CompletedMessage(payload any, outputText string) *FlowMessage {
	return &FlowMessage{
		Payload:    payload,
		Headers:    make(map[string]string),
		OutputText: outputText,
		Status:     StepStatusCompleted,
	}
}

// FailedMessage создаёт сообщение об ошибке шага.
func FailedMessage(payload any, errText string) *FlowMessage {
	return &FlowMessage{
		Payload:   payload,
		Headers:   make(map[string]string),
		ErrorText: errText,
		Status:    StepStatusFailed,
	}
}

// Header возвращает значение заголовка.
func (m *FlowMessage) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Clone возвращает поверхностную копию сообщения с независимой
// картой заголовков. Payload не копируется (непрозрачное значение).
func (m *FlowMessage) Clone() *FlowMessage {
	headers := make(map[string]string, len(m.Headers))
	for k, v := range m.Headers {
		headers[k] = v
	}

	next := make([]string, len(m.NextStepIDs))
	copy(next, m.NextStepIDs)

	return &FlowMessage{
		Payload:     m.Payload,
		Headers:     headers,
		OutputText:  m.OutputText,
		ErrorText:   m.ErrorText,
		NextStepIDs: next,
		Status:      m.Status,
	}
}

// IsFailed возвращает true, если сообщение сигнализирует об ошибке.
func (m *FlowMessage) IsFailed() bool {
	return m.Status == StepStatusFailed
}
