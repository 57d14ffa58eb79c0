package steps

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

// WorkflowStarter — то, что умеет запускать workflow по имени.
// Реализуется движком; интерфейс разрывает циклическую зависимость
// steps → engine.
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, workflow string, payload any) (uuid.UUID, error)
}

// SubWorkflowHandler — встроенная задача start-sub-workflow.
//
// Params:
//
//	{"workflow": "имя запускаемого workflow"}
//
// Payload входного сообщения передаётся дочернему инстансу как
// начальный payload. Запуск подчиняется start_method дочернего
// workflow: отказ в допуске — ошибка шага (и, после retry, инстанса).
type SubWorkflowHandler struct {
	starter WorkflowStarter
}

// NewSubWorkflowHandler создаёт обработчик start-sub-workflow.
func NewSubWorkflowHandler(starter WorkflowStarter) *SubWorkflowHandler {
	return &SubWorkflowHandler{starter: starter}
}

// Execute запускает дочерний workflow.
func (h *SubWorkflowHandler) Execute(ctx context.Context, req *Request) (*domain.FlowMessage, error) {
	target, ok := req.Step.ParamString("workflow")
	if !ok || target == "" {
		return nil, fmt.Errorf("%w: start-sub-workflow requires params.workflow", ErrInvalidParams)
	}

	id, err := h.starter.StartWorkflow(ctx, target, req.Message.Payload)
	if err != nil {
		return nil, fmt.Errorf("start sub-workflow %s: %w", target, err)
	}

	out := domain.CompletedMessage(req.Message.Payload,
		fmt.Sprintf("started sub-workflow %s instance %s", target, id))
	out.Headers["sub_workflow"] = target
	out.Headers["sub_instance_id"] = id.String()
	return out, nil
}
