package steps

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	r.Register("noop", HandlerFunc(func(ctx context.Context, req *Request) (*domain.FlowMessage, error) {
		return domain.CompletedMessage(nil, "noop"), nil
	}))

	h, err := r.Get("noop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := h.Execute(context.Background(), &Request{Message: domain.NewMessage(nil)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutputText != "noop" {
		t.Errorf("expected noop output, got %q", out.OutputText)
	}

	if !r.Has("noop") {
		t.Error("Has must report registered handler")
	}
	if r.Has("ghost") {
		t.Error("Has must not report unregistered handler")
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("ghost")
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestRegistry_KeysSorted(t *testing.T) {
	r := NewRegistry()
	noop := HandlerFunc(func(ctx context.Context, req *Request) (*domain.FlowMessage, error) {
		return nil, nil
	})
	r.Register("zeta", noop)
	r.Register("alpha", noop)
	r.Register("mid", noop)

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFileUploader_WritesPayload(t *testing.T) {
	dir := t.TempDir()
	h := NewFileUploaderHandler()

	req := &Request{
		Step: &domain.Step{
			ID:     "upload",
			Type:   "file-uploader",
			Params: map[string]any{"directory": dir},
		},
		Message: domain.NewMessage(map[string]any{"report": "daily"}),
		Context: domain.NewExecutionContext(nil),
	}

	out, err := h.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path, ok := out.Headers["upload_path"]
	if !ok {
		t.Fatal("expected upload_path header")
	}
	if filepath.Dir(path) != dir {
		t.Errorf("file must land in %s, got %s", dir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("file must contain valid JSON: %v", err)
	}
	if decoded["report"] != "daily" {
		t.Errorf("expected payload in file, got %v", decoded)
	}

	// Payload проходит дальше без изменений
	if out.Status != domain.StepStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", out.Status)
	}
}

func TestFileUploader_DirectoryFromConfig(t *testing.T) {
	dir := t.TempDir()
	h := NewFileUploaderHandler()

	def := &domain.WorkflowDefinition{
		Name: "wf",
		Configs: []domain.ConfigEntry{
			{Group: "uploader", Name: "directory", Value: dir},
		},
	}

	req := &Request{
		Step:    &domain.Step{ID: "upload", Type: "file-uploader"},
		Message: domain.NewMessage("payload"),
		Context: domain.NewExecutionContext(def),
	}

	out, err := h.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(out.Headers["upload_path"]) != dir {
		t.Errorf("directory must come from workflow config, got %s", out.Headers["upload_path"])
	}
}

func TestFileUploader_MissingDirectory(t *testing.T) {
	h := NewFileUploaderHandler()
	req := &Request{
		Step:    &domain.Step{ID: "upload", Type: "file-uploader"},
		Message: domain.NewMessage(nil),
		Context: domain.NewExecutionContext(nil),
	}

	_, err := h.Execute(context.Background(), req)
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

// fakeStarter записывает аргументы запуска.
type fakeStarter struct {
	workflow string
	payload  any
	id       uuid.UUID
	err      error
}

func (f *fakeStarter) StartWorkflow(ctx context.Context, workflow string, payload any) (uuid.UUID, error) {
	f.workflow = workflow
	f.payload = payload
	return f.id, f.err
}

func TestSubWorkflow_Starts(t *testing.T) {
	starter := &fakeStarter{id: uuid.New()}
	h := NewSubWorkflowHandler(starter)

	req := &Request{
		Step: &domain.Step{
			ID:     "sub",
			Type:   "start-sub-workflow",
			Params: map[string]any{"workflow": "child"},
		},
		Message: domain.NewMessage("input"),
		Context: domain.NewExecutionContext(nil),
	}

	out, err := h.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starter.workflow != "child" {
		t.Errorf("expected workflow child, got %q", starter.workflow)
	}
	if starter.payload != "input" {
		t.Errorf("payload must be forwarded, got %v", starter.payload)
	}
	if out.Headers["sub_instance_id"] != starter.id.String() {
		t.Errorf("expected child instance ID in headers, got %q", out.Headers["sub_instance_id"])
	}
}

func TestSubWorkflow_MissingWorkflowParam(t *testing.T) {
	h := NewSubWorkflowHandler(&fakeStarter{})
	req := &Request{
		Step:    &domain.Step{ID: "sub", Type: "start-sub-workflow"},
		Message: domain.NewMessage(nil),
		Context: domain.NewExecutionContext(nil),
	}

	_, err := h.Execute(context.Background(), req)
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestSubWorkflow_StarterError(t *testing.T) {
	starter := &fakeStarter{err: errors.New("workflow busy")}
	h := NewSubWorkflowHandler(starter)

	req := &Request{
		Step: &domain.Step{
			ID:     "sub",
			Type:   "start-sub-workflow",
			Params: map[string]any{"workflow": "child"},
		},
		Message: domain.NewMessage(nil),
		Context: domain.NewExecutionContext(nil),
	}

	if _, err := h.Execute(context.Background(), req); err == nil {
		t.Fatal("expected error when the starter rejects")
	}
}
