package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shaiso/Flowline/internal/domain"
)

// FileUploaderHandler — встроенная задача file-uploader.
//
// Сериализует payload входного сообщения в JSON и записывает в файл.
//
// Params:
//
//	{"directory": "каталог для выгрузки"}
//
// Если params.directory не задан, используется значение конфигурации
// workflow uploader.directory.
type FileUploaderHandler struct{}

// NewFileUploaderHandler создаёт обработчик file-uploader.
func NewFileUploaderHandler() *FileUploaderHandler {
	return &FileUploaderHandler{}
}

// Execute записывает payload в файл <directory>/<uuid>.json.
func (h *FileUploaderHandler) Execute(ctx context.Context, req *Request) (*domain.FlowMessage, error) {
	dir, ok := req.Step.ParamString("directory")
	if !ok || dir == "" {
		dir, ok = req.Context.Config("uploader", "directory")
		if !ok || dir == "" {
			return nil, fmt.Errorf("%w: file-uploader requires params.directory or config uploader.directory", ErrInvalidParams)
		}
	}

	data, err := json.Marshal(req.Message.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	out := domain.CompletedMessage(req.Message.Payload, fmt.Sprintf("uploaded payload to %s", path))
	out.Headers["upload_path"] = path
	return out, nil
}
