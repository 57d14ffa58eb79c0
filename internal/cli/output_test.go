package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferedOutput(jsonMode bool) (*Output, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &Output{jsonMode: jsonMode, w: buf, errW: &bytes.Buffer{}}, buf
}

func TestOutput_EntriesTable(t *testing.T) {
	out, buf := newBufferedOutput(false)

	out.Entries([]HistoryEntryResponse{
		{StepID: "build", State: "COMPLETED", ElapsedMs: 12, OutputText: "done"},
		{StepID: "send", State: "FAILED", Error: "smtp refused"},
	}, nil)

	got := buf.String()
	for _, want := range []string{"STEP", "STATE", "ELAPSED_MS", "build", "COMPLETED", "send", "smtp refused"} {
		if !strings.Contains(got, want) {
			t.Errorf("table must contain %q:\n%s", want, got)
		}
	}
}

func TestOutput_TableClipsLongCells(t *testing.T) {
	out, buf := newBufferedOutput(false)

	// output_text шага — свободный текст, в таблице он обрезается
	long := strings.Repeat("x", maxCellWidth*2)
	out.Entries([]HistoryEntryResponse{
		{StepID: "noisy", State: "COMPLETED", OutputText: long},
	}, nil)

	got := buf.String()
	if strings.Contains(got, long) {
		t.Error("long cell must be clipped")
	}
	if !strings.Contains(got, "...") {
		t.Errorf("clipped cell must end with ellipsis:\n%s", got)
	}
}

func TestOutput_JSONModeSkipsTable(t *testing.T) {
	out, buf := newBufferedOutput(true)

	inst := &InstanceResponse{ID: "id-1", Workflow: "report", State: "COMPLETED"}
	out.Instance(inst)

	// В JSON-режиме выводится полный объект, без обрезки и заголовков
	var decoded InstanceResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected JSON output: %v\n%s", err, buf.String())
	}
	if decoded.Workflow != "report" {
		t.Errorf("expected workflow report, got %q", decoded.Workflow)
	}
	if strings.Contains(buf.String(), "WORKFLOW") {
		t.Error("JSON mode must not print table headers")
	}
}
