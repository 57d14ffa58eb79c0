package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// maxCellWidth — предел ширины ячейки таблицы: output_text и error
// шагов — свободный текст произвольной длины.
const maxCellWidth = 64

// Output управляет форматированием вывода CLI: таблицы для терминала,
// JSON для скриптов (--json). Сообщения о ходе выполнения идут в stderr,
// чтобы не ломать конвейеры.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
// Длинные ячейки обрезаются до maxCellWidth.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = clip(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	tw.Flush()
}

// Instance печатает одну строку с состоянием инстанса.
func (o *Output) Instance(inst *InstanceResponse) {
	o.Print(
		[]string{"ID", "WORKFLOW", "GEN", "STATE", "STEP", "ERROR"},
		[][]string{{inst.ID, inst.Workflow, strconv.Itoa(inst.Generation), inst.State, inst.CurrentStepID, inst.LastError}},
		inst,
	)
}

// Entries печатает журнал выполнения. jsonData — полный объект
// для режима --json (журнал вместе с инстансом).
func (o *Output) Entries(entries []HistoryEntryResponse, jsonData any) {
	headers := []string{"STEP", "STATE", "ELAPSED_MS", "OUTPUT", "ERROR"}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.StepID, e.State, strconv.FormatInt(e.ElapsedMs, 10), e.OutputText, e.Error}
	}
	o.Print(headers, rows, jsonData)
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// clip обрезает ячейку до maxCellWidth рун.
func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= maxCellWidth {
		return s
	}
	return string(runes[:maxCellWidth-3]) + "..."
}
