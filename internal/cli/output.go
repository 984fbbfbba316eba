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

// Output печатает ответы API: таблицей для человека или JSON для скриптов.
// Данные идут в stdout, статусные сообщения в stderr.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output поверх stdout/stderr.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// table: строки для tabwriter, первая строка заголовок.
type table struct {
	headers []string
	rows    [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Run печатает run: сводку в stderr и шаги таблицей.
func (o *Output) Run(run *RunResponse) {
	summary := fmt.Sprintf("Run %s: %s", run.ID, run.Status)
	if run.TemplateID != "" {
		summary += fmt.Sprintf(" (template %s)", run.TemplateID)
	}
	if run.Error != "" {
		summary += ": " + run.Error
	}
	o.Notice(summary)

	t := table{headers: []string{"POS", "STEP_ID", "ACTION", "REF", "STATUS", "ERROR"}}
	for _, s := range run.Steps {
		t.add(strconv.Itoa(s.Position), s.StepID, s.Action, dash(s.Ref), s.Status, dash(s.Error))
	}
	o.render(t, run)
}

// Schedule печатает schedule одной строкой.
func (o *Output) Schedule(s *ScheduleResponse) {
	state := "enabled"
	if !s.Enabled {
		state = "disabled"
	}
	t := table{headers: []string{"ID", "TEMPLATE", "RULE", "STATE", "NEXT_RUN"}}
	t.add(s.ID, s.TemplateID, s.Rule, state, dash(s.NextRunAt))
	o.render(t, s)
}

// Template печатает шаблон со списком действий шагов.
func (o *Output) Template(tmpl *TemplateResponse) {
	actions := make([]string, 0, len(tmpl.Steps))
	for _, s := range tmpl.Steps {
		if a, ok := s["action"].(string); ok {
			actions = append(actions, a)
		}
	}
	t := table{headers: []string{"ID", "NAME", "VERSION", "STEPS", "UPDATED"}}
	t.add(tmpl.ID, dash(tmpl.Name), strconv.Itoa(tmpl.Version), dash(strings.Join(actions, ",")), tmpl.UpdatedAt)
	o.render(t, tmpl)
}

// Accepted печатает ID принятого run.
func (o *Output) Accepted(resp *InvokeResponse) {
	o.Notice(fmt.Sprintf("Run accepted: %s", resp.RunID))
	o.render(table{headers: []string{"RUN_ID"}, rows: [][]string{{resp.RunID}}}, resp)
}

// Notice пишет статусное сообщение в stderr.
func (o *Output) Notice(msg string) {
	fmt.Fprintln(o.errW, msg)
}

func (o *Output) render(t table, v any) {
	if o.jsonMode {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
