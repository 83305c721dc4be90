package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	"github.com/unifyiq/unifyiq/internal/export"
)

var (
	answerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// answerView is the terminal-facing subset of a response envelope.
type answerView struct {
	Answer   string
	Warnings []string
	Headers  []string
	Rows     [][]string
	CSV      string
	QueryID  string
	Planner  string
	Duration int64
}

// viewFromJSON reads an encoded envelope. Row fields keep their document order.
func viewFromJSON(data []byte) (answerView, error) {
	if !gjson.ValidBytes(data) {
		return answerView{}, fmt.Errorf("response is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	v := answerView{
		Answer:   doc.Get("answer").String(),
		QueryID:  doc.Get("meta.query_id").String(),
		Planner:  doc.Get("meta.planner").String(),
		Duration: doc.Get("meta.duration_ms").Int(),
	}
	for _, w := range doc.Get("warnings").Array() {
		v.Warnings = append(v.Warnings, w.String())
	}

	result := doc.Get("result")
	switch {
	case result.Type == gjson.String:
		v.CSV = result.String()
	case result.IsArray():
		index := make(map[string]int)
		var cells []map[string]string
		result.ForEach(func(_, row gjson.Result) bool {
			values := make(map[string]string)
			row.ForEach(func(key, val gjson.Result) bool {
				name := key.String()
				if _, ok := index[name]; !ok {
					index[name] = len(v.Headers)
					v.Headers = append(v.Headers, name)
				}
				values[name] = cellText(val)
				return true
			})
			cells = append(cells, values)
			return true
		})
		for _, values := range cells {
			row := make([]string, len(v.Headers))
			for i, h := range v.Headers {
				row[i] = values[h]
			}
			v.Rows = append(v.Rows, row)
		}
	}
	return v, nil
}

func cellText(val gjson.Result) string {
	switch val.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return val.String()
	case gjson.Number:
		return export.Cell(val.Float())
	}
	return val.Raw
}

// renderView prints the answer, the result table or CSV document, and a meta footer.
func renderView(w io.Writer, v answerView) error {
	var sb strings.Builder
	sb.WriteString(answerStyle.Render(v.Answer))
	sb.WriteString("\n")
	for _, warning := range v.Warnings {
		sb.WriteString(warningStyle.Render("! " + warning))
		sb.WriteString("\n")
	}

	switch {
	case v.CSV != "":
		sb.WriteString("\n")
		sb.WriteString(v.CSV)
	case len(v.Rows) > 0:
		sb.WriteString("\n")
		sb.WriteString(renderTable(v.Headers, v.Rows))
	}

	meta := fmt.Sprintf("query %s", v.QueryID)
	if v.Planner != "" {
		meta += " · planner " + v.Planner
	}
	meta += fmt.Sprintf(" · %dms", v.Duration)
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(meta))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}
	// Width includes the cell padding.
	for i := range widths {
		widths[i] += 2
	}

	sep := mutedStyle.Render("|")
	var sb strings.Builder
	for i, h := range headers {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n")

	total := len(headers) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString(sep)
			}
			sb.WriteString(cellStyle.Width(widths[i]).Render(cell))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// writeJSON pretty-prints an encoded envelope.
func writeJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
