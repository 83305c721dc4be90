// Package responder packages executor output into the response envelope.
package responder

import (
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/unifyiq/unifyiq/internal/export"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
)

const (
	// RefusalAnswer is returned for questions no planner could map to a plan.
	RefusalAnswer = "Sorry, I don't know how to answer that yet."
	// RefusalWarning accompanies RefusalAnswer.
	RefusalWarning = "No valid plan could be generated."
	// EmptyAnswer is returned when a plan matched nothing.
	EmptyAnswer = "No matching accounts found."
	// IntentUnsupported is the intent reported on refusals.
	IntentUnsupported = "unsupported"
)

// Meta carries diagnostics about one query.
type Meta struct {
	QueryID        string `json:"query_id"`
	Planner        string `json:"planner,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
	RowCount       int    `json:"row_count"`
	Orphans        int    `json:"orphans"`
	DatasetBuiltAt string `json:"dataset_built_at,omitempty"`
	Format         string `json:"format"`
}

// Envelope is the response to one question. Result holds the rows, or the CSV
// document when Format is csv.
type Envelope struct {
	Query       string     `json:"query"`
	Intent      string     `json:"intent"`
	Warnings    []string   `json:"warnings"`
	Plan        *plan.Plan `json:"plan,omitempty"`
	Answer      string     `json:"answer"`
	ContentType string     `json:"content_type,omitempty"`
	Result      any        `json:"result"`
	Meta        Meta       `json:"meta"`
}

// Respond builds the envelope for an executed plan.
func Respond(question string, p plan.Plan, table models.Table, warnings []string, meta Meta) (Envelope, error) {
	if table == nil {
		table = models.Table{}
	}
	format := p.Format
	if format == "" {
		format = models.FormatJSON
	}
	meta.RowCount = len(table)
	meta.Format = format

	env := Envelope{
		Query:    question,
		Intent:   p.Intent(),
		Warnings: nonNil(warnings),
		Plan:     &p,
		Answer:   Answer(p, table),
		Result:   table,
		Meta:     meta,
	}
	if format == models.FormatCSV {
		doc, err := export.CSV(table)
		if err != nil {
			return Envelope{}, err
		}
		env.ContentType = export.ContentTypeCSV
		env.Result = doc
	}
	return env, nil
}

// Refuse builds the fixed refusal envelope.
func Refuse(question string, warnings []string, meta Meta) Envelope {
	if meta.Format == "" {
		meta.Format = models.FormatJSON
	}
	meta.RowCount = 0
	return Envelope{
		Query:    question,
		Intent:   IntentUnsupported,
		Warnings: append(nonNil(warnings), RefusalWarning),
		Answer:   RefusalAnswer,
		Result:   models.Table{},
		Meta:     meta,
	}
}

// Answer renders the one-sentence summary for a result table.
func Answer(p plan.Plan, table models.Table) string {
	if len(table) == 0 {
		return EmptyAnswer
	}
	intent := p.Intent()
	tmpl, ok := answers[intent]
	if !ok {
		return fmt.Sprintf("Found %d %s.", len(table), plural(len(table), "result", "results"))
	}
	data := answerData{
		Count:  len(table),
		First:  table[0].Map(),
		Params: intentParams(p, intent),
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return fmt.Sprintf("Found %d %s.", len(table), plural(len(table), "result", "results"))
	}
	return b.String()
}

type answerData struct {
	Count  int
	First  map[string]any
	Params map[string]any
}

var printer = message.NewPrinter(language.English)

var funcs = template.FuncMap{
	"num":    export.Cell,
	"plural": plural,
	"money": func(v any) string {
		f, _ := v.(float64)
		return printer.Sprintf("$%.0f", f)
	},
}

var answers = map[string]*template.Template{
	plan.OpTopRevenue: mustTemplate(`Top {{.Count}} {{plural .Count "account" "accounts"}} by ARR` +
		`{{with .First}}; highest is {{.AccountName}} at {{money .ARR}}{{end}}.`),
	plan.OpRenewalsWithin: mustTemplate(`{{.Count}} {{plural .Count "account renews" "accounts renew"}} within {{num .Params.window_days}} days` +
		`{{with .First}}; next is {{.AccountName}} on {{.RenewalDate}}{{end}}.`),
	plan.OpThresholdCritical: mustTemplate(`{{.Count}} {{plural .Count "account has" "accounts have"}} at least {{num .Params.min_count}}` +
		`{{with .Params.max_count}} and at most {{num .}}{{end}} {{.Params.status}} {{.Params.priority}} issues.`),
	plan.OpAccounts: mustTemplate(`Found {{.Count}} {{plural .Count "account" "accounts"}}` +
		`{{if eq .Count 1}}{{with .First}}: {{.AccountName}} ({{.AccountID}}){{end}}{{end}}.`),
	plan.OpGroupBy: mustTemplate(`{{.Count}} {{.Params.dimension}} {{plural .Count "group" "groups"}}` +
		`{{with .First}} by {{.metric}}; largest is {{.group}} with {{num .value}}{{end}}.`),
	plan.OpSummary: mustTemplate(`{{with .First}}{{num .total_accounts}} accounts with {{num .total_issues}} linked issues, ` +
		`{{num .total_open_p1}} open P1 and average ARR {{money .average_revenue}}.{{end}}`),
}

func mustTemplate(text string) *template.Template {
	return template.Must(template.New("answer").Funcs(funcs).Parse(text))
}

// intentParams returns the parameters of the step that names the intent.
func intentParams(p plan.Plan, intent string) map[string]any {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if p.Steps[i].Op == intent {
			if p.Steps[i].Params == nil {
				return map[string]any{}
			}
			return p.Steps[i].Params
		}
	}
	return map[string]any{}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func nonNil(warnings []string) []string {
	if warnings == nil {
		return []string{}
	}
	return append([]string(nil), warnings...)
}
