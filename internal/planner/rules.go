// Package planner turns natural-language questions into query plans.
package planner

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/unifyiq/unifyiq/internal/insights"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// Planner maps a question to a canonical plan or an UnsupportedIntentError.
type Planner interface {
	Plan(ctx context.Context, question string) (plan.Plan, error)
}

// Planner names reported in response metadata and metrics.
const (
	NameRules = "rules"
	NameLLM   = "llm"
)

// listLimit caps the generic account listing.
const listLimit = 100

var (
	groupByRe    = regexp.MustCompile(`\bgroup(?:ed)?\s+by\s+(region|stage|industry)\b`)
	accountIDRe  = regexp.MustCompile(`\ba\d{3,}\b`)
	atLeastRe    = regexp.MustCompile(`(?:\bat\s+least|>=|\bno\s+fewer\s+than|\bminimum\s+of)\s*(\d+)`)
	moreThanRe   = regexp.MustCompile(`(?:\bmore\s+than|\bover|\bgreater\s+than|>)\s*(\d+)\b`)
	countRangeRe = regexp.MustCompile(`\b(\d+)\s*(?:to|-)\s*(\d+)\b`)
	prioCmpRe    = regexp.MustCompile(`\b(p[0-3])\s*(?:issues?)?\s*(>=|>)\s*(\d+)\b`)
	topNRe       = regexp.MustCompile(`\btop\s+(\d+)\b`)
	daysRe       = regexp.MustCompile(`\b(\d+)\s*days?\b`)
	closedRe     = regexp.MustCompile(`\b(closed|resolved)\b`)
	amountExpr   = `\$?(\d[\d,]*(?:\.\d+)?\s*[km]?)\b`
	arrRangeRe   = regexp.MustCompile(`\b(?:arr|revenue)\s*(?:between|from)?\s*` + amountExpr + `\s*(?:to|-|and)\s*` + amountExpr)
	arrCmpRe     = regexp.MustCompile(`\b(?:arr|revenue)\s*(>=|>|<=|<|=|over|above|under|below|at\s+least|at\s+most)\s*` + amountExpr)
	arrMentionRe = regexp.MustCompile(`\b(arr|revenue)\b`)
	stageRe      = regexp.MustCompile(`\bstage\s*(?:=|is)\s*([a-z][a-z _-]*)`)
	industryRe   = regexp.MustCompile(`\bindustry\s*(?:=|is)\s*([a-z][a-z _-]*)`)
	nameRe       = regexp.MustCompile(`\b(?:account\s+)?name\s*(?:contains|like|includes)\s*['"]?([a-z0-9 _-]+)['"]?`)
)

// phrase values stop at these words: "stage = trial with p1" keeps "trial".
var stopWords = map[string]struct{}{
	"and": {}, "with": {}, "in": {}, "for": {}, "by": {}, "sorted": {}, "order": {},
	"where": {}, "having": {}, "that": {}, "as": {}, "csv": {},
}

// RulePlanner is the deterministic planner. Rules are tried in a fixed order and the
// first match wins; anything unmatched is unsupported.
type RulePlanner struct {
	vocab  *Vocabulary
	logger *slog.Logger
}

// NewRulePlanner constructs a rule planner. A nil vocabulary uses the built-in table.
func NewRulePlanner(vocab *Vocabulary, logger *slog.Logger) *RulePlanner {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RulePlanner{vocab: vocab, logger: logger}
}

// Vocabulary exposes the phrase table the planner was built with.
func (r *RulePlanner) Vocabulary() *Vocabulary {
	return r.vocab
}

type rule struct {
	name  string
	build func(q *question) (plan.Plan, bool)
}

// Plan implements Planner.
func (r *RulePlanner) Plan(_ context.Context, text string) (plan.Plan, error) {
	q := r.parse(text)
	if q.low == "" {
		return plan.Plan{}, &utils.UnsupportedIntentError{Question: text, Reason: "empty question"}
	}
	if term := r.vocab.OutOfScopeTerm(q.low); term != "" {
		return plan.Plan{}, &utils.UnsupportedIntentError{Question: text, Reason: "out of scope: " + term}
	}

	// Renewal windows and issue counts outrank summary phrases: "how many accounts
	// renew next month" keeps its window and gains a trailing summary step.
	rules := []rule{
		{"group-by", r.groupBy},
		{"account-id", r.accountLookup},
		{"renewals", r.renewals},
		{"threshold", r.countThreshold},
		{"summary", r.summary},
		{"critical", r.criticalThreshold},
		{"top-revenue", r.topRevenue},
		{"list", r.list},
	}
	for _, rl := range rules {
		p, ok := rl.build(q)
		if !ok {
			continue
		}
		if matches(r.vocab.compiled.csv, q.low) {
			p.Format = models.FormatCSV
		}
		r.logger.Debug("rule matched", slog.String("rule", rl.name), slog.String("question", text))
		return plan.Canonical(p)
	}
	return plan.Plan{}, &utils.UnsupportedIntentError{Question: text, Reason: "no rule matched"}
}

// question is a lower-cased question plus a copy with amounts and windows blanked out,
// so "arr 100k to 300k" is not mistaken for an issue-count range.
type question struct {
	low      string
	counts   string
	priority models.Priority
}

func (r *RulePlanner) parse(text string) *question {
	low := strings.ToLower(strings.Join(strings.Fields(text), " "))
	counts := arrRangeRe.ReplaceAllString(low, " ")
	counts = arrCmpRe.ReplaceAllString(counts, " ")
	counts = daysRe.ReplaceAllString(counts, " ")
	counts = topNRe.ReplaceAllString(counts, " ")
	return &question{low: low, counts: counts, priority: r.vocab.Priority(low)}
}

func (r *RulePlanner) groupBy(q *question) (plan.Plan, bool) {
	m := groupByRe.FindStringSubmatch(q.low)
	if m == nil {
		return plan.Plan{}, false
	}
	params := map[string]any{"dimension": m[1]}
	filters := r.filters(q, false)
	switch q.priority {
	case models.PriorityP1:
		params["metric"] = insights.MetricOpenP1
	case models.PriorityP2, models.PriorityP3:
		params["metric"] = insights.MetricSum
		params["field"] = "open_" + strings.ToLower(string(q.priority))
	default:
		if arrMentionRe.MatchString(q.low) {
			params["metric"] = insights.MetricSum
			params["field"] = "arr"
		}
	}
	if q.priority != "" {
		filters = withPriority(filters, q.priority)
	}
	if len(filters) > 0 {
		params["filters"] = filters
	}
	return single(plan.KindGroup, plan.OpGroupBy, params), true
}

func (r *RulePlanner) accountLookup(q *question) (plan.Plan, bool) {
	found := accountIDRe.FindAllString(q.low, -1)
	if len(found) == 0 {
		return plan.Plan{}, false
	}
	ids := make([]any, 0, len(found))
	seen := map[string]struct{}{}
	for _, id := range found {
		id = strings.ToUpper(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	where := map[string]any{"field": insights.FieldAccountID, "op": "=", "value": ids[0]}
	if len(ids) > 1 {
		where = map[string]any{"field": insights.FieldAccountID, "op": "in", "value": ids}
	}
	return plan.Plan{Steps: []plan.Step{
		{Kind: plan.KindFetch, Op: plan.OpAccounts},
		{Kind: plan.KindFilter, Op: plan.OpWhere, Params: where},
		{Kind: plan.KindLimit, Op: plan.OpLimit, Params: map[string]any{"n": len(ids)}},
	}}, true
}

func (r *RulePlanner) summary(q *question) (plan.Plan, bool) {
	if !matches(r.vocab.compiled.summary, q.low) {
		return plan.Plan{}, false
	}
	return single(plan.KindAggregate, plan.OpSummary, filtersParam(r.filters(q, true))), true
}

func (r *RulePlanner) renewals(q *question) (plan.Plan, bool) {
	if !matches(r.vocab.compiled.renewals, q.low) {
		return plan.Plan{}, false
	}
	filters := r.filters(q, true)
	params := filtersParam(filters)
	window := r.vocab.Window(q.low)
	if m := daysRe.FindStringSubmatch(q.low); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			window = n
		}
	}
	if window != 0 {
		params["window_days"] = window
	}
	return r.finish(q, single(plan.KindFetch, plan.OpRenewalsWithin, params), filters), true
}

// countThreshold matches explicit issue counts: "at least 3 p1", "p2 > 4", "2 to 5".
func (r *RulePlanner) countThreshold(q *question) (plan.Plan, bool) {
	params := map[string]any{}
	priority := q.priority
	switch {
	case prioCmpRe.MatchString(q.counts):
		m := prioCmpRe.FindStringSubmatch(q.counts)
		priority = r.vocab.Priority(m[1])
		params["min_count"] = countBound(m[3], m[2] == ">")
	case atLeastRe.MatchString(q.counts):
		params["min_count"] = countBound(atLeastRe.FindStringSubmatch(q.counts)[1], false)
	case moreThanRe.MatchString(q.counts):
		params["min_count"] = countBound(moreThanRe.FindStringSubmatch(q.counts)[1], true)
	case countRangeRe.MatchString(q.counts):
		m := countRangeRe.FindStringSubmatch(q.counts)
		params["min_count"] = countBound(m[1], false)
		params["max_count"] = countBound(m[2], false)
	default:
		return plan.Plan{}, false
	}
	return r.threshold(q, params, priority), true
}

// criticalThreshold matches "critical accounts" with the default count.
func (r *RulePlanner) criticalThreshold(q *question) (plan.Plan, bool) {
	if !matches(r.vocab.compiled.critical, q.low) {
		return plan.Plan{}, false
	}
	return r.threshold(q, map[string]any{}, q.priority), true
}

func (r *RulePlanner) threshold(q *question, params map[string]any, priority models.Priority) plan.Plan {
	if priority == "" {
		priority = models.PriorityP1
	}
	params["priority"] = string(priority)
	if closedRe.MatchString(q.low) {
		params["status"] = string(models.StatusClosed)
	}
	filters := r.filters(q, false)
	if len(filters) > 0 {
		params["filters"] = filters
	}
	return r.finish(q, single(plan.KindFetch, plan.OpThresholdCritical, params), filters)
}

// finish appends the steps a fetch picks up from the rest of the question: a summary
// when one is asked for ("how many", "overview"), otherwise a "top N" limit.
func (r *RulePlanner) finish(q *question, p plan.Plan, filters map[string]any) plan.Plan {
	if matches(r.vocab.compiled.summary, q.low) {
		step := plan.Step{Kind: plan.KindAggregate, Op: plan.OpSummary}
		if len(filters) > 0 {
			step.Params = map[string]any{"filters": filters}
		}
		p.Steps = append(p.Steps, step)
		return p
	}
	if m := topNRe.FindStringSubmatch(q.low); m != nil {
		p.Steps = append(p.Steps, plan.Step{Kind: plan.KindLimit, Op: plan.OpLimit, Params: map[string]any{"n": countBound(m[1], false)}})
	}
	return p
}

func (r *RulePlanner) topRevenue(q *question) (plan.Plan, bool) {
	if !matches(r.vocab.compiled.topRevenue, q.low) {
		return plan.Plan{}, false
	}
	params := filtersParam(r.filters(q, true))
	if m := topNRe.FindStringSubmatch(q.low); m != nil {
		params["n"] = countBound(m[1], false)
	}
	return single(plan.KindFetch, plan.OpTopRevenue, params), true
}

func (r *RulePlanner) list(q *question) (plan.Plan, bool) {
	if !matches(r.vocab.compiled.list, q.low) {
		return plan.Plan{}, false
	}
	return plan.Plan{Steps: []plan.Step{
		{Kind: plan.KindFetch, Op: plan.OpAccounts, Params: filtersParam(r.filters(q, true))},
		{Kind: plan.KindSort, Op: plan.OpOrderBy, Params: map[string]any{"by": insights.FieldARR, "order": "desc"}},
		{Kind: plan.KindLimit, Op: plan.OpLimit, Params: map[string]any{"n": listLimit}},
	}}, true
}

// filters extracts the common filter set from the question. includePriority adds a
// presence predicate for a mentioned priority.
func (r *RulePlanner) filters(q *question, includePriority bool) map[string]any {
	f := map[string]any{}
	if region := r.vocab.Region(q.low); region != "" {
		f["region"] = region
	}
	if m := stageRe.FindStringSubmatch(q.low); m != nil {
		if v := cutPhrase(m[1]); v != "" {
			f["stage"] = v
		}
	}
	if m := industryRe.FindStringSubmatch(q.low); m != nil {
		if v := cutPhrase(m[1]); v != "" {
			f["industry"] = v
		}
	}
	if m := nameRe.FindStringSubmatch(q.low); m != nil {
		if v := cutPhrase(m[1]); v != "" {
			f["name_contains"] = v
		}
	}
	if m := arrRangeRe.FindStringSubmatch(q.low); m != nil {
		lo, okLo := parseAmount(m[1])
		hi, okHi := parseAmount(m[2])
		if okLo && okHi {
			f["arr_min"], f["arr_max"] = lo, hi
		}
	} else if m := arrCmpRe.FindStringSubmatch(q.low); m != nil {
		if amount, ok := parseAmount(m[2]); ok {
			switch strings.Join(strings.Fields(m[1]), " ") {
			case ">=", ">", "over", "above", "at least":
				f["arr_min"] = amount
			case "<=", "<", "under", "below", "at most":
				f["arr_max"] = amount
			default:
				f["arr_min"], f["arr_max"] = amount, amount
			}
		}
	}
	if matches(r.vocab.compiled.bugsOnly, q.low) {
		f["issue_types"] = []string{"bug"}
	}
	if includePriority && q.priority != "" {
		f = withPriority(f, q.priority)
	}
	return f
}

func withPriority(f map[string]any, p models.Priority) map[string]any {
	if f == nil {
		f = map[string]any{}
	}
	f["priority"] = map[string]any{"priority": string(p)}
	return f
}

func filtersParam(f map[string]any) map[string]any {
	params := map[string]any{}
	if len(f) > 0 {
		params["filters"] = f
	}
	return params
}

func single(kind plan.Kind, op string, params map[string]any) plan.Plan {
	if len(params) == 0 {
		params = nil
	}
	return plan.Plan{Steps: []plan.Step{{Kind: kind, Op: op, Params: params}}}
}

// countBound parses a count. Values that overflow are passed through as-is and
// rejected by plan validation.
func countBound(digits string, exclusive bool) any {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	if exclusive {
		n++
	}
	return n
}

func cutPhrase(s string) string {
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			break
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// parseAmount reads "250,000", "100k" or "1.2m".
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(strings.ToLower(s)), ",", "")
	s = strings.ReplaceAll(s, " ", "")
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * mult, true
}
