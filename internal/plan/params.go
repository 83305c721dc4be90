package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unifyiq/unifyiq/internal/insights"
	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// MaxLimit bounds the limit step.
const MaxLimit = 10000

type priorityParams struct {
	Priority string `json:"priority"`
	MinCount *int   `json:"min_count,omitempty"`
	Status   string `json:"status,omitempty"`
}

type filterParams struct {
	ARRMin       *float64        `json:"arr_min,omitempty"`
	ARRMax       *float64        `json:"arr_max,omitempty"`
	Region       string          `json:"region,omitempty"`
	Stage        string          `json:"stage,omitempty"`
	Industry     string          `json:"industry,omitempty"`
	NameContains string          `json:"name_contains,omitempty"`
	AccountIDs   []string        `json:"account_ids,omitempty"`
	IssueTypes   []string        `json:"issue_types,omitempty"`
	Statuses     []string        `json:"statuses,omitempty"`
	Priority     *priorityParams `json:"priority,omitempty"`
}

type topRevenueParams struct {
	N       *int          `json:"n,omitempty"`
	Filters *filterParams `json:"filters,omitempty"`
}

type renewalsParams struct {
	WindowDays *int          `json:"window_days,omitempty"`
	AsOf       string        `json:"as_of,omitempty"`
	Filters    *filterParams `json:"filters,omitempty"`
}

type thresholdParams struct {
	MinCount *int          `json:"min_count,omitempty"`
	MaxCount *int          `json:"max_count,omitempty"`
	Priority string        `json:"priority,omitempty"`
	Status   string        `json:"status,omitempty"`
	Filters  *filterParams `json:"filters,omitempty"`
}

type groupParams struct {
	Dimension string        `json:"dimension"`
	Metric    string        `json:"metric,omitempty"`
	Field     string        `json:"field,omitempty"`
	Filters   *filterParams `json:"filters,omitempty"`
}

type filtersOnlyParams struct {
	Filters *filterParams `json:"filters,omitempty"`
}

type whereParams struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type rangeParams struct {
	Field string   `json:"field"`
	Low   *float64 `json:"low,omitempty"`
	High  *float64 `json:"high,omitempty"`
}

type orderParams struct {
	By    string `json:"by"`
	Order string `json:"order,omitempty"`
}

type limitParams struct {
	N *int `json:"n"`
}

// WhereArgs compare one row field against a value.
type WhereArgs struct {
	Field string
	Op    string
	Value any
}

// RangeArgs keep rows whose numeric field lies in [Low, High]. Nil bounds are open.
type RangeArgs struct {
	Field string
	Low   *float64
	High  *float64
}

// OrderArgs sort rows by one field.
type OrderArgs struct {
	By         string
	Descending bool
}

// LimitArgs truncate the table.
type LimitArgs struct {
	N int
}

// WhereOps lists the comparison operators accepted by where.
var WhereOps = []string{"=", "!=", ">", ">=", "<", "<=", "contains", "in"}

// decodeParams maps raw params onto a typed struct, refusing unknown keys.
func decodeParams(raw map[string]any, out any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return utils.NewValidationError("params", "%v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return utils.NewValidationError(paramField(err), "%v", err)
	}
	return nil
}

// paramField pulls the offending key out of an encoding/json error where possible.
func paramField(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field
	}
	msg := err.Error()
	if i := strings.Index(msg, "unknown field "); i >= 0 {
		return strings.Trim(msg[i+len("unknown field "):], `"`)
	}
	return "params"
}

func intIn(field string, v *int, def, lo, hi int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < lo || *v > hi {
		return 0, utils.NewValidationError(field, "must be between %d and %d", lo, hi)
	}
	return *v, nil
}

func parsePriority(field, v string, def models.Priority) (models.Priority, error) {
	if v == "" {
		return def, nil
	}
	p, ok := models.ParsePriority(v)
	if !ok {
		return "", utils.NewValidationError(field, "unknown priority %q", v)
	}
	return p, nil
}

func parseStatus(field, v string, def models.Status) (models.Status, error) {
	if v == "" {
		return def, nil
	}
	s, ok := models.ParseStatus(v)
	if !ok {
		return "", utils.NewValidationError(field, "unknown status %q", v)
	}
	return s, nil
}

// compileFilters validates fp and returns typed filters plus the canonical params.
func compileFilters(fp *filterParams) (insights.Filters, *filterParams, error) {
	if fp == nil {
		return insights.Filters{}, nil, nil
	}
	f := insights.Filters{
		ARRMin:       fp.ARRMin,
		ARRMax:       fp.ARRMax,
		Region:       strings.TrimSpace(fp.Region),
		Stage:        strings.TrimSpace(fp.Stage),
		Industry:     strings.TrimSpace(fp.Industry),
		NameContains: strings.TrimSpace(fp.NameContains),
		AccountIDs:   fp.AccountIDs,
	}
	canon := &filterParams{
		ARRMin: fp.ARRMin, ARRMax: fp.ARRMax,
		Region: f.Region, Stage: f.Stage, Industry: f.Industry, NameContains: f.NameContains,
		AccountIDs: fp.AccountIDs,
	}
	if fp.ARRMin != nil && fp.ARRMax != nil && *fp.ARRMin > *fp.ARRMax {
		return insights.Filters{}, nil, utils.NewValidationError("arr_min", "lower bound %v exceeds upper bound %v", *fp.ARRMin, *fp.ARRMax)
	}
	for _, t := range fp.IssueTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return insights.Filters{}, nil, utils.NewValidationError("issue_types", "empty issue type")
		}
		f.IssueTypes = append(f.IssueTypes, t)
	}
	canon.IssueTypes = f.IssueTypes
	for _, s := range fp.Statuses {
		st, err := parseStatus("statuses", s, "")
		if err != nil {
			return insights.Filters{}, nil, err
		}
		if st == "" {
			return insights.Filters{}, nil, utils.NewValidationError("statuses", "empty status")
		}
		f.Statuses = append(f.Statuses, st)
		canon.Statuses = append(canon.Statuses, string(st))
	}
	if pp := fp.Priority; pp != nil {
		if pp.Priority == "" {
			return insights.Filters{}, nil, utils.NewValidationError("priority", "priority is required")
		}
		p, err := parsePriority("priority", pp.Priority, "")
		if err != nil {
			return insights.Filters{}, nil, err
		}
		n, err := intIn("min_count", pp.MinCount, 1, 1, insights.MaxCount)
		if err != nil {
			return insights.Filters{}, nil, err
		}
		st, err := parseStatus("status", pp.Status, models.StatusOpen)
		if err != nil {
			return insights.Filters{}, nil, err
		}
		f.Priority = &insights.PriorityPredicate{Priority: p, MinCount: n, Status: st}
		canon.Priority = &priorityParams{Priority: string(p), MinCount: &n, Status: string(st)}
	}
	return f, canon, nil
}

func compileTopRevenue(raw map[string]any) (any, any, error) {
	var p topRevenueParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	n, err := intIn("n", p.N, insights.DefaultTopN, 1, insights.MaxTopN)
	if err != nil {
		return nil, nil, err
	}
	f, canonF, err := compileFilters(p.Filters)
	if err != nil {
		return nil, nil, err
	}
	return insights.TopRevenueArgs{N: n, Filters: f}, topRevenueParams{N: &n, Filters: canonF}, nil
}

func compileRenewals(raw map[string]any) (any, any, error) {
	var p renewalsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	window, err := intIn("window_days", p.WindowDays, insights.DefaultWindowDays, 1, insights.MaxWindowDays)
	if err != nil {
		return nil, nil, err
	}
	var asOf time.Time
	if p.AsOf != "" {
		asOf, err = time.Parse("2006-01-02", p.AsOf)
		if err != nil {
			return nil, nil, utils.NewValidationError("as_of", "expected YYYY-MM-DD, got %q", p.AsOf)
		}
	}
	f, canonF, err := compileFilters(p.Filters)
	if err != nil {
		return nil, nil, err
	}
	return insights.RenewalsArgs{WindowDays: window, AsOf: asOf, Filters: f},
		renewalsParams{WindowDays: &window, AsOf: p.AsOf, Filters: canonF}, nil
}

func compileThreshold(raw map[string]any) (any, any, error) {
	var p thresholdParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	minCount, err := intIn("min_count", p.MinCount, insights.DefaultMinCount, 1, insights.MaxCount)
	if err != nil {
		return nil, nil, err
	}
	maxCount := 0
	if p.MaxCount != nil {
		if maxCount, err = intIn("max_count", p.MaxCount, 0, minCount, insights.MaxCount); err != nil {
			return nil, nil, err
		}
	}
	prio, err := parsePriority("priority", p.Priority, models.PriorityP1)
	if err != nil {
		return nil, nil, err
	}
	status, err := parseStatus("status", p.Status, models.StatusOpen)
	if err != nil {
		return nil, nil, err
	}
	f, canonF, err := compileFilters(p.Filters)
	if err != nil {
		return nil, nil, err
	}
	canon := thresholdParams{MinCount: &minCount, Priority: string(prio), Status: string(status), Filters: canonF}
	if maxCount != 0 {
		canon.MaxCount = &maxCount
	}
	return insights.ThresholdArgs{MinCount: minCount, MaxCount: maxCount, Priority: prio, Status: status, Filters: f}, canon, nil
}

func compileAccounts(raw map[string]any) (any, any, error) {
	var p filtersOnlyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	f, canonF, err := compileFilters(p.Filters)
	if err != nil {
		return nil, nil, err
	}
	return insights.AccountsArgs{Filters: f}, filtersOnlyParams{Filters: canonF}, nil
}

func compileSummary(raw map[string]any) (any, any, error) {
	var p filtersOnlyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	f, canonF, err := compileFilters(p.Filters)
	if err != nil {
		return nil, nil, err
	}
	return insights.SummaryArgs{Filters: f}, filtersOnlyParams{Filters: canonF}, nil
}

func compileGroupBy(raw map[string]any) (any, any, error) {
	var p groupParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	dim := strings.ToLower(strings.TrimSpace(p.Dimension))
	if !contains(insights.Dimensions, dim) {
		return nil, nil, utils.NewValidationError("dimension", "unknown dimension %q", p.Dimension)
	}
	metric := strings.ToLower(strings.TrimSpace(p.Metric))
	if metric == "" {
		metric = insights.MetricCount
	}
	if !contains(insights.Metrics, metric) {
		return nil, nil, utils.NewValidationError("metric", "unknown metric %q", p.Metric)
	}
	field := strings.ToLower(strings.TrimSpace(p.Field))
	switch {
	case metric == insights.MetricSum && !contains(insights.SumFields, field):
		return nil, nil, utils.NewValidationError("field", "sum requires one of %s", strings.Join(insights.SumFields, ", "))
	case metric != insights.MetricSum && field != "":
		return nil, nil, utils.NewValidationError("field", "only valid with metric %q", insights.MetricSum)
	}
	f, canonF, err := compileFilters(p.Filters)
	if err != nil {
		return nil, nil, err
	}
	return insights.GroupArgs{Dimension: dim, Metric: metric, Field: field, Filters: f},
		groupParams{Dimension: dim, Metric: metric, Field: field, Filters: canonF}, nil
}

func compileWhere(raw map[string]any) (any, any, error) {
	var p whereParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	field := strings.TrimSpace(p.Field)
	if field == "" {
		return nil, nil, utils.NewValidationError("field", "field is required")
	}
	op := strings.ToLower(strings.TrimSpace(p.Op))
	if op == "==" {
		op = "="
	}
	if !contains(WhereOps, op) {
		return nil, nil, utils.NewValidationError("op", "unknown operator %q", p.Op)
	}
	if p.Value == nil {
		return nil, nil, utils.NewValidationError("value", "value is required")
	}
	if op == "in" {
		if _, ok := p.Value.([]any); !ok {
			return nil, nil, utils.NewValidationError("value", "operator in needs a list")
		}
	}
	return WhereArgs{Field: field, Op: op, Value: p.Value}, whereParams{Field: field, Op: op, Value: p.Value}, nil
}

func compileRange(raw map[string]any) (any, any, error) {
	var p rangeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	field := strings.TrimSpace(p.Field)
	if field == "" {
		return nil, nil, utils.NewValidationError("field", "field is required")
	}
	if p.Low == nil && p.High == nil {
		return nil, nil, utils.NewValidationError("low", "range needs low or high")
	}
	if p.Low != nil && p.High != nil && *p.Low > *p.High {
		return nil, nil, utils.NewValidationError("low", "lower bound %v exceeds upper bound %v", *p.Low, *p.High)
	}
	return RangeArgs{Field: field, Low: p.Low, High: p.High}, rangeParams{Field: field, Low: p.Low, High: p.High}, nil
}

func compileOrderBy(raw map[string]any) (any, any, error) {
	var p orderParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	by := strings.TrimSpace(p.By)
	if by == "" {
		return nil, nil, utils.NewValidationError("by", "sort field is required")
	}
	order := strings.ToLower(strings.TrimSpace(p.Order))
	switch order {
	case "":
		order = "asc"
	case "asc", "desc":
	default:
		return nil, nil, utils.NewValidationError("order", "expected asc or desc, got %q", p.Order)
	}
	return OrderArgs{By: by, Descending: order == "desc"}, orderParams{By: by, Order: order}, nil
}

func compileLimit(raw map[string]any) (any, any, error) {
	var p limitParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, nil, err
	}
	if p.N == nil {
		return nil, nil, utils.NewValidationError("n", "n is required")
	}
	n, err := intIn("n", p.N, 0, 1, MaxLimit)
	if err != nil {
		return nil, nil, err
	}
	return LimitArgs{N: n}, limitParams{N: &n}, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func describe(raw any) string {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprint(raw)
	}
	return string(data)
}
