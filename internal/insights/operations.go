package insights

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// Parameter bounds and defaults.
const (
	DefaultTopN       = 10
	MaxTopN           = 1000
	DefaultWindowDays = 60
	MaxWindowDays     = 365
	DefaultMinCount   = 3
	MaxCount          = 1000
)

// Group-by dimensions.
const (
	DimensionRegion   = "region"
	DimensionStage    = "stage"
	DimensionIndustry = "industry"
)

// Group-by metrics.
const (
	MetricCount  = "count"
	MetricSum    = "sum"
	MetricOpenP1 = "open_p1"
)

// Dimensions, Metrics and SumFields enumerate the accepted group-by parameters.
var (
	Dimensions = []string{DimensionRegion, DimensionStage, DimensionIndustry}
	Metrics    = []string{MetricCount, MetricSum, MetricOpenP1}
	SumFields  = []string{"arr", "issues", "open_issues", "open_p1", "open_p2", "open_p3"}
)

// UnknownLabel replaces empty group labels.
const UnknownLabel = "Unknown"

// TopRevenueArgs parameterise TopRevenue.
type TopRevenueArgs struct {
	N       int
	Filters Filters
}

// TopRevenue returns the n highest-ARR accounts, ties broken by ID.
func TopRevenue(accounts []*models.UnifiedAccount, args TopRevenueArgs) (models.Table, error) {
	if args.N == 0 {
		args.N = DefaultTopN
	}
	if args.N < 1 || args.N > MaxTopN {
		return nil, utils.NewValidationError("n", "must be between 1 and %d", MaxTopN)
	}
	matched, err := Apply(accounts, args.Filters)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].ARR != matched[j].ARR {
			return matched[i].ARR > matched[j].ARR
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > args.N {
		matched = matched[:args.N]
	}
	scope := args.Filters.Scope()
	out := make(models.Table, 0, len(matched))
	for _, acc := range matched {
		out = append(out, AccountRow(acc, scope))
	}
	return out, nil
}

// RenewalsArgs parameterise RenewalsWithin. A zero AsOf means today (UTC).
type RenewalsArgs struct {
	WindowDays int
	AsOf       time.Time
	Filters    Filters
}

// RenewalsWithin returns accounts renewing in [as_of, as_of+window], soonest first.
func RenewalsWithin(accounts []*models.UnifiedAccount, args RenewalsArgs) (models.Table, error) {
	if args.WindowDays == 0 {
		args.WindowDays = DefaultWindowDays
	}
	if args.WindowDays < 1 || args.WindowDays > MaxWindowDays {
		return nil, utils.NewValidationError("window_days", "must be between 1 and %d", MaxWindowDays)
	}
	asOf := args.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = utils.StartOfDay(asOf)
	end := asOf.AddDate(0, 0, args.WindowDays)

	matched, err := Apply(accounts, args.Filters)
	if err != nil {
		return nil, err
	}
	due := make([]*models.UnifiedAccount, 0, len(matched))
	for _, acc := range matched {
		r := acc.RenewalDate
		if r == nil || r.Before(asOf) || r.After(end) {
			continue
		}
		due = append(due, acc)
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.RenewalDate.Equal(*b.RenewalDate) {
			return a.RenewalDate.Before(*b.RenewalDate)
		}
		if a.ARR != b.ARR {
			return a.ARR > b.ARR
		}
		return a.ID < b.ID
	})

	scope := args.Filters.Scope()
	out := make(models.Table, 0, len(due))
	for _, acc := range due {
		days := int(acc.RenewalDate.Sub(asOf).Hours() / 24)
		out = append(out, AccountRow(acc, scope).Set(FieldDaysToRenewal, days))
	}
	return out, nil
}

// ThresholdArgs parameterise ThresholdCritical. MaxCount zero means unbounded.
type ThresholdArgs struct {
	MinCount int
	MaxCount int
	Priority models.Priority
	Status   models.Status
	Filters  Filters
}

// ThresholdCritical returns accounts whose matching issue count lies in [min_count, max_count].
// Counts come from the precomputed aggregate cube.
func ThresholdCritical(accounts []*models.UnifiedAccount, args ThresholdArgs) (models.Table, error) {
	if args.MinCount == 0 {
		args.MinCount = DefaultMinCount
	}
	if args.Priority == "" {
		args.Priority = models.PriorityP1
	}
	if args.Status == "" {
		args.Status = models.StatusOpen
	}
	if args.MinCount < 1 || args.MinCount > MaxCount {
		return nil, utils.NewValidationError("min_count", "must be between 1 and %d", MaxCount)
	}
	if args.MaxCount != 0 && (args.MaxCount < args.MinCount || args.MaxCount > MaxCount) {
		return nil, utils.NewValidationError("max_count", "must be between min_count (%d) and %d", args.MinCount, MaxCount)
	}
	if _, ok := models.ParsePriority(string(args.Priority)); !ok {
		return nil, utils.NewValidationError("priority", "unknown priority %q", args.Priority)
	}
	if _, ok := models.ParseStatus(string(args.Status)); !ok {
		return nil, utils.NewValidationError("status", "unknown status %q", args.Status)
	}

	matched, err := Apply(accounts, args.Filters)
	if err != nil {
		return nil, err
	}
	scope := args.Filters.Scope()
	type hit struct {
		acc   *models.UnifiedAccount
		count int
	}
	hits := make([]hit, 0, len(matched))
	for _, acc := range matched {
		n := acc.Aggregates.Count(scope, args.Priority, args.Status)
		if n < args.MinCount || (args.MaxCount != 0 && n > args.MaxCount) {
			continue
		}
		hits = append(hits, hit{acc: acc, count: n})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		if hits[i].acc.ARR != hits[j].acc.ARR {
			return hits[i].acc.ARR > hits[j].acc.ARR
		}
		return hits[i].acc.ID < hits[j].acc.ID
	})

	out := make(models.Table, 0, len(hits))
	for _, h := range hits {
		out = append(out, AccountRow(h.acc, scope).Set(FieldMatching, h.count))
	}
	return out, nil
}

// GroupArgs parameterise GroupBy. Field applies to the sum metric only.
type GroupArgs struct {
	Dimension string
	Metric    string
	Field     string
	Filters   Filters
}

// GroupBy buckets accounts by a dimension and computes one metric per bucket.
func GroupBy(accounts []*models.UnifiedAccount, args GroupArgs) (models.Table, error) {
	if args.Metric == "" {
		args.Metric = MetricCount
	}
	if !oneOf(args.Dimension, Dimensions) {
		return nil, utils.NewValidationError("dimension", "unknown dimension %q", args.Dimension)
	}
	if !oneOf(args.Metric, Metrics) {
		return nil, utils.NewValidationError("metric", "unknown metric %q", args.Metric)
	}
	switch {
	case args.Metric == MetricSum && !oneOf(args.Field, SumFields):
		return nil, utils.NewValidationError("field", "sum requires one of %s", strings.Join(SumFields, ", "))
	case args.Metric != MetricSum && args.Field != "":
		return nil, utils.NewValidationError("field", "only valid with metric %q", MetricSum)
	}

	matched, err := Apply(accounts, args.Filters)
	if err != nil {
		return nil, err
	}
	scope := args.Filters.Scope()

	type bucket struct {
		label    string
		value    float64
		accounts int
	}
	buckets := map[string]*bucket{}
	for _, acc := range matched {
		label := strings.TrimSpace(dimensionValue(acc, args.Dimension))
		if label == "" {
			label = UnknownLabel
		}
		b, ok := buckets[label]
		if !ok {
			b = &bucket{label: label}
			buckets[label] = b
		}
		b.accounts++
		b.value += metricValue(acc, scope, args.Metric, args.Field)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].value != ordered[j].value {
			return ordered[i].value > ordered[j].value
		}
		return ordered[i].label < ordered[j].label
	})

	metricName := args.Metric
	if args.Metric == MetricSum {
		metricName = fmt.Sprintf("sum_%s", args.Field)
	}
	out := make(models.Table, 0, len(ordered))
	for _, b := range ordered {
		var value any = int(b.value)
		if args.Field == "arr" {
			value = round2(b.value)
		}
		out = append(out, models.NewRow().
			Set("group", b.label).
			Set("metric", metricName).
			Set("value", value).
			Set("accounts", b.accounts))
	}
	return out, nil
}

func dimensionValue(acc *models.UnifiedAccount, dimension string) string {
	switch dimension {
	case DimensionRegion:
		return acc.Region
	case DimensionStage:
		return acc.Stage
	default:
		return acc.Industry
	}
}

func metricValue(acc *models.UnifiedAccount, scope models.IssueScope, metric, field string) float64 {
	agg := acc.Aggregates
	switch metric {
	case MetricCount:
		return 1
	case MetricOpenP1:
		return float64(agg.Count(scope, models.PriorityP1, models.StatusOpen))
	}
	switch field {
	case "arr":
		return acc.ARR
	case "issues":
		return float64(agg.Count(scope, "", ""))
	case "open_issues":
		return float64(agg.Count(scope, "", models.StatusOpen))
	case "open_p1":
		return float64(agg.Count(scope, models.PriorityP1, models.StatusOpen))
	case "open_p2":
		return float64(agg.Count(scope, models.PriorityP2, models.StatusOpen))
	default:
		return float64(agg.Count(scope, models.PriorityP3, models.StatusOpen))
	}
}

// SummaryArgs parameterise Summary.
type SummaryArgs struct {
	Filters Filters
}

// Summary returns one record describing the filtered accounts. Orphans cannot be
// attributed to an account, so total_orphans is the dataset-wide count.
func Summary(accounts []*models.UnifiedAccount, orphans int, args SummaryArgs) (*models.Row, error) {
	matched, err := Apply(accounts, args.Filters)
	if err != nil {
		return nil, err
	}
	scope := args.Filters.Scope()

	var (
		totalIssues int
		totalARR    float64
		exposure    = make(map[models.Priority][]float64, len(models.Priorities))
		openByPrio  = make(map[models.Priority]int, len(models.Priorities))
	)
	for _, acc := range matched {
		totalARR += acc.ARR
		totalIssues += acc.Aggregates.Count(scope, "", "")
		for _, p := range models.Priorities {
			n := acc.Aggregates.Count(scope, p, models.StatusOpen)
			openByPrio[p] += n
			if n > 0 {
				exposure[p] = append(exposure[p], acc.ARR)
			}
		}
	}
	avg := 0.0
	if len(matched) > 0 {
		avg = round2(totalARR / float64(len(matched)))
	}

	row := models.NewRow().
		Set("total_accounts", len(matched)).
		Set("total_issues", totalIssues).
		Set("total_orphans", orphans).
		Set("total_open_p1", openByPrio[models.PriorityP1]).
		Set("average_revenue", avg)
	for _, p := range models.Priorities {
		suffix := strings.ToLower(string(p))
		row.Set("accounts_with_open_"+suffix, len(exposure[p]))
		row.Set("total_open_"+suffix, openByPrio[p])
		row.Set("median_arr_impacted_"+suffix, round2(median(exposure[p])))
	}
	return row, nil
}

// AccountsArgs parameterise Accounts.
type AccountsArgs struct {
	Filters Filters
}

// Accounts lists every matching account in ID order.
func Accounts(accounts []*models.UnifiedAccount, args AccountsArgs) (models.Table, error) {
	matched, err := Apply(accounts, args.Filters)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	scope := args.Filters.Scope()
	out := make(models.Table, 0, len(matched))
	for _, acc := range matched {
		out = append(out, AccountRow(acc, scope))
	}
	return out, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
