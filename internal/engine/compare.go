package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/plan"
)

func filterRows(table models.Table, keep func(*models.Row) bool) models.Table {
	out := make(models.Table, 0, len(table))
	for _, r := range table {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// matchWhere compares numerically when both sides are numbers, otherwise as
// case-insensitive text. Rows without the field, or with an empty value, never match.
func matchWhere(r *models.Row, args plan.WhereArgs) bool {
	got, ok := present(r, args.Field)
	if !ok {
		return false
	}
	switch args.Op {
	case "in":
		values, _ := args.Value.([]any)
		for _, v := range values {
			if compare(got, v) == 0 {
				return true
			}
		}
		return false
	case "contains":
		return strings.Contains(strings.ToLower(text(got)), strings.ToLower(text(args.Value)))
	}

	c := compare(got, args.Value)
	switch args.Op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	}
	return false
}

func inRange(r *models.Row, args plan.RangeArgs) bool {
	got, ok := present(r, args.Field)
	if !ok {
		return false
	}
	n, ok := number(got)
	if !ok {
		return false
	}
	if args.Low != nil && n < *args.Low {
		return false
	}
	if args.High != nil && n > *args.High {
		return false
	}
	return true
}

// orderRows sorts a copy of table. Rows missing the field sort last in either direction.
func orderRows(table models.Table, args plan.OrderArgs) models.Table {
	out := append(models.Table(nil), table...)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := present(out[i], args.By)
		b, bok := present(out[j], args.By)
		if !aok || !bok {
			return aok && !bok
		}
		c := compare(a, b)
		if args.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

func present(r *models.Row, field string) (any, bool) {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return nil, false
	}
	if s, isText := v.(string); isText && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func compare(a, b any) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(strings.ToLower(text(a)), strings.ToLower(text(b)))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
