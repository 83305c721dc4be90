// Package plan defines the query plan schema shared by every planner and the executor.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind is the role a step plays in the chain.
type Kind string

const (
	KindFetch     Kind = "fetch"
	KindFilter    Kind = "filter"
	KindSort      Kind = "sort"
	KindGroup     Kind = "group"
	KindAggregate Kind = "aggregate"
	KindLimit     Kind = "limit"
)

// Operation names.
const (
	OpTopRevenue        = "top-revenue"
	OpRenewalsWithin    = "renewals-within"
	OpThresholdCritical = "threshold-critical"
	OpAccounts          = "accounts"
	OpGroupBy           = "group-by"
	OpSummary           = "summary"
	OpWhere             = "where"
	OpRange             = "range"
	OpOrderBy           = "order-by"
	OpLimit             = "limit"
)

// Step is one operation in a plan.
type Step struct {
	Kind   Kind           `json:"kind"`
	Op     string         `json:"op"`
	Params map[string]any `json:"params,omitempty"`
}

// Plan is an ordered list of steps plus output hints. Plans are not modified once built.
type Plan struct {
	Steps      []Step   `json:"steps"`
	Format     string   `json:"format,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Decode parses a plan document, refusing unknown fields and trailing data.
func Decode(data []byte) (Plan, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Plan{}, fmt.Errorf("decode plan: trailing data")
	}
	return p, nil
}

// Intent names the plan's primary operation: the last group or aggregate step, else the fetch.
func (p Plan) Intent() string {
	intent := ""
	for _, s := range p.Steps {
		switch s.Kind {
		case KindFetch:
			if intent == "" {
				intent = s.Op
			}
		case KindGroup, KindAggregate:
			intent = s.Op
		}
	}
	return intent
}

// ConfidenceOr returns the plan confidence, or def when the planner gave none.
func (p Plan) ConfidenceOr(def float64) float64 {
	if p.Confidence == nil {
		return def
	}
	return *p.Confidence
}
