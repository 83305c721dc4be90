package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

type compileFunc func(raw map[string]any) (args any, canonical any, err error)

var registry = map[Kind]map[string]compileFunc{
	KindFetch: {
		OpTopRevenue:        compileTopRevenue,
		OpRenewalsWithin:    compileRenewals,
		OpThresholdCritical: compileThreshold,
		OpAccounts:          compileAccounts,
	},
	KindFilter: {
		OpWhere: compileWhere,
		OpRange: compileRange,
	},
	KindSort:      {OpOrderBy: compileOrderBy},
	KindGroup:     {OpGroupBy: compileGroupBy},
	KindAggregate: {OpSummary: compileSummary},
	KindLimit:     {OpLimit: compileLimit},
}

// Kinds lists step kinds in their documented order.
var Kinds = []Kind{KindFetch, KindFilter, KindSort, KindGroup, KindAggregate, KindLimit}

// Ops returns the operation names registered for kind, sorted.
func Ops(kind Kind) []string {
	ops := make([]string, 0, len(registry[kind]))
	for op := range registry[kind] {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// CompiledStep is a validated step with typed arguments.
type CompiledStep struct {
	Kind Kind
	Op   string
	Args any
}

// Program is a validated plan ready for execution.
type Program struct {
	Steps []CompiledStep
	// Plan is the canonical form of the source plan.
	Plan Plan
}

// Compile validates p and decodes every step's parameters. Unknown kinds or operations
// and illegal step orderings are structural errors; bad parameters are validation errors.
func Compile(p Plan) (Program, error) {
	if len(p.Steps) == 0 {
		return Program{}, utils.NewValidationError("steps", "plan has no steps")
	}
	format := strings.ToLower(strings.TrimSpace(p.Format))
	switch format {
	case "":
		format = models.FormatJSON
	case models.FormatJSON, models.FormatCSV:
	default:
		return Program{}, utils.NewValidationError("format", "expected json or csv, got %q", p.Format)
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return Program{}, utils.NewValidationError("confidence", "must be between 0 and 1")
	}

	prog := Program{
		Steps: make([]CompiledStep, 0, len(p.Steps)),
		Plan:  Plan{Steps: make([]Step, 0, len(p.Steps)), Format: format, Confidence: p.Confidence},
	}
	grouped := false
	for i, step := range p.Steps {
		ops, ok := registry[step.Kind]
		if !ok {
			return Program{}, &utils.StructuralExecutionError{Step: i, Msg: fmt.Sprintf("unknown step kind %q", step.Kind)}
		}
		compile, ok := ops[step.Op]
		if !ok {
			return Program{}, &utils.StructuralExecutionError{Step: i, Msg: fmt.Sprintf("unknown %s operation %q", step.Kind, step.Op)}
		}
		if err := checkOrder(i, len(p.Steps), step.Kind, grouped); err != nil {
			return Program{}, err
		}
		if step.Kind == KindGroup {
			grouped = true
		}

		args, canon, err := compile(step.Params)
		if err != nil {
			return Program{}, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		params, err := toParams(canon)
		if err != nil {
			return Program{}, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		prog.Steps = append(prog.Steps, CompiledStep{Kind: step.Kind, Op: step.Op, Args: args})
		prog.Plan.Steps = append(prog.Plan.Steps, Step{Kind: step.Kind, Op: step.Op, Params: params})
	}
	return prog, nil
}

func checkOrder(i, n int, kind Kind, grouped bool) error {
	switch {
	case i == 0 && (kind == KindFilter || kind == KindSort || kind == KindLimit):
		return &utils.StructuralExecutionError{Step: i, Msg: "plan must start with a fetch, group or aggregate step"}
	case i > 0 && kind == KindFetch:
		return &utils.StructuralExecutionError{Step: i, Msg: "fetch is only allowed as the first step"}
	case kind == KindAggregate && i != n-1:
		return &utils.StructuralExecutionError{Step: i, Msg: "aggregate must be the final step"}
	case grouped && (kind == KindGroup || kind == KindAggregate):
		return &utils.StructuralExecutionError{Step: i, Msg: fmt.Sprintf("%s cannot follow group", kind)}
	}
	return nil
}

// Canonical returns p with every parameter decoded, defaulted and re-encoded.
func Canonical(p Plan) (Plan, error) {
	prog, err := Compile(p)
	if err != nil {
		return Plan{}, err
	}
	return prog.Plan, nil
}

func toParams(canon any) (map[string]any, error) {
	data, err := json.Marshal(canon)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Describe renders a step for warnings and logs, e.g. `where {"field":"Region",...}`.
func Describe(s Step) string {
	if len(s.Params) == 0 {
		return s.Op
	}
	return s.Op + " " + describe(s.Params)
}
