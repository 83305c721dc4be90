// Package insights holds the fixed set of query operations run against unified accounts.
package insights

import (
	"strings"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// PriorityPredicate keeps accounts holding at least MinCount issues of a priority and status.
type PriorityPredicate struct {
	Priority models.Priority
	MinCount int
	Status   models.Status
}

// Filters is the common filter set. Every populated field must hold (logical AND).
type Filters struct {
	ARRMin       *float64
	ARRMax       *float64
	Region       string
	Stage        string
	Industry     string
	NameContains string
	AccountIDs   []string

	// IssueTypes and Statuses restrict which issues count wherever counts appear.
	IssueTypes []string
	Statuses   []models.Status

	Priority *PriorityPredicate
}

// Validate rejects inverted ranges and malformed predicates.
func (f Filters) Validate() error {
	if f.ARRMin != nil && f.ARRMax != nil && *f.ARRMin > *f.ARRMax {
		return utils.NewValidationError("arr_min", "lower bound %v exceeds upper bound %v", *f.ARRMin, *f.ARRMax)
	}
	for _, st := range f.Statuses {
		if _, ok := models.ParseStatus(string(st)); !ok {
			return utils.NewValidationError("statuses", "unknown status %q", st)
		}
	}
	if p := f.Priority; p != nil {
		if _, ok := models.ParsePriority(string(p.Priority)); !ok {
			return utils.NewValidationError("priority", "unknown priority %q", p.Priority)
		}
		if p.MinCount < 0 || p.MinCount > MaxCount {
			return utils.NewValidationError("min_count", "must be between 1 and %d", MaxCount)
		}
		if p.Status != "" {
			if _, ok := models.ParseStatus(string(p.Status)); !ok {
				return utils.NewValidationError("status", "unknown status %q", p.Status)
			}
		}
	}
	return nil
}

// Scope returns the issue scope implied by the filters.
func (f Filters) Scope() models.IssueScope {
	return models.IssueScope{Types: f.IssueTypes, Statuses: f.Statuses}
}

// Match reports whether acc passes every populated filter.
func (f Filters) Match(acc *models.UnifiedAccount) bool {
	if f.ARRMin != nil && acc.ARR < *f.ARRMin {
		return false
	}
	if f.ARRMax != nil && acc.ARR > *f.ARRMax {
		return false
	}
	if f.Region != "" && !strings.EqualFold(acc.Region, f.Region) {
		return false
	}
	if f.Stage != "" && !strings.EqualFold(acc.Stage, f.Stage) {
		return false
	}
	if f.Industry != "" && !strings.EqualFold(acc.Industry, f.Industry) {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(acc.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	if len(f.AccountIDs) > 0 && !containsFold(f.AccountIDs, acc.ID) {
		return false
	}
	if p := f.Priority; p != nil {
		need := p.MinCount
		if need == 0 {
			need = 1
		}
		status := p.Status
		if status == "" {
			status = models.StatusOpen
		}
		if acc.Aggregates.Count(f.Scope(), p.Priority, status) < need {
			return false
		}
	}
	return true
}

// Apply returns the accounts passing f, preserving input order.
func Apply(accounts []*models.UnifiedAccount, f Filters) ([]*models.UnifiedAccount, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]*models.UnifiedAccount, 0, len(accounts))
	for _, acc := range accounts {
		if f.Match(acc) {
			out = append(out, acc)
		}
	}
	return out, nil
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// All returns pointers to every account in ds, in dataset order.
func All(ds *models.Dataset) []*models.UnifiedAccount {
	if ds == nil {
		return nil
	}
	out := make([]*models.UnifiedAccount, len(ds.Accounts))
	for i := range ds.Accounts {
		out[i] = &ds.Accounts[i]
	}
	return out
}
