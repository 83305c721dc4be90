package models

import (
	"strings"
	"time"
)

// CubeKey addresses one cell of an account's issue count cube.
type CubeKey struct {
	Priority Priority
	Status   Status
	Type     string
}

// Aggregates is the derived view over the issues linked to an account.
// It is computed by the unifier and never mutated afterwards.
type Aggregates struct {
	TotalIssues   int
	OpenIssues    int
	OpenP1        int
	ByPriority    map[Priority]int
	ByStatus      map[Status]int
	LastIssueDate *time.Time
	Cube          map[CubeKey]int
}

// IssueScope narrows which issues participate in a count. Empty slices match everything.
type IssueScope struct {
	Types    []string
	Statuses []Status
}

func (s IssueScope) matches(key CubeKey) bool {
	if len(s.Types) > 0 {
		ok := false
		for _, t := range s.Types {
			if strings.EqualFold(t, key.Type) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(s.Statuses) > 0 {
		ok := false
		for _, st := range s.Statuses {
			if st == key.Status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Count sums cube cells inside scope. Empty priority or status acts as a wildcard.
func (a Aggregates) Count(scope IssueScope, priority Priority, status Status) int {
	total := 0
	for key, n := range a.Cube {
		if priority != "" && key.Priority != priority {
			continue
		}
		if status != "" && key.Status != status {
			continue
		}
		if !scope.matches(key) {
			continue
		}
		total += n
	}
	return total
}

// UnifiedAccount is an account enriched with the issues resolved to it.
type UnifiedAccount struct {
	Account
	Issues     []Issue
	Aggregates Aggregates
}

// Rejection records a source row dropped during normalization.
type Rejection struct {
	Source string
	Index  int
	Field  string
	// Reason is empty for a missing field and RejectDuplicate for a repeated ID.
	Reason string
}

// RejectDuplicate marks a row whose identifier was already seen.
const RejectDuplicate = "duplicate"

// Dataset is the read-only unified view served to queries.
type Dataset struct {
	Accounts   []UnifiedAccount
	Orphans    []Issue
	Rejections []Rejection
	BuiltAt    time.Time
	// Raw row counts as delivered by the sources, before rejections.
	SourceAccounts int
	SourceIssues   int
}

// IssueCount returns every issue in the dataset, linked or orphaned.
func (d *Dataset) IssueCount() int {
	if d == nil {
		return 0
	}
	n := len(d.Orphans)
	for i := range d.Accounts {
		n += len(d.Accounts[i].Issues)
	}
	return n
}
