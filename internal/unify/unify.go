// Package unify joins normalized issues onto accounts and owns the served dataset.
package unify

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// SyntheticPrefix marks link keys derived from an account hint rather than a native link field.
const SyntheticPrefix = "syn:"

// Options tune how link keys are matched to accounts.
type Options struct {
	// LinkMap translates native link keys (epic IDs and the like) into account IDs.
	LinkMap map[string]string
}

// Result holds the unified accounts, sorted by ID, and the issues no account claimed.
type Result struct {
	Accounts []models.UnifiedAccount
	Orphans  []models.Issue
}

// Unify partitions issues across accounts. Every issue ends up in exactly one
// account bucket or in the orphan list.
func Unify(accounts []models.Account, issues []models.Issue, opts Options) (Result, error) {
	byID := make(map[string]int, len(accounts))
	unified := make([]models.UnifiedAccount, 0, len(accounts))
	for _, acc := range accounts {
		if _, dup := byID[acc.ID]; dup {
			return Result{}, &utils.ConfigurationError{Msg: fmt.Sprintf("duplicate account id %q", acc.ID)}
		}
		byID[acc.ID] = len(unified)
		unified = append(unified, models.UnifiedAccount{Account: acc})
	}

	names := nameIndex(accounts)
	var orphans []models.Issue
	for _, issue := range issues {
		issue.LinkKey = ResolveLinkKey(issue)
		idx, ok := match(issue.LinkKey, byID, names, opts.LinkMap)
		if !ok {
			orphans = append(orphans, issue)
			continue
		}
		if issue.Region == "" {
			issue.Region = unified[idx].Region
		}
		unified[idx].Issues = append(unified[idx].Issues, issue)
	}

	for i := range unified {
		unified[i].Aggregates = Aggregate(unified[i].Issues)
	}
	sort.Slice(unified, func(i, j int) bool { return unified[i].ID < unified[j].ID })

	return Result{Accounts: unified, Orphans: orphans}, nil
}

func match(key string, byID map[string]int, names map[string]string, linkMap map[string]string) (int, bool) {
	if idx, ok := byID[key]; ok {
		return idx, true
	}
	if mapped, ok := linkMap[key]; ok {
		if idx, ok := byID[mapped]; ok {
			return idx, true
		}
	}
	if hint, ok := syntheticHint(key); ok && hint != "" {
		if id, ok := names[hint]; ok {
			return byID[id], true
		}
	}
	return 0, false
}

// nameIndex maps slugged account names to IDs. Names shared by several accounts are left out.
func nameIndex(accounts []models.Account) map[string]string {
	out := make(map[string]string, len(accounts))
	ambiguous := make(map[string]struct{})
	for _, acc := range accounts {
		slug := Slug(acc.Name)
		if slug == "" {
			continue
		}
		if _, seen := out[slug]; seen {
			ambiguous[slug] = struct{}{}
			continue
		}
		out[slug] = acc.ID
	}
	for slug := range ambiguous {
		delete(out, slug)
	}
	return out
}

// ResolveLinkKey returns the native link key when present, otherwise a synthetic one.
func ResolveLinkKey(issue models.Issue) string {
	if key := strings.TrimSpace(issue.LinkKey); key != "" {
		return key
	}
	return SyntheticKey(issue)
}

// SyntheticKey derives a stable key from the account hint and the issue's identifying fields.
func SyntheticKey(issue models.Issue) string {
	h := xxhash.New()
	for i, part := range []string{issue.ID, issue.Summary, utils.FormatDate(issue.CreatedDate), issue.Type} {
		if i > 0 {
			_, _ = h.WriteString("|")
		}
		_, _ = h.WriteString(part)
	}
	return fmt.Sprintf("%s%s:%016x", SyntheticPrefix, Slug(issue.AccountHint), h.Sum64())
}

func syntheticHint(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, SyntheticPrefix)
	if !ok {
		return "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return "", false
	}
	return rest[:i], true
}

// Slug lower-cases s and joins its alphanumeric runs with single dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// Aggregate derives the count view for one account's issues.
func Aggregate(issues []models.Issue) models.Aggregates {
	agg := models.Aggregates{
		TotalIssues: len(issues),
		ByPriority:  make(map[models.Priority]int, len(models.Priorities)),
		ByStatus:    make(map[models.Status]int, len(models.Statuses)),
		Cube:        make(map[models.CubeKey]int),
	}
	for _, issue := range issues {
		agg.ByPriority[issue.Priority]++
		agg.ByStatus[issue.Status]++
		agg.Cube[models.CubeKey{Priority: issue.Priority, Status: issue.Status, Type: issue.Type}]++
		if issue.IsOpen() {
			agg.OpenIssues++
			if issue.Priority == models.PriorityP1 {
				agg.OpenP1++
			}
		}
		if issue.CreatedDate != nil && (agg.LastIssueDate == nil || issue.CreatedDate.After(*agg.LastIssueDate)) {
			d := *issue.CreatedDate
			agg.LastIssueDate = &d
		}
	}
	return agg
}
