// Package normalize turns raw source rows into canonical account and issue records.
package normalize

import (
	"strings"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// Source labels used on rejections.
const (
	SourceAccounts = "accounts"
	SourceIssues   = "issues"
)

var p1Tokens = map[string]struct{}{
	"p0": {}, "p1": {}, "sev0": {}, "sev1": {}, "critical": {}, "blocker": {}, "high": {}, "highest": {},
}

var p2Tokens = map[string]struct{}{
	"p2": {}, "sev2": {}, "medium": {}, "major": {},
}

var closedTokens = map[string]struct{}{
	"done": {}, "closed": {}, "resolved": {}, "won't do": {}, "wont do": {}, "cancelled": {}, "canceled": {},
}

var regionAliases = map[string]string{
	"na":            "NA",
	"north america": "NA",
	"amer":          "NA",
	"emea":          "EMEA",
	"europe":        "EMEA",
	"apac":          "APAC",
	"asia pacific":  "APAC",
	"latam":         "LATAM",
	"latin america": "LATAM",
}

// Priority collapses a source priority into P1, P2 or P3.
func Priority(v string) models.Priority {
	key := strings.ToLower(strings.TrimSpace(v))
	if _, ok := p1Tokens[key]; ok {
		return models.PriorityP1
	}
	if _, ok := p2Tokens[key]; ok {
		return models.PriorityP2
	}
	return models.PriorityP3
}

// Status collapses a source workflow state into open or closed.
func Status(v string) models.Status {
	key := strings.Join(strings.Fields(strings.ToLower(v)), " ")
	if _, ok := closedTokens[key]; ok {
		return models.StatusClosed
	}
	return models.StatusOpen
}

// Region trims v and canonicalises well-known aliases. Unknown regions pass through.
func Region(v string) string {
	v = strings.TrimSpace(v)
	if canon, ok := regionAliases[strings.Join(strings.Fields(strings.ToLower(v)), " ")]; ok {
		return canon
	}
	return v
}

// IssueType lower-cases the source type, inferring one from the summary when absent.
func IssueType(v, summary string) string {
	if t := strings.ToLower(strings.TrimSpace(v)); t != "" {
		return t
	}
	if strings.Contains(strings.ToLower(summary), "enhancement") {
		return "enhancement"
	}
	return "bug"
}

// Accounts normalizes account rows. Rows without an ID or name are rejected.
func Accounts(raw []models.RawRecord) ([]models.Account, []models.Rejection) {
	out := make([]models.Account, 0, len(raw))
	var rejected []models.Rejection
	for i, rr := range raw {
		r := fold(rr)
		acc := models.Account{
			ID:            r.text(accountIDKeys),
			Name:          r.text(accountNameKeys),
			Stage:         r.text(accountStageKeys),
			Region:        Region(r.text(accountRegionKeys)),
			Industry:      r.text(accountIndustryKeys),
			Owner:         r.text(accountOwnerKeys),
			RenewalDate:   utils.DateValue(r.value(accountRenewalKeys)),
			CustomerSince: utils.DateValue(r.value(accountSinceKeys)),
		}
		if acc.ID == "" {
			rejected = append(rejected, models.Rejection{Source: SourceAccounts, Index: i, Field: "id"})
			continue
		}
		if acc.Name == "" {
			rejected = append(rejected, models.Rejection{Source: SourceAccounts, Index: i, Field: "name"})
			continue
		}
		if arr, ok := number(r.value(accountARRKeys)); ok && arr > 0 {
			acc.ARR = arr
		}
		out = append(out, acc)
	}
	return out, rejected
}

// Issues normalizes issue rows. Rows without an ID are rejected, as are repeats of an
// ID already seen; the first occurrence wins.
func Issues(raw []models.RawRecord) ([]models.Issue, []models.Rejection) {
	out := make([]models.Issue, 0, len(raw))
	var rejected []models.Rejection
	seen := make(map[string]struct{}, len(raw))
	for i, rr := range raw {
		r := fold(rr)
		id := r.text(issueIDKeys)
		if id == "" {
			rejected = append(rejected, models.Rejection{Source: SourceIssues, Index: i, Field: "id"})
			continue
		}
		if _, dup := seen[id]; dup {
			rejected = append(rejected, models.Rejection{Source: SourceIssues, Index: i, Field: "id", Reason: models.RejectDuplicate})
			continue
		}
		seen[id] = struct{}{}
		summary := r.text(issueSummaryKeys)
		out = append(out, models.Issue{
			ID:          id,
			LinkKey:     r.text(issueLinkKeys),
			AccountHint: r.text(issueHintKeys),
			Priority:    Priority(r.text(issuePriorityKeys)),
			Status:      Status(r.text(issueStatusKeys)),
			Type:        IssueType(r.text(issueTypeKeys), summary),
			Region:      Region(r.text(issueRegionKeys)),
			Summary:     summary,
			CreatedDate: utils.DateValue(r.value(issueCreatedKeys)),
			DueDate:     utils.DateValue(r.value(issueDueKeys)),
		})
	}
	return out, rejected
}
