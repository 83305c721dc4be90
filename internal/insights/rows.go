package insights

import (
	"math"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// Account row fields. Filter and sort steps address rows by these names.
const (
	FieldAccountID     = "AccountID"
	FieldAccountName   = "AccountName"
	FieldARR           = "ARR"
	FieldStage         = "Stage"
	FieldRegion        = "Region"
	FieldIndustry      = "Industry"
	FieldRenewalDate   = "RenewalDate"
	FieldOpenIssues    = "OpenIssues"
	FieldOpenP1        = "OpenP1Issues"
	FieldOpenP2        = "OpenP2Issues"
	FieldOpenP3        = "OpenP3Issues"
	FieldLastIssueDate = "LastIssueDate"
	FieldMatching      = "MatchingIssues"
	FieldDaysToRenewal = "DaysToRenewal"
)

// AccountRow renders acc as a flat row with counts restricted to scope.
func AccountRow(acc *models.UnifiedAccount, scope models.IssueScope) *models.Row {
	agg := acc.Aggregates
	return models.NewAccountRow(acc).
		Set(FieldAccountID, acc.ID).
		Set(FieldAccountName, acc.Name).
		Set(FieldARR, acc.ARR).
		Set(FieldStage, acc.Stage).
		Set(FieldRegion, acc.Region).
		Set(FieldIndustry, acc.Industry).
		Set(FieldRenewalDate, utils.FormatDate(acc.RenewalDate)).
		Set(FieldOpenIssues, agg.Count(scope, "", models.StatusOpen)).
		Set(FieldOpenP1, agg.Count(scope, models.PriorityP1, models.StatusOpen)).
		Set(FieldOpenP2, agg.Count(scope, models.PriorityP2, models.StatusOpen)).
		Set(FieldOpenP3, agg.Count(scope, models.PriorityP3, models.StatusOpen)).
		Set(FieldLastIssueDate, utils.FormatDate(agg.LastIssueDate))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
