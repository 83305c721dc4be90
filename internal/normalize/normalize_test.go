package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyiq/unifyiq/internal/models"
)

func TestPriorityCollapse(t *testing.T) {
	cases := map[string]models.Priority{
		"Critical": models.PriorityP1,
		"blocker":  models.PriorityP1,
		"HIGH":     models.PriorityP1,
		"sev0":     models.PriorityP1,
		"p1":       models.PriorityP1,
		"Medium":   models.PriorityP2,
		"major":    models.PriorityP2,
		"low":      models.PriorityP3,
		"trivial":  models.PriorityP3,
		"":         models.PriorityP3,
	}
	for in, want := range cases {
		assert.Equal(t, want, Priority(in), "priority %q", in)
	}
}

func TestStatusCollapse(t *testing.T) {
	closed := []string{"Done", "closed", "RESOLVED", "Won't Do", "cancelled"}
	for _, s := range closed {
		assert.Equal(t, models.StatusClosed, Status(s), s)
	}
	open := []string{"In Progress", "backlog", "todo", "", "open"}
	for _, s := range open {
		assert.Equal(t, models.StatusOpen, Status(s), s)
	}
}

func TestIssueTypeDefaults(t *testing.T) {
	assert.Equal(t, "story", IssueType("Story", ""))
	assert.Equal(t, "enhancement", IssueType("", "Enhancement: bulk export"))
	assert.Equal(t, "bug", IssueType("", "Login fails"))
}

func TestRegionAliases(t *testing.T) {
	assert.Equal(t, "NA", Region(" north  america "))
	assert.Equal(t, "EMEA", Region("emea"))
	assert.Equal(t, "Antarctica", Region("Antarctica"))
}

func TestAccountsAliasesAndRejections(t *testing.T) {
	raw := []models.RawRecord{
		{"AccountID": "A1001", "AccountName": " Acme ", "ARR": 120000.0, "Region": "na", "RenewalDate": "2025-06-30", "Stage": "Customer"},
		{"account_id": "A1002", "account name": "Globex", "arr": "$1.2M", "industry": "Retail"},
		{"AccountID": "A1003", "AccountName": "Initech", "ARR": -50.0},
		{"AccountName": "No ID Corp"},
		{"AccountID": "A1005"},
	}
	accounts, rejected := Accounts(raw)
	require.Len(t, accounts, 3)
	assert.Equal(t, "Acme", accounts[0].Name)
	assert.Equal(t, "NA", accounts[0].Region)
	require.NotNil(t, accounts[0].RenewalDate)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *accounts[0].RenewalDate)
	assert.InDelta(t, 1_200_000, accounts[1].ARR, 0.001)
	assert.Equal(t, "Retail", accounts[1].Industry)
	assert.Zero(t, accounts[2].ARR)

	assert.Equal(t, []models.Rejection{
		{Source: SourceAccounts, Index: 3, Field: "id"},
		{Source: SourceAccounts, Index: 4, Field: "name"},
	}, rejected)
}

func TestIssuesNormalization(t *testing.T) {
	raw := []models.RawRecord{
		{"IssueID": "J-1", "EpicLink": "EPIC-1", "Priority": "Blocker", "Status": "Done", "Summary": "Crash", "CreatedDate": "01/02/2025"},
		{"key": "J-2", "Account": "Acme", "priority": "medium", "status": "In Progress", "type": "Task"},
		{"Summary": "missing id"},
	}
	issues, rejected := Issues(raw)
	require.Len(t, issues, 2)

	assert.Equal(t, "EPIC-1", issues[0].LinkKey)
	assert.Equal(t, models.PriorityP1, issues[0].Priority)
	assert.Equal(t, models.StatusClosed, issues[0].Status)
	assert.Equal(t, "bug", issues[0].Type)
	require.NotNil(t, issues[0].CreatedDate)
	assert.Equal(t, time.February, issues[0].CreatedDate.Month(), "day-first layouts win")
	assert.Equal(t, 1, issues[0].CreatedDate.Day())

	assert.Empty(t, issues[1].LinkKey)
	assert.Equal(t, "Acme", issues[1].AccountHint)
	assert.Equal(t, models.PriorityP2, issues[1].Priority)
	assert.Equal(t, models.StatusOpen, issues[1].Status)
	assert.Equal(t, "task", issues[1].Type)

	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].Index)
}

func TestIssuesRejectDuplicateIDs(t *testing.T) {
	raw := []models.RawRecord{
		{"IssueID": "J-1", "Priority": "P1", "Status": "Open"},
		{"IssueID": "J-2", "Priority": "P2", "Status": "Open"},
		{"IssueID": "J-1", "Priority": "P3", "Status": "Closed"},
	}
	issues, rejected := Issues(raw)
	require.Len(t, issues, 2)
	assert.Equal(t, "J-1", issues[0].ID)
	assert.Equal(t, models.PriorityP1, issues[0].Priority, "first occurrence is kept")
	assert.Equal(t, []models.Rejection{
		{Source: SourceIssues, Index: 2, Field: "id", Reason: models.RejectDuplicate},
	}, rejected)
}
