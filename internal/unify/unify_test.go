package unify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func fixtureAccounts() []models.Account {
	return []models.Account{
		{ID: "A1002", Name: "Globex", ARR: 250000, Region: "EMEA"},
		{ID: "A1001", Name: "Acme Corp", ARR: 120000, Region: "NA"},
		{ID: "A1003", Name: "Twin", ARR: 90000},
		{ID: "A1004", Name: "twin", ARR: 80000},
	}
}

func fixtureIssues() []models.Issue {
	return []models.Issue{
		{ID: "J-1", LinkKey: "A1001", Priority: models.PriorityP1, Status: models.StatusOpen, Type: "bug", CreatedDate: date(2025, 1, 3)},
		{ID: "J-2", LinkKey: "A1001", Priority: models.PriorityP1, Status: models.StatusClosed, Type: "bug", CreatedDate: date(2025, 2, 1)},
		{ID: "J-3", LinkKey: "EPIC-7", Priority: models.PriorityP2, Status: models.StatusOpen, Type: "task"},
		{ID: "J-4", AccountHint: "ACME corp", Priority: models.PriorityP1, Status: models.StatusOpen, Type: "bug", Summary: "crash"},
		{ID: "J-5", AccountHint: "Twin", Priority: models.PriorityP3, Status: models.StatusOpen, Type: "bug"},
		{ID: "J-6", LinkKey: "EPIC-404", Priority: models.PriorityP3, Status: models.StatusOpen, Type: "bug"},
		{ID: "J-7", Priority: models.PriorityP2, Status: models.StatusOpen, Type: "story", Region: "APAC", LinkKey: "A1002"},
	}
}

func TestUnifyPartitionsIssues(t *testing.T) {
	issues := fixtureIssues()
	res, err := Unify(fixtureAccounts(), issues, Options{LinkMap: map[string]string{"EPIC-7": "A1002"}})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, acc := range res.Accounts {
		for _, is := range acc.Issues {
			seen[is.ID]++
		}
	}
	for _, is := range res.Orphans {
		seen[is.ID]++
	}
	require.Len(t, seen, len(issues))
	for id, n := range seen {
		assert.Equal(t, 1, n, "issue %s placed %d times", id, n)
	}

	require.Len(t, res.Accounts, 4)
	assert.Equal(t, "A1001", res.Accounts[0].ID, "accounts sorted by id")

	acme := res.Accounts[0]
	assert.Len(t, acme.Issues, 3, "native key plus synthetic name match")
	assert.Equal(t, 3, acme.Aggregates.TotalIssues)
	assert.Equal(t, 2, acme.Aggregates.OpenP1)
	assert.Equal(t, 2, acme.Aggregates.OpenIssues)
	assert.Equal(t, 3, acme.Aggregates.ByPriority[models.PriorityP1])
	assert.Equal(t, 1, acme.Aggregates.ByStatus[models.StatusClosed])
	require.NotNil(t, acme.Aggregates.LastIssueDate)
	assert.Equal(t, *date(2025, 2, 1), *acme.Aggregates.LastIssueDate)
	assert.Equal(t, 2, acme.Aggregates.Cube[models.CubeKey{Priority: models.PriorityP1, Status: models.StatusOpen, Type: "bug"}])

	globex := res.Accounts[1]
	require.Len(t, globex.Issues, 2)
	assert.Equal(t, "EMEA", globex.Issues[0].Region, "region inherited from account")
	assert.Equal(t, "APAC", globex.Issues[1].Region, "own region kept")

	orphanIDs := []string{}
	for _, o := range res.Orphans {
		orphanIDs = append(orphanIDs, o.ID)
	}
	assert.ElementsMatch(t, []string{"J-5", "J-6"}, orphanIDs, "ambiguous names and unknown epics orphan")
}

func TestUnifyDuplicateAccountIsConfigurationError(t *testing.T) {
	accounts := append(fixtureAccounts(), models.Account{ID: "A1001", Name: "Again"})
	_, err := Unify(accounts, nil, Options{})
	require.Error(t, err)
	assert.True(t, utils.IsConfiguration(err))
	assert.Contains(t, err.Error(), "A1001")
}

func TestSyntheticKeysAreDeterministic(t *testing.T) {
	first, err := Unify(fixtureAccounts(), fixtureIssues(), Options{})
	require.NoError(t, err)
	second, err := Unify(fixtureAccounts(), fixtureIssues(), Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Orphans, second.Orphans)

	issue := models.Issue{ID: "J-9", AccountHint: "Acme Corp", Summary: "x", Type: "bug"}
	key := SyntheticKey(issue)
	assert.Equal(t, key, SyntheticKey(issue))
	assert.Regexp(t, `^syn:acme-corp:[0-9a-f]{16}$`, key)

	issue.Summary = "y"
	assert.NotEqual(t, key, SyntheticKey(issue))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "acme-corp-inc", Slug("  ACME Corp., Inc. "))
	assert.Equal(t, "", Slug("--"))
}

func TestLoadLinkMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "links.yaml")
	require.NoError(t, os.WriteFile(path, []byte("links:\n  EPIC-1: A1001\n  EPIC-2: ''\n"), 0o600))

	links, err := LoadLinkMap(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"EPIC-1": "A1001"}, links)

	missing, err := LoadLinkMap(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

type fakeSource struct {
	accounts []models.RawRecord
	issues   []models.RawRecord
	err      error
}

func (f *fakeSource) Accounts(context.Context) ([]models.RawRecord, error) {
	return f.accounts, nil
}

func (f *fakeSource) Issues(context.Context) ([]models.RawRecord, error) {
	return f.issues, f.err
}

func TestStoreReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{
		accounts: []models.RawRecord{
			{"AccountID": "A1", "AccountName": "One", "ARR": 10.0},
			{"AccountName": "rejected"},
		},
		issues: []models.RawRecord{
			{"IssueID": "J1", "EpicLink": "A1", "Priority": "High", "Status": "Open"},
			{"IssueID": "J2", "EpicLink": "ZZ"},
		},
	}
	store := NewStore(nil, src, Options{})
	assert.Nil(t, store.Snapshot())

	ds, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, ds, store.Snapshot())
	assert.Len(t, ds.Accounts, 1)
	assert.Len(t, ds.Orphans, 1)
	assert.Len(t, ds.Rejections, 1)
	assert.Equal(t, 2, ds.SourceAccounts)
	assert.Equal(t, 2, ds.IssueCount())

	src.err = errors.New("issues endpoint down")
	_, err = store.Reload(context.Background())
	require.Error(t, err)
	assert.Same(t, ds, store.Snapshot())
}

func TestStoreDuplicateAccountsAbortReload(t *testing.T) {
	src := &fakeSource{accounts: []models.RawRecord{
		{"AccountID": "A1", "AccountName": "One"},
		{"AccountID": "A1", "AccountName": "Two"},
	}}
	store := NewStore(nil, src, Options{})
	_, err := store.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsConfiguration(err))
	assert.Nil(t, store.Snapshot())
}
