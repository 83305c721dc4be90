package export

import (
	"testing"

	"github.com/unifyiq/unifyiq/internal/models"
)

func TestCSVHeaderUnionAndMissingCells(t *testing.T) {
	rows := models.Table{
		models.NewRow().Set("AccountID", "A1").Set("ARR", 300000.0),
		models.NewRow().Set("AccountID", "A2").Set("Region", "EMEA, North"),
		models.NewRow().Set("ARR", 1.5).Set("AccountID", "A3").Set("OpenIssues", 2),
	}
	got, err := CSV(rows)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	want := "AccountID,ARR,Region,OpenIssues\n" +
		"A1,300000,,\n" +
		"A2,,\"EMEA, North\",\n" +
		"A3,1.5,,2\n"
	if got != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", got, want)
	}
}

func TestCSVEmpty(t *testing.T) {
	got, err := CSV(nil)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty document, got %q", got)
	}
}
