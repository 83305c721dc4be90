package repo

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/unifyiq/unifyiq/internal/models"
	"github.com/unifyiq/unifyiq/internal/utils"
)

// FileSource reads account and issue exports from disk. Files ending in .csv are
// parsed as CSV with a header row; anything else as JSON.
type FileSource struct {
	accountsPath string
	issuesPath   string
	itemsField   string
}

// NewFileSource constructs a file-backed source.
func NewFileSource(accountsPath, issuesPath string) *FileSource {
	return &FileSource{accountsPath: accountsPath, issuesPath: issuesPath, itemsField: "items"}
}

// Accounts reads the account export.
func (s *FileSource) Accounts(ctx context.Context) ([]models.RawRecord, error) {
	return s.read(ctx, s.accountsPath)
}

// Issues reads the issue export.
func (s *FileSource) Issues(ctx context.Context) ([]models.RawRecord, error) {
	return s.read(ctx, s.issuesPath)
}

func (s *FileSource) read(ctx context.Context, path string) ([]models.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewAppError("repo.file", "open "+path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err := readCSV(f)
		if err != nil {
			return nil, utils.NewAppError("repo.file", path, err)
		}
		return records, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, utils.NewAppError("repo.file", "read "+path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, utils.NewAppError("repo.file", path, fmt.Errorf("not valid JSON"))
	}
	items := gjson.ParseBytes(data)
	if !items.IsArray() {
		items = items.Get(s.itemsField)
	}
	if !items.IsArray() {
		return nil, utils.NewAppError("repo.file", path, fmt.Errorf("expected an array or an %q array", s.itemsField))
	}
	records, err := decodeItems(items)
	if err != nil {
		return nil, utils.NewAppError("repo.file", path, err)
	}
	return records, nil
}

func readCSV(r io.Reader) ([]models.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var out []models.RawRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := make(models.RawRecord, len(header))
		for i, key := range header {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				rec[key] = row[i]
			}
		}
		out = append(out, rec)
	}
}
