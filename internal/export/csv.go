// Package export serialises result tables.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/unifyiq/unifyiq/internal/models"
)

// ContentTypeCSV is reported alongside CSV payloads.
const ContentTypeCSV = "text/csv"

// Header returns the union of row fields in order of first appearance.
func Header(rows models.Table) []string {
	seen := map[string]struct{}{}
	var header []string
	for _, r := range rows {
		for _, k := range r.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			header = append(header, k)
		}
	}
	return header
}

// WriteCSV writes rows with a header line. Fields a row lacks are left empty.
func WriteCSV(w io.Writer, rows models.Table) error {
	header := Header(rows)
	cw := csv.NewWriter(w)
	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	record := make([]string, len(header))
	for i, r := range rows {
		for j, k := range header {
			v, _ := r.Get(k)
			record[j] = Cell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders rows as a CSV document.
func CSV(rows models.Table) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Cell formats one value for text output.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}
