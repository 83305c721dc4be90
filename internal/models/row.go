package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Row is a flat result record that remembers field insertion order.
// Rows produced from accounts keep a reference to the account so later
// plan steps can regroup or summarise the same accounts.
type Row struct {
	keys    []string
	values  map[string]any
	account *UnifiedAccount
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]any)}
}

// NewAccountRow returns an empty row bound to acc.
func NewAccountRow(acc *UnifiedAccount) *Row {
	r := NewRow()
	r.account = acc
	return r
}

// Set assigns a field, appending it to the key order on first use.
func (r *Row) Set(key string, value any) *Row {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// Get returns a field value.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Lookup finds a field case-insensitively.
func (r *Row) Lookup(key string) (any, bool) {
	if v, ok := r.values[key]; ok {
		return v, true
	}
	for _, k := range r.keys {
		if strings.EqualFold(k, key) {
			return r.values[k], true
		}
	}
	return nil, false
}

// Keys returns the field names in insertion order.
func (r *Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Account returns the account behind the row, if any.
func (r *Row) Account() *UnifiedAccount {
	return r.account
}

// Map copies the row into a plain map.
func (r *Row) Map() map[string]any {
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = r.values[k]
	}
	return out
}

// MarshalJSON keeps field order stable in encoded output.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table is an ordered sequence of rows.
type Table []*Row

// Accounts returns the distinct accounts behind the rows, in row order.
func (t Table) Accounts() []*UnifiedAccount {
	seen := make(map[string]struct{}, len(t))
	out := make([]*UnifiedAccount, 0, len(t))
	for _, r := range t {
		acc := r.Account()
		if acc == nil {
			continue
		}
		if _, ok := seen[acc.ID]; ok {
			continue
		}
		seen[acc.ID] = struct{}{}
		out = append(out, acc)
	}
	return out
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
