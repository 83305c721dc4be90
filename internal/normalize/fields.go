package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/unifyiq/unifyiq/internal/models"
)

// Field aliases are compared after folding case and dropping separators,
// so "AccountID", "account_id" and "Account Id" are the same key.
var (
	accountIDKeys       = []string{"accountid", "id", "sfid", "opportunityaccountid"}
	accountNameKeys     = []string{"accountname", "name", "account", "customer"}
	accountARRKeys      = []string{"arr", "annualrecurringrevenue", "revenue", "amount"}
	accountStageKeys    = []string{"stage", "stagename", "opportunitystage"}
	accountRegionKeys   = []string{"region", "geo", "territory"}
	accountIndustryKeys = []string{"industry", "vertical", "sector"}
	accountOwnerKeys    = []string{"owner", "accountowner", "ownername"}
	accountRenewalKeys  = []string{"renewaldate", "renewal", "contractenddate"}
	accountSinceKeys    = []string{"customersince", "startdate"}

	issueIDKeys       = []string{"issueid", "key", "issuekey", "id"}
	issueLinkKeys     = []string{"epiclink", "epic", "linkkey", "accountid", "parent"}
	issueHintKeys     = []string{"accountname", "account", "customer", "client", "company"}
	issuePriorityKeys = []string{"priority", "severity"}
	issueStatusKeys   = []string{"status", "state", "resolution"}
	issueTypeKeys     = []string{"issuetype", "type", "kind"}
	issueRegionKeys   = []string{"region", "geo"}
	issueSummaryKeys  = []string{"summary", "title", "description"}
	issueCreatedKeys  = []string{"createddate", "created", "createdat"}
	issueDueKeys      = []string{"resolveddate", "duedate", "resolved", "due", "resolutiondate"}
)

func foldKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// record is a raw row indexed by folded field name.
type record map[string]any

func fold(raw models.RawRecord) record {
	out := make(record, len(raw))
	for k, v := range raw {
		fk := foldKey(k)
		if _, taken := out[fk]; taken && isBlank(v) {
			continue
		}
		out[fk] = v
	}
	return out
}

// value returns the first non-blank field among aliases.
func (r record) value(aliases []string) any {
	for _, a := range aliases {
		if v, ok := r[a]; ok && !isBlank(v) {
			return v
		}
	}
	return nil
}

// text returns the first non-blank alias as a trimmed string.
func (r record) text(aliases []string) string {
	return stringify(r.value(aliases))
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(val)
		return s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null")
	case float64:
		return math.IsNaN(val)
	}
	return false
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// number parses ARR-like values such as 120000, "120,000" or "$1.2M".
func number(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		return val, !math.IsNaN(val)
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	s := strings.ToLower(stringify(v))
	s = strings.NewReplacer("$", "", ",", "", "_", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "b"):
		mult, s = 1e9, strings.TrimSuffix(s, "b")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * mult, true
}
