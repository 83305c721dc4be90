package planner

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unifyiq/unifyiq/internal/models"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary is the phrase table behind the rule planner.
type Vocabulary struct {
	OutOfScope []string          `yaml:"out_of_scope"`
	Regions    map[string]string `yaml:"regions"`
	Priorities map[string]string `yaml:"priorities"`
	BugsOnly   []string          `yaml:"bugs_only"`
	Summary    []string          `yaml:"summary"`
	Renewals   []string          `yaml:"renewals"`
	Critical   []string          `yaml:"critical"`
	TopRevenue []string          `yaml:"top_revenue"`
	List       []string          `yaml:"list"`
	CSV        []string          `yaml:"csv"`
	Windows    map[string]int    `yaml:"windows"`

	compiled *matchers
}

type matchers struct {
	outOfScope *regexp.Regexp
	regions    *regexp.Regexp
	priorities *regexp.Regexp
	bugsOnly   *regexp.Regexp
	summary    *regexp.Regexp
	renewals   *regexp.Regexp
	critical   *regexp.Regexp
	topRevenue *regexp.Regexp
	list       *regexp.Regexp
	csv        *regexp.Regexp
	windows    *regexp.Regexp
}

// DefaultVocabulary returns the built-in phrase table.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file. An empty or missing path yields the built-in table.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultVocabulary(), nil
		}
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes and compiles a YAML phrase table.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	v.Regions = foldKeys(v.Regions)
	v.Priorities = foldKeys(v.Priorities)
	v.Windows = foldKeys(v.Windows)
	for phrase, p := range v.Priorities {
		if _, ok := models.ParsePriority(p); !ok {
			return nil, fmt.Errorf("vocabulary: priority %q maps to unknown level %q", phrase, p)
		}
	}
	for phrase, days := range v.Windows {
		if days <= 0 {
			return nil, fmt.Errorf("vocabulary: window %q must be positive", phrase)
		}
	}
	v.compiled = &matchers{
		outOfScope: phraseRegexp(v.OutOfScope),
		regions:    phraseRegexp(keys(v.Regions)),
		priorities: phraseRegexp(keys(v.Priorities)),
		bugsOnly:   phraseRegexp(v.BugsOnly),
		summary:    phraseRegexp(v.Summary),
		renewals:   phraseRegexp(v.Renewals),
		critical:   phraseRegexp(v.Critical),
		topRevenue: phraseRegexp(v.TopRevenue),
		list:       phraseRegexp(v.List),
		csv:        phraseRegexp(v.CSV),
		windows:    phraseRegexp(keys(v.Windows)),
	}
	return &v, nil
}

// OutOfScopeTerm returns the first out-of-scope phrase in text, if any.
func (v *Vocabulary) OutOfScopeTerm(text string) string {
	return find(v.compiled.outOfScope, strings.ToLower(text))
}

// Region returns the canonical region named in text.
func (v *Vocabulary) Region(text string) string {
	if m := find(v.compiled.regions, text); m != "" {
		return v.Regions[m]
	}
	return ""
}

// Priority returns the first priority named in text.
func (v *Vocabulary) Priority(text string) models.Priority {
	if m := find(v.compiled.priorities, text); m != "" {
		p, _ := models.ParsePriority(v.Priorities[m])
		return p
	}
	return ""
}

// Window returns the day count of a relative window phrase in text.
func (v *Vocabulary) Window(text string) int {
	if m := find(v.compiled.windows, text); m != "" {
		return v.Windows[m]
	}
	return 0
}

func foldKeys[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, val := range m {
		out[strings.ToLower(strings.Join(strings.Fields(k), " "))] = val
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// phraseRegexp builds one alternation, longest phrases first so "north america" beats "na".
func phraseRegexp(phrases []string) *regexp.Regexp {
	cleaned := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.Join(strings.Fields(p), " "))
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	sort.Slice(cleaned, func(i, j int) bool {
		if len(cleaned[i]) != len(cleaned[j]) {
			return len(cleaned[i]) > len(cleaned[j])
		}
		return cleaned[i] < cleaned[j]
	})
	quoted := make([]string, len(cleaned))
	for i, p := range cleaned {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `\s+`)
	}
	return regexp.MustCompile(`(?:^|[^a-z0-9])(` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9])`)
}

func find(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), " ")
}

func matches(re *regexp.Regexp, text string) bool {
	return find(re, text) != ""
}
