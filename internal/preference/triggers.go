package preference

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed triggers.yaml
var defaultTriggersYAML []byte

// Triggers maps each category to the keywords that make it relevant.
type Triggers map[Category][]string

type triggerFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// DefaultTriggers returns the built-in keyword table.
func DefaultTriggers() Triggers {
	t, err := ParseTriggers(strings.NewReader(string(defaultTriggersYAML)))
	if err != nil {
		panic(fmt.Sprintf("embedded triggers.yaml is invalid: %v", err))
	}
	return t
}

// ParseTriggers decodes a YAML trigger table. Unknown categories are rejected.
func ParseTriggers(r io.Reader) (Triggers, error) {
	var f triggerFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding triggers: %w", err)
	}
	t := make(Triggers, len(f.Categories))
	for name, words := range f.Categories {
		c := Category(name)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q in triggers", name)
		}
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				t[c] = append(t[c], w)
			}
		}
	}
	return t, nil
}

// LoadTriggersFile reads a trigger table from path. Categories missing from
// the file keep their built-in keywords.
func LoadTriggersFile(path string) (Triggers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening triggers file: %w", err)
	}
	defer f.Close()

	override, err := ParseTriggers(f)
	if err != nil {
		return nil, err
	}
	t := DefaultTriggers()
	for c, words := range override {
		t[c] = words
	}
	return t, nil
}

// Match returns the categories whose keywords occur in any of texts, in
// canonical category order.
func (t Triggers) Match(texts []string) []Category {
	var out []Category
	for _, c := range Categories {
		if t.matchesAny(c, texts) {
			out = append(out, c)
		}
	}
	return out
}

func (t Triggers) matchesAny(c Category, texts []string) bool {
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, w := range t[c] {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}
