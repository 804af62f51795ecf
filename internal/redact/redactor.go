package redact

import "fmt"

// Redactor applies an ordered rule list. It is safe for concurrent use.
type Redactor struct {
	rules []Rule
}

type Option func(*options)

type options struct {
	extra    []Rule
	ruleFile string
}

// WithRules appends rules after the built-in ones.
func WithRules(rules ...Rule) Option {
	return func(o *options) {
		o.extra = append(o.extra, rules...)
	}
}

// WithRuleFile appends the rules found in a YAML file. An empty path is
// ignored.
func WithRuleFile(path string) Option {
	return func(o *options) {
		o.ruleFile = path
	}
}

func New(opts ...Option) (*Redactor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rules := DefaultRules()
	if o.ruleFile != "" {
		fileRules, err := LoadRuleFile(o.ruleFile)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	rules = append(rules, o.extra...)

	for _, r := range rules {
		if r.Pattern == nil {
			return nil, fmt.Errorf("redaction rule %q has no pattern", r.Name)
		}
	}
	return &Redactor{rules: rules}, nil
}

var defaultRedactor = &Redactor{rules: DefaultRules()}

// Redact masks text with the built-in rules.
func Redact(text string) string {
	return defaultRedactor.Redact(text)
}

func (r *Redactor) Redact(text string) string {
	for _, rule := range r.rules {
		text = rule.Pattern.ReplaceAllLiteralString(text, rule.Placeholder)
	}
	return text
}

// RedactWithStats also reports how many replacements each placeholder
// received. Placeholders with no matches are omitted.
func (r *Redactor) RedactWithStats(text string) (string, map[string]int) {
	counts := make(map[string]int)
	for _, rule := range r.rules {
		n := len(rule.Pattern.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		counts[rule.Placeholder] += n
		text = rule.Pattern.ReplaceAllLiteralString(text, rule.Placeholder)
	}
	return text, counts
}

// RedactFragments redacts each fragment independently, preserving order
// and count.
func (r *Redactor) RedactFragments(fragments []string) []string {
	out, _ := r.RedactFragmentsWithStats(fragments)
	return out
}

// RedactFragmentsWithStats is RedactFragments plus the combined counts.
func (r *Redactor) RedactFragmentsWithStats(fragments []string) ([]string, map[string]int) {
	out := make([]string, len(fragments))
	total := make(map[string]int)
	for i, f := range fragments {
		redacted, counts := r.RedactWithStats(f)
		out[i] = redacted
		for k, v := range counts {
			total[k] += v
		}
	}
	return out, total
}

// Rules returns a copy of the active rules in application order.
func (r *Redactor) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}
