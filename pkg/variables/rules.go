package variables

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// RuleKind names a validation rule.
type RuleKind string

const (
	RuleRequired RuleKind = "required"
	RuleMin      RuleKind = "min"
	RuleMax      RuleKind = "max"
	RuleRegex    RuleKind = "regex"
)

// Rule is one parsed entry of a pipe-delimited validation string.
type Rule struct {
	Kind    RuleKind
	Length  int
	Pattern *regexp.Regexp
	Source  string
}

// ErrUnknownRule marks a rule name the collector does not understand.
var ErrUnknownRule = errors.New("unknown validation rule")

// ValidationError reports the first rule that rejected an input.
type ValidationError struct {
	Rule   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rule %q failed: %s", e.Rule, e.Reason)
}

// ParseRules parses "required|min:2|regex:^[a-z]+$". A regex pattern may itself
// contain '|': everything after "regex:" up to the end of the string is the
// pattern when no further known rule follows.
func ParseRules(text string) ([]Rule, []error) {
	var rules []Rule
	var errs []error
	for _, part := range splitRules(text) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, ":")
		switch RuleKind(strings.TrimSpace(name)) {
		case RuleRequired:
			rules = append(rules, Rule{Kind: RuleRequired, Source: part})
		case RuleMin, RuleMax:
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || n < 0 {
				errs = append(errs, fmt.Errorf("rule %q: invalid length", part))
				continue
			}
			rules = append(rules, Rule{Kind: RuleKind(strings.TrimSpace(name)), Length: n, Source: part})
		case RuleRegex:
			re, err := regexp.Compile(`^(?:` + arg + `)$`)
			if err != nil {
				errs = append(errs, fmt.Errorf("rule %q: %w", part, err))
				continue
			}
			rules = append(rules, Rule{Kind: RuleRegex, Pattern: re, Source: part})
		default:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownRule, part))
		}
	}
	return rules, errs
}

// splitRules splits on '|' but keeps a regex argument whole.
func splitRules(text string) []string {
	var parts []string
	rest := text
	for rest != "" {
		if strings.HasPrefix(strings.TrimSpace(rest), string(RuleRegex)+":") {
			// The pattern runs until the next "|<known rule>" boundary.
			cut := len(rest)
			for _, k := range []RuleKind{RuleRequired, RuleMin, RuleMax, RuleRegex} {
				marker := "|" + string(k)
				if i := strings.Index(rest, marker); i >= 0 && i < cut && boundaryAt(rest, i+len(marker)) {
					cut = i
				}
			}
			parts = append(parts, rest[:cut])
			rest = strings.TrimPrefix(rest[cut:], "|")
			continue
		}
		head, tail, found := strings.Cut(rest, "|")
		parts = append(parts, head)
		if !found {
			break
		}
		rest = tail
	}
	return parts
}

func boundaryAt(s string, i int) bool {
	return i >= len(s) || s[i] == ':' || s[i] == '|'
}

// Validate checks input against rules in order; the first failure wins.
func Validate(input string, rules []Rule) error {
	length := utf8.RuneCountInString(input)
	for _, r := range rules {
		switch r.Kind {
		case RuleRequired:
			if input == "" {
				return &ValidationError{Rule: r.Source, Reason: "value is required"}
			}
		case RuleMin:
			if length < r.Length {
				return &ValidationError{Rule: r.Source, Reason: fmt.Sprintf("length %d is below %d", length, r.Length)}
			}
		case RuleMax:
			if length > r.Length {
				return &ValidationError{Rule: r.Source, Reason: fmt.Sprintf("length %d is above %d", length, r.Length)}
			}
		case RuleRegex:
			if !r.Pattern.MatchString(input) {
				return &ValidationError{Rule: r.Source, Reason: "value does not match pattern"}
			}
		}
	}
	return nil
}
