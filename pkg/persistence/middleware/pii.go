package middleware

import (
	"fmt"
	"regexp"

	"github.com/aretw0/parley/pkg/domain"
)

// Mask replaces redacted values.
const Mask = "***"

// Redactor masks session variables whose names match any of its patterns.
// It works on copies: the engine keeps reading the real values.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the variable name patterns.
func NewRedactor(patterns ...string) (*Redactor, error) {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Redact returns a copy of convCtx with sensitive variables masked.
func (r *Redactor) Redact(convCtx *domain.ConversationContext) *domain.ConversationContext {
	out := convCtx.Clone()
	if out == nil || r == nil || len(r.patterns) == 0 {
		return out
	}
	for k, v := range out.Variables {
		out.Variables[k] = r.mask(k, v)
	}
	if r.matches(domain.VarUserName) && out.UserName != "" {
		out.UserName = Mask
	}
	return out
}

func (r *Redactor) mask(key string, v any) any {
	if r.matches(key) {
		return Mask
	}
	if sub, ok := v.(map[string]any); ok {
		copied := make(map[string]any, len(sub))
		for k, val := range sub {
			copied[k] = r.mask(k, val)
		}
		return copied
	}
	return v
}

func (r *Redactor) matches(key string) bool {
	for _, p := range r.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
