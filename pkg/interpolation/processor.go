// Package interpolation renders ${name} placeholders in step content.
package interpolation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
)

// Derived system variable names.
const (
	SysToday     = "today"
	SysNow       = "now"
	SysHour      = "hour"
	SysDayOfWeek = "dayOfWeek"
)

// DefaultValues is the static fallback table consulted before giving up on a name.
var DefaultValues = map[string]string{
	domain.VarUserName: "guest",
	domain.VarUserType: "basic",
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Processor replaces ${name} placeholders. Names resolve, in order, from the
// session variables, the stored system variables, the derived system variables
// (today, now, hour, dayOfWeek, userName, userType, sessionId) and the default
// table. Anything left unresolved renders as {name}.
type Processor struct {
	logger   *slog.Logger
	now      func() time.Time
	defaults map[string]string
}

// Option configures the Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithClock overrides the clock used for date and time variables.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// WithDefaults replaces the static default table.
func WithDefaults(defaults map[string]string) Option {
	return func(p *Processor) {
		p.defaults = defaults
	}
}

// NewProcessor creates a Processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		logger:   logging.NewNop(),
		now:      time.Now,
		defaults: DefaultValues,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process renders template against convCtx. It never panics; on an internal
// failure the template is returned unchanged.
func (p *Processor) Process(template string, convCtx *domain.ConversationContext) (out string) {
	if strings.TrimSpace(template) == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("template rendering failed", "err", fmt.Errorf("%v", r))
			out = template
		}
	}()

	derived := p.systemVariables(convCtx)
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-1])
		if v, ok := p.resolve(name, convCtx, derived); ok {
			return v
		}
		return "{" + name + "}"
	})
}

func (p *Processor) resolve(name string, convCtx *domain.ConversationContext, derived map[string]any) (string, bool) {
	if convCtx != nil {
		if v, ok := convCtx.Variables[name]; ok && v != nil {
			return fmt.Sprint(v), true
		}
		if v, ok := convCtx.SystemVariables[name]; ok && v != nil {
			return fmt.Sprint(v), true
		}
	}
	if v, ok := derived[name]; ok {
		return fmt.Sprint(v), true
	}
	if v, ok := p.defaults[name]; ok {
		return v, true
	}
	return "", false
}

// systemVariables computes the derived namespace for one call.
func (p *Processor) systemVariables(convCtx *domain.ConversationContext) map[string]any {
	now := p.now()
	vars := map[string]any{
		SysToday:     now.Format("2006-01-02"),
		SysNow:       now.Format("15:04"),
		SysHour:      now.Hour(),
		SysDayOfWeek: now.Weekday().String(),
	}
	if convCtx == nil {
		return vars
	}
	if convCtx.UserName != "" {
		vars[domain.VarUserName] = convCtx.UserName
	}
	if convCtx.UserType != "" {
		vars[domain.VarUserType] = convCtx.UserType
	}
	if convCtx.SessionID != "" {
		vars[domain.VarSessionID] = convCtx.SessionID
	}
	return vars
}
