package variables

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
)

// Collector validates replies against a step's variable mapping and stores them.
type Collector struct {
	logger *slog.Logger
	parsed sync.Map // validation string -> parsedRules
}

type parsedRules struct {
	rules []Rule
	err   error
}

// Option configures the Collector.
type Option func(*Collector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector creates a Collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect validates the trimmed input and, on success, writes it into the
// mapping's target variable. A step without a mapping always succeeds.
// The returned error is a *ValidationError when a rule rejected the input.
func (c *Collector) Collect(step *domain.Step, input string, convCtx *domain.ConversationContext) error {
	if !step.HasVariableMapping() {
		return nil
	}
	mapping := step.Conditions.VariableMapping
	value := strings.TrimSpace(input)

	rules, err := c.rules(mapping.Validation)
	if err != nil {
		c.logger.Warn("invalid validation rules", "step_id", step.ID, "validation", mapping.Validation, "err", err)
		return &ValidationError{Rule: mapping.Validation, Reason: err.Error()}
	}
	if err := Validate(value, rules); err != nil {
		c.logger.Debug("input rejected", "step_id", step.ID, "target", mapping.Target, "err", err)
		return err
	}

	convCtx.SetVariable(mapping.Target, value)
	switch mapping.Target {
	case domain.VarUserName:
		convCtx.UserName = value
	case domain.VarUserType:
		convCtx.UserType = value
	}
	return nil
}

// ValidationMessage returns the guidance shown when Collect rejects a reply.
func (c *Collector) ValidationMessage(step *domain.Step) string {
	if step.HasVariableMapping() && step.Conditions.VariableMapping.Message != "" {
		return step.Conditions.VariableMapping.Message
	}
	return domain.DefaultValidationMessage
}

func (c *Collector) rules(text string) ([]Rule, error) {
	if cached, ok := c.parsed.Load(text); ok {
		p := cached.(parsedRules)
		return p.rules, p.err
	}

	rules, errs := ParseRules(text)
	var malformed []error
	for _, err := range errs {
		if errors.Is(err, ErrUnknownRule) {
			c.logger.Debug("ignoring validation rule", "err", err)
			continue
		}
		malformed = append(malformed, err)
	}
	p := parsedRules{rules: rules, err: errors.Join(malformed...)}
	c.parsed.Store(text, p)
	return p.rules, p.err
}
