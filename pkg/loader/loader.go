// Package loader reads scenario definition files (YAML or JSON) and seeds
// them into a scenario store.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Format selects the decoder of a definition file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the top-level structure of a scenario definition file.
type File struct {
	Scenarios []ScenarioDef `yaml:"scenarios" json:"scenarios"`
}

// ScenarioDef describes one scenario and its steps.
type ScenarioDef struct {
	ID          int64     `yaml:"id" json:"id"`
	BotID       int64     `yaml:"bot_id" json:"bot_id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	StartStep   *int64    `yaml:"start_step" json:"start_step"`
	IsDefault   bool      `yaml:"default" json:"default"`
	Steps       []StepDef `yaml:"steps" json:"steps"`
}

// StepDef describes one step. Conditions is kept as authored and parsed by the domain.
type StepDef struct {
	ID         int64          `yaml:"id" json:"id"`
	Type       string         `yaml:"type" json:"type"`
	Content    string         `yaml:"content" json:"content"`
	InputType  string         `yaml:"input_type" json:"input_type"`
	Next       *int64         `yaml:"next" json:"next"`
	Start      bool           `yaml:"start" json:"start"`
	Order      *int           `yaml:"order" json:"order"`
	Conditions map[string]any `yaml:"conditions" json:"conditions"`
}

// FormatOf guesses the format from a file extension. Anything but .json is YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode reads a definition document in the given format.
func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse scenarios json: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse scenarios yaml: %w", err)
		}
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ReadFile decodes the definition file at path.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios file: %w", err)
	}
	defer fh.Close()
	return Decode(fh, FormatOf(path))
}

// LoadFile reads the definition file at path into a fresh in-memory store.
func LoadFile(path string) (*memory.ScenarioStore, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	store := memory.NewScenarioStore()
	if err := Seed(context.Background(), store, f); err != nil {
		return nil, err
	}
	return store, nil
}

// check rejects documents the stores could not hold consistently.
func (f *File) check() error {
	scenarioIDs := make(map[int64]bool)
	stepIDs := make(map[int64]bool)
	for i, sc := range f.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario #%d: name is required", i+1)
		}
		if sc.ID != 0 {
			if scenarioIDs[sc.ID] {
				return fmt.Errorf("scenario %d: duplicate id", sc.ID)
			}
			scenarioIDs[sc.ID] = true
		}
		for j, st := range sc.Steps {
			if st.ID == 0 {
				return fmt.Errorf("scenario %q step #%d: id is required", sc.Name, j+1)
			}
			if stepIDs[st.ID] {
				return fmt.Errorf("step %d: duplicate id", st.ID)
			}
			stepIDs[st.ID] = true
		}
	}
	return nil
}

// Domain converts the definitions into domain values. Step ScenarioIDs are
// filled in only for scenarios with an explicit id.
func (sc ScenarioDef) Domain() (domain.Scenario, []domain.Step) {
	scenario := domain.Scenario{
		ID:          sc.ID,
		BotID:       sc.BotID,
		Name:        sc.Name,
		Description: sc.Description,
		StartStepID: sc.StartStep,
		IsDefault:   sc.IsDefault,
	}
	steps := make([]domain.Step, 0, len(sc.Steps))
	for i, def := range sc.Steps {
		step := domain.Step{
			ID:         def.ID,
			ScenarioID: sc.ID,
			Type:       domain.StepType(def.Type),
			Content:    def.Content,
			InputType:  domain.InputType(def.InputType),
			Conditions: domain.ParseConditions(normalize(def.Conditions)),
			NextStepID: def.Next,
			IsStart:    def.Start,
			OrderIndex: i + 1,
		}
		if def.Order != nil {
			step.OrderIndex = *def.Order
		}
		if step.Type == "" {
			step.Type = domain.StepMessage
		}
		if step.InputType == "" {
			step.InputType = domain.InputText
		}
		steps = append(steps, step)
	}
	return scenario, steps
}

// Seed writes every scenario of f, then its steps, into store.
func Seed(ctx context.Context, store ports.ScenarioWriter, f *File) error {
	for _, def := range f.Scenarios {
		scenario, steps := def.Domain()
		if err := store.CreateScenario(ctx, &scenario); err != nil {
			return fmt.Errorf("failed to create scenario %q: %w", def.Name, err)
		}
		for i := range steps {
			steps[i].ScenarioID = scenario.ID
			if err := store.CreateStep(ctx, &steps[i]); err != nil {
				return fmt.Errorf("failed to create step %d: %w", steps[i].ID, err)
			}
		}
	}
	return nil
}

// normalize turns the map[any]any nodes some YAML documents produce into
// map[string]any, recursively, so the payload survives JSON persistence.
func normalize(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
