package graph

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/parley/pkg/domain"
)

// Overlay marks conversation progress on the diagram.
type Overlay struct {
	VisitedSteps []int64
	CurrentStep  int64
}

// OverlayFrom builds an overlay out of a session's context.
func OverlayFrom(c *domain.ConversationContext) *Overlay {
	if c == nil {
		return nil
	}
	return &Overlay{VisitedSteps: c.VisitedSteps, CurrentStep: c.CurrentStepID}
}

const labelWidth = 32

// GenerateMermaid renders a scenario's steps as a Mermaid flowchart.
// Shapes:
// - Start step: ((Circle))
// - Variable collection: [/Parallelogram/]
// - Rule branching (conditional, time_based): {Rhombus}
// - Anything else: [Rectangle]
func GenerateMermaid(steps []domain.Step, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i := range steps {
		step := &steps[i]
		id := nodeID(step.ID)

		opener, closer := "[", "]"
		switch {
		case step.IsStart:
			opener, closer = "((", "))"
		case step.HasVariableMapping():
			opener, closer = "[/", "/]"
		case step.Conditions != nil && len(step.Conditions.Rules) > 0:
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%d: %s\"%s\n", id, opener, step.ID, summary(step.Content), closer)

		writeEdges(&sb, step)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Conversation overlay\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[int64]bool)
		for _, stepID := range overlay.VisitedSteps {
			if seen[stepID] || stepID == overlay.CurrentStep {
				continue
			}
			seen[stepID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(stepID))
		}
		if overlay.CurrentStep != 0 {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.CurrentStep))
		}
	}

	return sb.String()
}

func writeEdges(sb *strings.Builder, step *domain.Step) {
	from := nodeID(step.ID)
	if step.NextStepID != nil {
		fmt.Fprintf(sb, "    %s --> %s\n", from, nodeID(*step.NextStepID))
	}

	c := step.Conditions
	if c == nil {
		return
	}
	for _, choice := range c.Choices {
		if choice.NextStep == nil {
			continue
		}
		label := choice.Value
		if choice.Label != "" {
			label += ". " + choice.Label
		}
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, escape(label), nodeID(*choice.NextStep))
	}
	for _, rule := range c.Rules {
		if rule.NextStep == nil {
			continue
		}
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, escape(rule.Condition), nodeID(*rule.NextStep))
	}
	if c.DefaultStep != nil {
		fmt.Fprintf(sb, "    %s -. \"default\" .-> %s\n", from, nodeID(*c.DefaultStep))
	}
}

func nodeID(id int64) string {
	if id < 0 {
		return fmt.Sprintf("step_m%d", -id)
	}
	return fmt.Sprintf("step_%d", id)
}

// summary keeps the first line of content, shortened to labelWidth runes.
func summary(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	line = strings.NewReplacer("*", "", "`", "").Replace(line)
	if utf8.RuneCountInString(line) > labelWidth {
		line = string([]rune(line)[:labelWidth-1]) + "…"
	}
	return escape(line)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
