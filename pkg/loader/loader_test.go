package loader_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Demo(t *testing.T) {
	store, err := loader.LoadFile("testdata/demo.yaml")
	require.NoError(t, err)
	ctx := context.Background()

	sc, err := store.GetScenario(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Demo assistant", sc.Name)
	assert.True(t, sc.IsDefault)

	start, err := store.GetStartStep(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), start.ID)
	assert.Equal(t, domain.StepMessage, start.Type)

	menu, err := store.GetStep(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, menu.Conditions)
	require.NoError(t, menu.Conditions.ParseErr)
	assert.Equal(t, domain.KindUserChoice, menu.Conditions.Kind)
	require.Len(t, menu.Conditions.Choices, 4)
	assert.Equal(t, "👋", menu.Conditions.Choices[0].Emoji)
	assert.Equal(t, int64(3), *menu.Conditions.Choices[0].NextStep)

	name, err := store.GetStep(ctx, 3)
	require.NoError(t, err)
	require.True(t, name.HasVariableMapping())
	assert.Equal(t, "required|min:2|max:30", name.Conditions.VariableMapping.Validation)

	steps, err := store.GetStepsByScenario(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, steps, 10)
	assert.Equal(t, int64(1), steps[0].ID, "order follows the file")
}

func TestDecode_JSON(t *testing.T) {
	f, err := loader.ReadFile("testdata/broken.json")
	require.NoError(t, err)
	require.Len(t, f.Scenarios, 1)

	sc, steps := f.Scenarios[0].Domain()
	assert.Equal(t, int64(5), sc.ID)
	require.Len(t, steps, 3)
	assert.Equal(t, int64(5), steps[1].ScenarioID)
	assert.Equal(t, domain.InputText, steps[1].InputType)
	require.NotNil(t, steps[1].Conditions)
	assert.Equal(t, int64(99), *steps[1].Conditions.Choices[0].NextStep)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "scenarios:\n  - name: x\n    colour: red\n",
		"missing name":   "scenarios:\n  - id: 1\n",
		"missing stepid": "scenarios:\n  - name: x\n    steps:\n      - content: hi\n",
		"duplicate step": "scenarios:\n  - name: x\n    steps:\n      - id: 1\n      - id: 1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loader.Decode(strings.NewReader(doc), loader.FormatYAML)
			assert.Error(t, err)
		})
	}
}

func TestDecode_EmptyDocument(t *testing.T) {
	f, err := loader.Decode(strings.NewReader(""), loader.FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, f.Scenarios)
}

func TestSeed_AssignsScenarioIDs(t *testing.T) {
	doc := `
scenarios:
  - name: Implicit
    steps:
      - id: 40
        content: only
        start: true
`
	f, err := loader.Decode(strings.NewReader(doc), loader.FormatYAML)
	require.NoError(t, err)

	store := memory.NewScenarioStore()
	require.NoError(t, loader.Seed(context.Background(), store, f))

	step, err := store.GetStep(context.Background(), 40)
	require.NoError(t, err)
	assert.NotZero(t, step.ScenarioID)

	start, err := store.GetStartStep(context.Background(), step.ScenarioID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), start.ID)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, loader.FormatJSON, loader.FormatOf("a/b.JSON"))
	assert.Equal(t, loader.FormatYAML, loader.FormatOf("a/b.yml"))
	assert.Equal(t, loader.FormatYAML, loader.FormatOf("scenarios"))
}
