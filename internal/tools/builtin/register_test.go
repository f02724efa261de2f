package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/registry"
)

func TestRegisterAll(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterAll(reg, Deps{Memory: newMemoryService(t), Citations: &memCitations{}}))
	reg.Seal()

	expected := []string{
		"respond", "calculate", "get_weather", "recall_memory", "remember",
		"read_file", "write_file", "list_files", "delete_file", "system_info", "web_search",
	}
	assert.Equal(t, expected, reg.Names())

	// args validate against the registered schemas
	assert.NoError(t, reg.ValidateArgs("calculate", map[string]any{"expression": "2 + 2"}))
	assert.Error(t, reg.ValidateArgs("calculate", map[string]any{}))
	assert.NoError(t, reg.ValidateArgs("system_info", map[string]any{"query": "time_date"}))
	assert.Error(t, reg.ValidateArgs("system_info", map[string]any{"query": "bogus"}))

	// risk tiers drive the wall's confirmation policy
	spec, err := reg.Lookup("write_file")
	require.NoError(t, err)
	assert.Equal(t, models.RiskConfirm, spec.Risk)
	spec, err = reg.Lookup("delete_file")
	require.NoError(t, err)
	assert.Equal(t, models.RiskConfirm, spec.Risk)

	confirmTools := reg.List(registry.Filter{Risk: models.RiskConfirm})
	assert.Len(t, confirmTools, 2)
}
