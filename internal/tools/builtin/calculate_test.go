package builtin

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

func TestEvaluateExpression(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 2", 4},
		{"25 * 47 + 183", 1358},
		{"183 + 25 * 47", 1358},
		{"10 - 4 - 3", 3},
		{"100 / 4 / 5", 5},
		{"2 ^ 3 ^ 2", 512},
		{"(2 + 3) * 4", 20},
		{"-5 + 3", -2},
		{"2 * -3", -6},
		{"sqrt(16)", 4},
		{"abs(-7.5)", 7.5},
		{"ceil(1.2)", 2},
		{"floor(1.8)", 1},
		{"log(1000)", 3},
		{"ln(1)", 0},
		{"sqrt(9) + floor(2.9)", 5},
		{"3 × 4", 12},
		{"12 ÷ 4", 3},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evaluateExpression(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateExpressionErrors(t *testing.T) {
	for _, expr := range []string{
		"1 / 0",
		"2 +",
		"(1 + 2",
		"nonsense(3)",
		"hello",
		"",
	} {
		_, err := evaluateExpression(expr)
		assert.Error(t, err, "expr=%q", expr)
	}
}

func TestEvaluateTrig(t *testing.T) {
	got, err := evaluateExpression("sin(0) + cos(0)")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	got, err = evaluateExpression("tan(0)")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestCalculateHandler(t *testing.T) {
	tc := ports.NewToolContext("trn_1", "u1", t.TempDir(), t.TempDir(), 1<<20, models.CapabilitiesFor(models.SideEffectReadOnly))

	result, err := Calculate(context.Background(), map[string]any{"expression": "25 * 47 + 183"}, tc)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.InDelta(t, 1358, result.Value.(float64), 1e-9)
	assert.Contains(t, result.Output, "1358")

	result, err = Calculate(context.Background(), map[string]any{"expression": "1 / 0"}, tc)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMsg, "division by zero")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1358", formatNumber(1358))
	assert.Equal(t, "2.5", formatNumber(2.5))
	assert.Equal(t, "4", formatNumber(math.Sqrt(16)))
}
