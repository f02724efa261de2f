package postgres

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/longregen/cogito/internal/domain/models"
)

func TestTurnRepository_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewTurnRepository(nil)

	turn := models.NewTurn("trn_1", "u1", "Calculate 2 + 2")
	turn.Plan = models.NewActionPlan("pln_1", "calculate", map[string]any{"expression": "2 + 2"})
	turn.Reply = "2 + 2 = 4"
	turn.Success = true
	turn.CommittedAt = time.Now()

	mock.ExpectExec("INSERT INTO cogito_turns").
		WithArgs(turn.ID, turn.UserID, turn.Utterance, turn.Reply, turn.Success,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			turn.Timestamp, turn.CommittedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Save(ctx, turn); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTurnRepository_Save_NilStages(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewTurnRepository(nil)

	// rejected turns carry no result or verdict
	turn := models.NewTurn("trn_2", "u1", "Delete the file /etc/passwd")
	turn.Reply = "I can't do that."

	mock.ExpectExec("INSERT INTO cogito_turns").
		WithArgs(turn.ID, turn.UserID, turn.Utterance, turn.Reply, turn.Success,
			[]byte(nil), []byte(nil), []byte(nil), []byte(nil),
			turn.Timestamp, turn.CommittedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Save(ctx, turn); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTurnRepository_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := NewTurnRepository(nil)
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "utterance", "reply", "success",
		"plan", "wall", "result", "verdict", "created_at", "committed_at",
	}).
		AddRow("trn_2", "u1", "What time is it?", "It is noon.", true,
			[]byte(`{"id":"pln_2","tool_name":"system_info","args":{"query":"time_date"}}`),
			[]byte(nil), []byte(nil), []byte(nil), now, now).
		AddRow("trn_1", "u1", "Calculate 2 + 2", "2 + 2 = 4", true,
			[]byte(`{"id":"pln_1","tool_name":"calculate","args":{"expression":"2 + 2"}}`),
			[]byte(nil),
			[]byte(`{"success":true,"output":"2 + 2 = 4","side_effects":{},"duration":1000000}`),
			[]byte(nil), now.Add(-time.Minute), now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM cogito_turns").
		WithArgs("u1", 50).
		WillReturnRows(rows)

	ctx := setupMockContext(mock)
	turns, err := repo.ListByUser(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].ID != "trn_2" {
		t.Errorf("expected newest first, got %s", turns[0].ID)
	}
	if turns[0].Plan == nil || turns[0].Plan.ToolName != "system_info" {
		t.Errorf("plan not decoded: %+v", turns[0].Plan)
	}
	if turns[1].Result == nil || turns[1].Result.Output != "2 + 2 = 4" {
		t.Errorf("result not decoded: %+v", turns[1].Result)
	}
	if turns[0].Result != nil {
		t.Errorf("expected nil result for turn without execution")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
