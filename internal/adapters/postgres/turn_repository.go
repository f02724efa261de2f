package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/cogito/internal/domain/models"
)

// TurnRepository persists completed turns for audit and replay. The stage
// outcomes are stored as JSONB so the full pipeline trace survives.
type TurnRepository struct {
	pool *pgxpool.Pool
}

func NewTurnRepository(pool *pgxpool.Pool) *TurnRepository {
	return &TurnRepository{pool: pool}
}

func (r *TurnRepository) Save(ctx context.Context, turn *models.Turn) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	plan, err := marshalOptional(turn.Plan)
	if err != nil {
		return err
	}
	wall, err := marshalOptional(turn.Wall)
	if err != nil {
		return err
	}
	result, err := marshalOptional(turn.Result)
	if err != nil {
		return err
	}
	verdict, err := marshalOptional(turn.Verdict)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cogito_turns (
			id, user_id, utterance, reply, success,
			plan, wall, result, verdict, created_at, committed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err = conn(ctx, r.pool).Exec(ctx, query,
		turn.ID,
		turn.UserID,
		turn.Utterance,
		turn.Reply,
		turn.Success,
		plan,
		wall,
		result,
		verdict,
		turn.Timestamp,
		turn.CommittedAt,
	)
	return err
}

func (r *TurnRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Turn, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, utterance, reply, success,
		       plan, wall, result, verdict, created_at, committed_at
		FROM cogito_turns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := conn(ctx, r.pool).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*models.Turn
	for rows.Next() {
		var t models.Turn
		var plan, wall, result, verdict []byte
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Utterance,
			&t.Reply,
			&t.Success,
			&plan,
			&wall,
			&result,
			&verdict,
			&t.Timestamp,
			&t.CommittedAt,
		)
		if err != nil {
			return nil, err
		}
		if t.Plan, err = unmarshalOptional[models.ActionPlan](plan); err != nil {
			return nil, err
		}
		if t.Wall, err = unmarshalOptional[models.WallVerdict](wall); err != nil {
			return nil, err
		}
		if t.Result, err = unmarshalOptional[models.ExecutionResult](result); err != nil {
			return nil, err
		}
		if t.Verdict, err = unmarshalOptional[models.Verdict](verdict); err != nil {
			return nil, err
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
