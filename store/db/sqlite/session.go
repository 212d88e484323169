package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fankam/depanneo/store"
)

func (d *DB) UpsertSession(ctx context.Context, upsert *store.Session) (*store.Session, error) {
	slots, err := json.Marshal(upsert.Slots)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal slots: %w", err)
	}
	history, err := json.Marshal(upsert.History)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	if upsert.Phase == "" {
		upsert.Phase = store.PhaseGreeting
	}
	if upsert.LastActivityTs == 0 {
		upsert.LastActivityTs = time.Now().Unix()
	}

	stmt := `
		INSERT INTO session (
			user_key, phase, slots, history, turn_count,
			pending_slot, unclear_streak, last_activity_ts
		)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (user_key)
		DO UPDATE SET
			phase = EXCLUDED.phase,
			slots = EXCLUDED.slots,
			history = EXCLUDED.history,
			turn_count = EXCLUDED.turn_count,
			pending_slot = EXCLUDED.pending_slot,
			unclear_streak = EXCLUDED.unclear_streak,
			last_activity_ts = EXCLUDED.last_activity_ts,
			updated_ts = strftime('%s', 'now')
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UserKey, upsert.Phase, string(slots), string(history), upsert.TurnCount,
		upsert.PendingSlot, upsert.UnclearStreak, upsert.LastActivityTs,
	).Scan(&upsert.ID, &upsert.CreatedTs, &upsert.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	return upsert, nil
}

func (d *DB) ListSessions(ctx context.Context, find *store.FindSession) ([]*store.Session, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "session.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserKey; v != nil {
		where, args = append(where, "session.user_key = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.LastActivityBefore; v != nil {
		where, args = append(where, "session.last_activity_ts < "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ExcludePhase; v != nil {
		where, args = append(where, "session.phase != "+placeholder(len(args)+1)), append(args, string(*v))
	}

	query := `
		SELECT
			id, user_key, phase, slots, history, turn_count,
			pending_slot, unclear_streak,
			last_activity_ts, created_ts, updated_ts
		FROM session
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY session.last_activity_ts DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Session, 0)
	for rows.Next() {
		var session store.Session
		var phase, slots, history string

		if err := rows.Scan(
			&session.ID,
			&session.UserKey,
			&phase,
			&slots,
			&history,
			&session.TurnCount,
			&session.PendingSlot,
			&session.UnclearStreak,
			&session.LastActivityTs,
			&session.CreatedTs,
			&session.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		session.Phase = store.ConversationPhase(phase)
		if !session.Phase.IsValid() {
			return nil, fmt.Errorf("%w: unknown phase %q for %s", store.ErrSessionCorrupted, phase, session.UserKey)
		}
		if err := json.Unmarshal([]byte(slots), &session.Slots); err != nil {
			return nil, fmt.Errorf("%w: slots for %s: %v", store.ErrSessionCorrupted, session.UserKey, err)
		}
		if err := json.Unmarshal([]byte(history), &session.History); err != nil {
			return nil, fmt.Errorf("%w: history for %s: %v", store.ErrSessionCorrupted, session.UserKey, err)
		}

		list = append(list, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteSession(ctx context.Context, delete *store.DeleteSession) error {
	stmt := `DELETE FROM session WHERE id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
