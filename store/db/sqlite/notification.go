package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/fankam/depanneo/store"
)

func (d *DB) CreateNotificationAttempt(ctx context.Context, create *store.NotificationAttempt) (*store.NotificationAttempt, error) {
	if create.Status == "" {
		create.Status = store.AttemptStatusPending
	}

	stmt := `INSERT INTO notification_attempt (request_id, target, channel, status, retry_count, next_retry_ts, last_error)
		VALUES (` + placeholders(7) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.RequestID, create.Target, create.Channel, create.Status,
		create.RetryCount, create.NextRetryTs, create.LastError,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to create notification attempt: %w", err)
	}

	return create, nil
}

func (d *DB) ListNotificationAttempts(ctx context.Context, find *store.FindNotificationAttempt) ([]*store.NotificationAttempt, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RequestID; v != nil {
		where, args = append(where, "request_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "next_retry_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, request_id, target, channel, status,
			retry_count, next_retry_ts, last_error, created_ts, updated_ts
		FROM notification_attempt
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY next_retry_ts ASC, id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification attempts: %w", err)
	}
	defer rows.Close()

	list := make([]*store.NotificationAttempt, 0)
	for rows.Next() {
		var attempt store.NotificationAttempt
		var status string

		if err := rows.Scan(
			&attempt.ID,
			&attempt.RequestID,
			&attempt.Target,
			&attempt.Channel,
			&status,
			&attempt.RetryCount,
			&attempt.NextRetryTs,
			&attempt.LastError,
			&attempt.CreatedTs,
			&attempt.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification attempt: %w", err)
		}

		attempt.Status = store.AttemptStatus(status)
		list = append(list, &attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification attempts: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateNotificationAttempt(ctx context.Context, update *store.UpdateNotificationAttempt) (*store.NotificationAttempt, error) {
	set, args := []string{}, []any{}

	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.RetryCount; v != nil {
		set, args = append(set, "retry_count = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.NextRetryTs; v != nil {
		set, args = append(set, "next_retry_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.LastError; v != nil {
		set, args = append(set, "last_error = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	set = append(set, "updated_ts = strftime('%s', 'now')")
	args = append(args, update.ID)

	stmt := `UPDATE notification_attempt SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, request_id, target, channel, status,
			retry_count, next_retry_ts, last_error, created_ts, updated_ts`

	var attempt store.NotificationAttempt
	var status string
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&attempt.ID,
		&attempt.RequestID,
		&attempt.Target,
		&attempt.Channel,
		&status,
		&attempt.RetryCount,
		&attempt.NextRetryTs,
		&attempt.LastError,
		&attempt.CreatedTs,
		&attempt.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to update notification attempt %d: %w", update.ID, err)
	}

	attempt.Status = store.AttemptStatus(status)
	return &attempt, nil
}
