package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fankam/depanneo/store"
)

const serviceRequestFields = `
	id, uid, user_key, category, location, description, urgency,
	status, assigned_provider_id, created_ts, updated_ts`

func (d *DB) CreateServiceRequestIfNoneOpen(ctx context.Context, create *store.ServiceRequest) (*store.ServiceRequest, bool, error) {
	// The existence check and the insert run in one transaction so a retried
	// webhook delivery cannot race a second open request into existence.
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT` + serviceRequestFields + `
		FROM service_request
		WHERE user_key = ? AND status NOT IN ('COMPLETED', 'CANCELLED')
		ORDER BY created_ts DESC LIMIT 1`

	existing, err := scanServiceRequest(tx.QueryRowContext(ctx, query, create.UserKey))
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to check open request: %w", err)
	}
	if existing != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return existing, false, nil
	}

	if create.Status == "" {
		create.Status = store.RequestStatusPending
	}

	stmt := `INSERT INTO service_request (uid, user_key, category, location, description, urgency, status)
		VALUES (` + placeholders(7) + `)
		RETURNING id, created_ts, updated_ts`

	if err := tx.QueryRowContext(ctx, stmt,
		create.UID, create.UserKey, create.Category, create.Location,
		create.Description, create.Urgency, create.Status,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, false, fmt.Errorf("failed to create service request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return create, true, nil
}

func (d *DB) ListServiceRequests(ctx context.Context, find *store.FindServiceRequest) ([]*store.ServiceRequest, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserKey; v != nil {
		where, args = append(where, "user_key = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if find.OpenOnly {
		where = append(where, "status NOT IN ('COMPLETED', 'CANCELLED')")
	}

	query := `SELECT` + serviceRequestFields + `
		FROM service_request
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service requests: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ServiceRequest, 0)
	for rows.Next() {
		request, err := scanServiceRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service request: %w", err)
		}
		list = append(list, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service requests: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateServiceRequest(ctx context.Context, update *store.UpdateServiceRequest) (*store.ServiceRequest, error) {
	set, args := []string{}, []any{}

	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.AssignedProviderID; v != nil {
		set, args = append(set, "assigned_provider_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Location; v != nil {
		set, args = append(set, "location = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Urgency; v != nil {
		set, args = append(set, "urgency = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	set = append(set, "updated_ts = strftime('%s', 'now')")
	args = append(args, update.ID)

	// Terminal requests are immutable.
	stmt := `UPDATE service_request SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + ` AND status NOT IN ('COMPLETED', 'CANCELLED')
		RETURNING` + serviceRequestFields

	request, err := scanServiceRequest(d.db.QueryRowContext(ctx, stmt, args...))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("service request %d not found or terminal", update.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update service request: %w", err)
	}
	return request, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServiceRequest(row rowScanner) (*store.ServiceRequest, error) {
	var request store.ServiceRequest
	var status string
	var assignedProviderID sql.NullInt32

	if err := row.Scan(
		&request.ID,
		&request.UID,
		&request.UserKey,
		&request.Category,
		&request.Location,
		&request.Description,
		&request.Urgency,
		&status,
		&assignedProviderID,
		&request.CreatedTs,
		&request.UpdatedTs,
	); err != nil {
		return nil, err
	}

	request.Status = store.RequestStatus(status)
	if assignedProviderID.Valid {
		request.AssignedProviderID = &assignedProviderID.Int32
	}
	return &request, nil
}
