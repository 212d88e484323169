package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fankam/depanneo/store"
)

func (d *DB) CreateProvider(ctx context.Context, create *store.Provider) (*store.Provider, error) {
	categories, err := json.Marshal(create.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}
	coverageZones, err := json.Marshal(create.CoverageZones)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal coverage zones: %w", err)
	}

	stmt := `INSERT INTO provider (name, phone, categories, zone, coverage_zones, rating, avg_response_mins, available)
		VALUES (` + placeholders(8) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.Name, create.Phone, string(categories), create.Zone,
		string(coverageZones), create.Rating, create.AvgResponseMins, create.Available,
	).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return create, nil
}

func (d *DB) ListProviders(ctx context.Context, find *store.FindProvider) ([]*store.Provider, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Available; v != nil {
		where, args = append(where, "available = "+placeholder(len(args)+1)), append(args, *v)
	}

	// Category membership is filtered in Go after the JSON column is decoded;
	// the provider table is small enough that this beats json_each gymnastics.
	query := `
		SELECT
			id, name, phone, categories, zone, coverage_zones,
			rating, avg_response_mins, available, created_ts, updated_ts
		FROM provider
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Provider, 0)
	for rows.Next() {
		var provider store.Provider
		var categories, coverageZones string

		if err := rows.Scan(
			&provider.ID,
			&provider.Name,
			&provider.Phone,
			&categories,
			&provider.Zone,
			&coverageZones,
			&provider.Rating,
			&provider.AvgResponseMins,
			&provider.Available,
			&provider.CreatedTs,
			&provider.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}

		if err := json.Unmarshal([]byte(categories), &provider.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories for provider %d: %w", provider.ID, err)
		}
		if err := json.Unmarshal([]byte(coverageZones), &provider.CoverageZones); err != nil {
			return nil, fmt.Errorf("failed to unmarshal coverage zones for provider %d: %w", provider.ID, err)
		}

		if find.Category != nil && !provider.ServesCategory(*find.Category) {
			continue
		}

		list = append(list, &provider)
		if find.Limit != nil && len(list) >= *find.Limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate providers: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateProvider(ctx context.Context, update *store.UpdateProvider) (*store.Provider, error) {
	set, args := []string{}, []any{}

	if v := update.Available; v != nil {
		set, args = append(set, "available = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Rating; v != nil {
		set, args = append(set, "rating = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.AvgResponseMins; v != nil {
		set, args = append(set, "avg_response_mins = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	set = append(set, "updated_ts = strftime('%s', 'now')")
	args = append(args, update.ID)

	stmt := `UPDATE provider SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, name, phone, categories, zone, coverage_zones,
			rating, avg_response_mins, available, created_ts, updated_ts`

	var provider store.Provider
	var categories, coverageZones string
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&provider.ID,
		&provider.Name,
		&provider.Phone,
		&categories,
		&provider.Zone,
		&coverageZones,
		&provider.Rating,
		&provider.AvgResponseMins,
		&provider.Available,
		&provider.CreatedTs,
		&provider.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to update provider %d: %w", update.ID, err)
	}

	if err := json.Unmarshal([]byte(categories), &provider.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories for provider %d: %w", provider.ID, err)
	}
	if err := json.Unmarshal([]byte(coverageZones), &provider.CoverageZones); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coverage zones for provider %d: %w", provider.ID, err)
	}

	return &provider, nil
}
