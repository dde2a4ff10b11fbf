// internal/provider/data/postgres.go
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/provider"
)

const postgresProviderName = "postgres"

var errUnknownQueryType = errors.New("unknown query type")

// queryFunc returns: data, rowCount, error
type queryFunc func(ctx context.Context, db *sql.DB, tenantID string, params map[string]string) (interface{}, int, error)

var queryRegistry = map[string]queryFunc{
	"menu_items":         menuItems,
	"business_hours":     businessHours,
	"table_availability": tableAvailability,
	"order_status":       orderStatus,
}

// PostgresSource answers fulfillment queries against the tenant's relational
// business data. Every query is tenant-scoped; the registry is the full list
// of query types a catalog may reference.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Query(ctx context.Context, req *provider.QueryRequest) (*provider.QueryResult, error) {
	fn, exists := queryRegistry[req.QueryType]
	if !exists {
		return nil, domainerrors.NewInvalidResponseError(postgresProviderName,
			fmt.Sprintf("%s: %s", errUnknownQueryType, req.QueryType))
	}

	data, rowCount, err := fn(ctx, s.db, req.TenantID, req.Params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, domainerrors.NewProviderTimeoutError(postgresProviderName)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NewDataNotFoundError(req.QueryType)
		}
		return nil, domainerrors.NewConnectionError(postgresProviderName, err)
	}
	if rowCount == 0 {
		return nil, domainerrors.NewDataNotFoundError(req.QueryType)
	}

	return &provider.QueryResult{Data: data, RowCount: rowCount}, nil
}

func menuItems(ctx context.Context, db *sql.DB, tenantID string, params map[string]string) (interface{}, int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, description, price
		FROM menu_items
		WHERE tenant_id = $1 AND available = true
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var name, description string
		var price float64
		if err := rows.Scan(&name, &description, &price); err != nil {
			return nil, 0, err
		}
		results = append(results, map[string]interface{}{
			"name":        name,
			"description": description,
			"price":       price,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, len(results), nil
}

func businessHours(ctx context.Context, db *sql.DB, tenantID string, params map[string]string) (interface{}, int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, opens_at, closes_at
		FROM business_hours
		WHERE tenant_id = $1
		ORDER BY day_of_week`, tenantID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var day int
		var opensAt, closesAt string
		if err := rows.Scan(&day, &opensAt, &closesAt); err != nil {
			return nil, 0, err
		}
		results = append(results, map[string]interface{}{
			"dayOfWeek": day,
			"opensAt":   opensAt,
			"closesAt":  closesAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, len(results), nil
}

func tableAvailability(ctx context.Context, db *sql.DB, tenantID string, params map[string]string) (interface{}, int, error) {
	date, ok := params["date"]
	if !ok {
		return nil, 0, fmt.Errorf("missing required parameter: date")
	}
	partySize := params["party_size"]
	if partySize == "" {
		partySize = "1"
	}

	var slots int
	err := db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM booking_slots
		WHERE tenant_id = $1 AND slot_date = $2 AND capacity >= $3 AND reserved = false`,
		tenantID, date, partySize).Scan(&slots)
	if err != nil {
		return nil, 0, err
	}

	result := map[string]interface{}{
		"date":      date,
		"available": slots > 0,
		"openSlots": slots,
	}
	return result, 1, nil
}

func orderStatus(ctx context.Context, db *sql.DB, tenantID string, params map[string]string) (interface{}, int, error) {
	orderID, ok := params["order_id"]
	if !ok {
		return nil, 0, fmt.Errorf("missing required parameter: order_id")
	}

	var status string
	var updatedAt string
	err := db.QueryRowContext(ctx, `
		SELECT status, updated_at
		FROM orders
		WHERE tenant_id = $1 AND id = $2`, tenantID, orderID).Scan(&status, &updatedAt)
	if err != nil {
		return nil, 0, err
	}

	result := map[string]interface{}{
		"orderId":   orderID,
		"status":    status,
		"updatedAt": updatedAt,
	}
	return result, 1, nil
}
