// internal/provider/data/postgres_test.go
package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/provider"
)

func TestQueryMenuItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "description", "price"}).
		AddRow("Margarita", "Tomate y mozzarella", 8.5).
		AddRow("Pepperoni", "Con extra queso", 10.0)

	mock.ExpectQuery("SELECT name, description, price").
		WithArgs("pizzashop").
		WillReturnRows(rows)

	source := NewPostgresSource(db)
	result, err := source.Query(context.Background(), &provider.QueryRequest{
		TenantID:  "pizzashop",
		QueryType: "menu_items",
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
	data := result.Data.([]map[string]interface{})
	assert.Equal(t, "Margarita", data[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryTableAvailability(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").
		WithArgs("pizzashop", "2026-09-01", "4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	source := NewPostgresSource(db)
	result, err := source.Query(context.Background(), &provider.QueryRequest{
		TenantID:  "pizzashop",
		QueryType: "table_availability",
		Params:    map[string]string{"date": "2026-09-01", "party_size": "4"},
	})

	assert.NoError(t, err)
	data := result.Data.(map[string]interface{})
	assert.Equal(t, true, data["available"])
	assert.Equal(t, 3, data["openSlots"])
}

func TestQueryOrderStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status, updated_at").
		WithArgs("pizzashop", "4521").
		WillReturnError(sql.ErrNoRows)

	source := NewPostgresSource(db)
	_, err = source.Query(context.Background(), &provider.QueryRequest{
		TenantID:  "pizzashop",
		QueryType: "order_status",
		Params:    map[string]string{"order_id": "4521"},
	})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeDataNotFound, domainerrors.CodeOf(err))
}

func TestQueryEmptyResultIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, description, price").
		WithArgs("pizzashop").
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "price"}))

	source := NewPostgresSource(db)
	_, err = source.Query(context.Background(), &provider.QueryRequest{
		TenantID:  "pizzashop",
		QueryType: "menu_items",
	})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeDataNotFound, domainerrors.CodeOf(err))
}

func TestQueryUnknownType(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	source := NewPostgresSource(db)
	_, err = source.Query(context.Background(), &provider.QueryRequest{
		TenantID:  "pizzashop",
		QueryType: "telepathy",
	})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeInvalidResponse, domainerrors.CodeOf(err))
}

func TestQueryConnectionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT name, description, price").
		WithArgs("pizzashop").
		WillReturnError(sql.ErrConnDone)

	source := NewPostgresSource(db)
	_, err = source.Query(context.Background(), &provider.QueryRequest{
		TenantID:  "pizzashop",
		QueryType: "menu_items",
	})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeConnectionError, domainerrors.CodeOf(err))
}
