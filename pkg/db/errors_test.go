package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgDup := &pgconn.PgError{Code: "23505", ConstraintName: "uq_settlements_order_id"}
	pgOther := &pgconn.PgError{Code: "23503", ConstraintName: "fk_whatever"}
	pqDup := &pq.Error{Code: "23505", Constraint: "uq_settlements_order_id"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx unique", err: fmt.Errorf("insert: %w", pgDup), want: true},
		{name: "pgx unique matching constraint", err: pgDup, constraint: "uq_settlements_order_id", want: true},
		{name: "pgx unique other constraint", err: pgDup, constraint: "orders_pkey", want: false},
		{name: "pgx foreign key", err: pgOther, want: false},
		{name: "pq unique", err: pqDup, want: true},
		{name: "gorm translated", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), constraint: "uq_settlements_order_id", want: true},
		{name: "postgres message", err: errors.New(`ERROR: duplicate key value violates unique constraint "uq_settlements_order_id"`), want: true},
		{name: "sqlite message", err: errors.New("UNIQUE constraint failed: settlements.order_id"), want: true},
		{name: "sqlite unique", err: fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), want: true},
		{name: "sqlite not null", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, want: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}

type uniqueModel struct {
	ID   int
	Code string `gorm:"uniqueIndex"`
}

func TestIsUniqueViolationWithSQLiteTranslateError(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_violation?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&uniqueModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	if err := conn.Create(&uniqueModel{Code: "order-2000"}).Error; err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err = conn.Create(&uniqueModel{Code: "order-2000"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestIsUniqueViolationWithRawSQLiteError(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:unique_violation_raw?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&uniqueModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO unique_models (code) VALUES ('order-3000')"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err = sqlDB.Exec("INSERT INTO unique_models (code) VALUES ('order-3000')")
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		t.Fatalf("expected sqlite3.Error, got %T", err)
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}
