package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Seed describes the deterministic data set loaded into the template.
//
// Tenants are numbered from 1. Every tenant gets UsersPerTenant users spread
// round-robin over Depts departments (numbered from 1), every user gets
// OrdersPerUser orders, and every order gets one item.
type Seed struct {
	Tenants        int
	UsersPerTenant int
	OrdersPerUser  int
	Depts          int
}

// DefaultSeed is the data set every test database starts with.
var DefaultSeed = Seed{Tenants: 3, UsersPerTenant: 4, OrdersPerUser: 2, Depts: 2}

// OrdersPerTenant is the number of orders each tenant owns.
func (s Seed) OrdersPerTenant() int { return s.UsersPerTenant * s.OrdersPerUser }

// OrdersPerDept is the number of orders of one department within one tenant.
func (s Seed) OrdersPerDept() int { return s.OrdersPerTenant() / s.Depts }

// Fixtures loads test data using PostgreSQL COPY FROM.
type Fixtures struct {
	db  *sql.DB
	ctx context.Context
}

// NewFixtures creates a new Fixtures instance.
func NewFixtures(ctx context.Context, db *sql.DB) *Fixtures {
	return &Fixtures{db: db, ctx: ctx}
}

// Seed loads s. Ids are assigned in insertion order, so user n of tenant t
// has id (t-1)*UsersPerTenant+n.
func (f *Fixtures) Seed(s Seed) error {
	var tenants, users, orders, items bytes.Buffer

	userID, orderID := 0, 0
	for t := 1; t <= s.Tenants; t++ {
		fmt.Fprintf(&tenants, "%d\ttenant_%d\n", t, t)
		for u := 0; u < s.UsersPerTenant; u++ {
			userID++
			dept := u%s.Depts + 1
			fmt.Fprintf(&users, "%d\t%d\tuser_%d_%d\n", t, dept, t, u)
			for o := 0; o < s.OrdersPerUser; o++ {
				orderID++
				fmt.Fprintf(&orders, "%d\t%d\t%d\t%d\n", t, dept, userID, 10*(o+1))
				fmt.Fprintf(&items, "%d\t%d\tsku_%d\n", t, orderID, orderID)
			}
		}
	}

	steps := []struct {
		table   string
		columns []string
		data    io.Reader
	}{
		{"tenants", []string{"id", "name"}, &tenants},
		{"users", []string{"tenant_id", "dept_id", "username"}, &users},
		{"orders", []string{"tenant_id", "dept_id", "user_id", "total"}, &orders},
		{"order_items", []string{"tenant_id", "order_id", "sku"}, &items},
	}
	for _, step := range steps {
		if err := f.copyFrom(step.table, step.columns, step.data); err != nil {
			return fmt.Errorf("load %s: %w", step.table, err)
		}
	}
	return nil
}

// copyFrom executes a COPY FROM operation using the pgx driver.
// data should be a tab-delimited text stream (one row per line).
func (f *Fixtures) copyFrom(table string, columns []string, data io.Reader) error {
	conn, err := f.db.Conn(f.ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	// Access the underlying pgx connection through stdlib wrapper
	var pgxConn *pgx.Conn
	err = conn.Raw(func(driverConn any) error {
		if stdlibConn, ok := driverConn.(*stdlib.Conn); ok {
			pgxConn = stdlibConn.Conn()
			return nil
		}
		return fmt.Errorf("not a pgx connection (got %T)", driverConn)
	})
	if err != nil {
		return fmt.Errorf("access pgx connection: %w", err)
	}

	query := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT text, DELIMITER E'\\t')",
		table, strings.Join(columns, ", "))
	if _, err := pgxConn.PgConn().CopyFrom(f.ctx, data, query); err != nil {
		return fmt.Errorf("COPY FROM: %w", err)
	}
	return nil
}
