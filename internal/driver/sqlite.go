package driver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the serverless relational backend. It lets the full battery run
// without any external container, which is also how local smoke runs work.
// Point the DSN at a file (file:dbbench.db?_busy_timeout=3000); a plain
// :memory: DSN would give every client its own private database.
type SQLite struct {
	DSN       string
	IOTimeout time.Duration
}

type sqliteHandle struct {
	db *sql.DB
}

func (h *sqliteHandle) Close(context.Context) error {
	return h.db.Close()
}

func (d *SQLite) Name() string { return "sqlite" }

func (d *SQLite) Connect(ctx context.Context) (Handle, error) {
	db, err := sql.Open("sqlite3", d.DSN)
	if err != nil {
		return nil, &ConnectionError{Backend: d.Name(), Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Backend: d.Name(), Err: err}
	}
	return &sqliteHandle{db: db}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		city TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		price REAL NOT NULL,
		stock INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id INTEGER PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers (customer_id),
		product_id INTEGER NOT NULL REFERENCES products (product_id),
		quantity INTEGER NOT NULL,
		order_date TIMESTAMP NOT NULL,
		total_amount REAL NOT NULL
	)`,
}

func (d *SQLite) ApplySchema(ctx context.Context, h Handle) error {
	db := h.(*sqliteHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *SQLite) Reset(ctx context.Context, h Handle) error {
	db := h.(*sqliteHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	// Back to the unindexed baseline before rows go, so a later run's
	// unindexed scans really scan.
	for _, stmt := range []string{
		"DROP INDEX IF EXISTS idx_customers_city",
		"DROP INDEX IF EXISTS idx_orders_customer_id",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	for _, table := range []string{"orders", "products", "customers"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *SQLite) CreateIndexes(ctx context.Context, h Handle) error {
	db := h.(*sqliteHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_customers_city ON customers (city)",
		"CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders (customer_id)",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *SQLite) Execute(ctx context.Context, h Handle, op Op, p *Payload) (time.Duration, error) {
	db := h.(*sqliteHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch op {
	case OpInsertOne:
		c := p.Customer
		_, err = db.ExecContext(ctx,
			"INSERT INTO customers (customer_id, name, email, city, created_at) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.Name, c.Email, c.City, c.CreatedAt)
	case OpInsertBatch:
		err = d.insertBatch(ctx, db, p)
	case OpSelectSimple:
		err = drainSQL(db.QueryContext(ctx,
			"SELECT customer_id, name, email, city, created_at FROM customers WHERE city = ? LIMIT ?",
			p.City, p.Limit))
	case OpSelectJoined:
		err = drainSQL(db.QueryContext(ctx,
			`SELECT c.name, c.city, p.name, o.quantity, o.total_amount
			 FROM orders o
			 JOIN customers c ON o.customer_id = c.customer_id
			 JOIN products p ON o.product_id = p.product_id
			 WHERE o.total_amount > 100
			 ORDER BY o.order_date DESC
			 LIMIT ?`, p.Limit))
	case OpUpdateByKey:
		_, err = db.ExecContext(ctx,
			"UPDATE products SET stock = stock - 1 WHERE product_id = ? AND stock > 0", p.Key)
	case OpDeleteByKey:
		_, err = db.ExecContext(ctx, "DELETE FROM orders WHERE order_id = ?", p.Key)
	default:
		return 0, &OperationError{Backend: d.Name(), Op: op, Err: fmt.Errorf("unknown operation")}
	}
	elapsed := time.Since(start)

	if err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: op, Err: err}
	}
	return elapsed, nil
}

// insertBatch wraps the multi-row inserts in one transaction; sqlite commits
// per statement otherwise, which would dominate the measurement.
func (d *SQLite) insertBatch(ctx context.Context, db *sql.DB, p *Payload) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if len(p.Customers) > 0 {
		args := make([]any, 0, len(p.Customers)*5)
		for _, c := range p.Customers {
			args = append(args, c.ID, c.Name, c.Email, c.City, c.CreatedAt)
		}
		q := "INSERT INTO customers (customer_id, name, email, city, created_at) VALUES " +
			placeholders(len(p.Customers), 5)
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	if len(p.Products) > 0 {
		args := make([]any, 0, len(p.Products)*5)
		for _, pr := range p.Products {
			args = append(args, pr.ID, pr.Name, pr.Category, pr.Price, pr.Stock)
		}
		q := "INSERT INTO products (product_id, name, category, price, stock) VALUES " +
			placeholders(len(p.Products), 5)
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	if len(p.Orders) > 0 {
		args := make([]any, 0, len(p.Orders)*6)
		for _, o := range p.Orders {
			args = append(args, o.ID, o.CustomerID, o.ProductID, o.Quantity, o.PlacedAt, o.Amount)
		}
		q := "INSERT INTO orders (order_id, customer_id, product_id, quantity, order_date, total_amount) VALUES " +
			placeholders(len(p.Orders), 6)
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (d *SQLite) CountRows(ctx context.Context, h Handle, table string) (int64, error) {
	db := h.(*sqliteHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: "count", Err: err}
	}
	return n, nil
}
