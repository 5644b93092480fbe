package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL implements the capability contract over database/sql. A Handle caps
// its pool at one open connection so it behaves as a single client session.
type MySQL struct {
	DSN       string
	IOTimeout time.Duration
}

type mysqlHandle struct {
	db *sql.DB
}

func (h *mysqlHandle) Close(context.Context) error {
	return h.db.Close()
}

func (d *MySQL) Name() string { return "mysql" }

func (d *MySQL) Connect(ctx context.Context) (Handle, error) {
	db, err := sql.Open("mysql", d.DSN)
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
	return &mysqlHandle{db: db}, nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id BIGINT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(100) NOT NULL,
		city VARCHAR(50) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id BIGINT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		category VARCHAR(50) NOT NULL,
		price DECIMAL(10, 2) NOT NULL,
		stock INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id BIGINT PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		order_date TIMESTAMP NOT NULL,
		total_amount DECIMAL(10, 2) NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers (customer_id),
		FOREIGN KEY (product_id) REFERENCES products (product_id)
	)`,
}

func (d *MySQL) ApplySchema(ctx context.Context, h Handle) error {
	db := h.(*mysqlHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	for _, stmt := range mysqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *MySQL) Reset(ctx context.Context, h Handle) error {
	db := h.(*mysqlHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	// MySQL has no DROP INDEX IF EXISTS; a missing index surfaces as
	// "check that column/key exists" and means we are already at the
	// unindexed baseline.
	drops := []string{
		"DROP INDEX idx_customers_city ON customers",
		"DROP INDEX idx_orders_customer_id ON orders",
	}
	for _, stmt := range drops {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "check that column/key exists") {
				continue
			}
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

func (d *MySQL) CreateIndexes(ctx context.Context, h Handle) error {
	db := h.(*mysqlHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	stmts := []string{
		"CREATE INDEX idx_customers_city ON customers (city)",
		"CREATE INDEX idx_orders_customer_id ON orders (customer_id)",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; a duplicate-key-name
			// error means an earlier category already built it.
			if strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *MySQL) Execute(ctx context.Context, h Handle, op Op, p *Payload) (time.Duration, error) {
	db := h.(*mysqlHandle).db
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

// insertBatch issues one multi-row INSERT per payload table, the closest
// database/sql equivalent of executemany.
func (d *MySQL) insertBatch(ctx context.Context, db *sql.DB, p *Payload) error {
	if len(p.Customers) > 0 {
		args := make([]any, 0, len(p.Customers)*5)
		for _, c := range p.Customers {
			args = append(args, c.ID, c.Name, c.Email, c.City, c.CreatedAt)
		}
		q := "INSERT INTO customers (customer_id, name, email, city, created_at) VALUES " +
			placeholders(len(p.Customers), 5)
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
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
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
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
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (d *MySQL) CountRows(ctx context.Context, h Handle, table string) (int64, error) {
	db := h.(*mysqlHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: "count", Err: err}
	}
	return n, nil
}

// placeholders builds "(?, ?, ...), (?, ?, ...)" for rows of width cols.
func placeholders(rows, cols int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

func drainSQL(rows *sql.Rows, err error) error {
	if err != nil {
		return err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
	}
	return rows.Err()
}
