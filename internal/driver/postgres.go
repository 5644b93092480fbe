package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Postgres implements the capability contract over pgx. Each Handle owns its
// own pgx.Conn; nothing is pooled or shared between clients.
type Postgres struct {
	DSN       string
	IOTimeout time.Duration
}

type pgHandle struct {
	conn *pgx.Conn
}

func (h *pgHandle) Close(ctx context.Context) error {
	return h.conn.Close(ctx)
}

func (d *Postgres) Name() string { return "postgres" }

func (d *Postgres) Connect(ctx context.Context) (Handle, error) {
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	conn, err := pgx.Connect(ctx, d.DSN)
	if err != nil {
		return nil, &ConnectionError{Backend: d.Name(), Err: err}
	}
	return &pgHandle{conn: conn}, nil
}

var pgSchema = []string{
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
		customer_id BIGINT NOT NULL REFERENCES customers (customer_id),
		product_id BIGINT NOT NULL REFERENCES products (product_id),
		quantity INT NOT NULL,
		order_date TIMESTAMP NOT NULL,
		total_amount DECIMAL(10, 2) NOT NULL
	)`,
}

func (d *Postgres) ApplySchema(ctx context.Context, h Handle) error {
	conn := h.(*pgHandle).conn
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	for _, stmt := range pgSchema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

// Reset empties the dataset tables in foreign-key-safe order. ApplySchema
// must have run on this backend at least once before.
func (d *Postgres) Reset(ctx context.Context, h Handle) error {
	conn := h.(*pgHandle).conn
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	// A reset returns the backend to the unindexed baseline; indexes built by
	// an earlier run must not leak into the next one's unindexed measurements.
	for _, stmt := range []string{
		"DROP INDEX IF EXISTS idx_customers_city",
		"DROP INDEX IF EXISTS idx_orders_customer_id",
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	for _, table := range []string{"orders", "products", "customers"} {
		if _, err := conn.Exec(ctx, "DELETE FROM "+table); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *Postgres) CreateIndexes(ctx context.Context, h Handle) error {
	conn := h.(*pgHandle).conn
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_customers_city ON customers (city)",
		"CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders (customer_id)",
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *Postgres) Execute(ctx context.Context, h Handle, op Op, p *Payload) (time.Duration, error) {
	conn := h.(*pgHandle).conn
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch op {
	case OpInsertOne:
		c := p.Customer
		_, err = conn.Exec(ctx,
			"INSERT INTO customers (customer_id, name, email, city, created_at) VALUES ($1, $2, $3, $4, $5)",
			c.ID, c.Name, c.Email, c.City, c.CreatedAt)
	case OpInsertBatch:
		err = d.copyBatch(ctx, conn, p)
	case OpSelectSimple:
		err = drainPG(conn.Query(ctx,
			"SELECT customer_id, name, email, city, created_at FROM customers WHERE city = $1 LIMIT $2",
			p.City, p.Limit))
	case OpSelectJoined:
		err = drainPG(conn.Query(ctx,
			`SELECT c.name, c.city, p.name, o.quantity, o.total_amount
			 FROM orders o
			 JOIN customers c ON o.customer_id = c.customer_id
			 JOIN products p ON o.product_id = p.product_id
			 WHERE o.total_amount > 100
			 ORDER BY o.order_date DESC
			 LIMIT $1`, p.Limit))
	case OpUpdateByKey:
		_, err = conn.Exec(ctx,
			"UPDATE products SET stock = stock - 1 WHERE product_id = $1 AND stock > 0", p.Key)
	case OpDeleteByKey:
		_, err = conn.Exec(ctx, "DELETE FROM orders WHERE order_id = $1", p.Key)
	default:
		return 0, &OperationError{Backend: d.Name(), Op: op, Err: fmt.Errorf("unknown operation")}
	}
	elapsed := time.Since(start)

	if err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: op, Err: err}
	}
	return elapsed, nil
}

// copyBatch loads the payload slices with COPY, postgres's fastest bulk path.
func (d *Postgres) copyBatch(ctx context.Context, conn *pgx.Conn, p *Payload) error {
	if len(p.Customers) > 0 {
		rows := make([][]any, len(p.Customers))
		for i, c := range p.Customers {
			rows[i] = []any{c.ID, c.Name, c.Email, c.City, c.CreatedAt}
		}
		_, err := conn.CopyFrom(ctx, pgx.Identifier{"customers"},
			[]string{"customer_id", "name", "email", "city", "created_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
	}
	if len(p.Products) > 0 {
		rows := make([][]any, len(p.Products))
		for i, pr := range p.Products {
			rows[i] = []any{pr.ID, pr.Name, pr.Category, pr.Price, pr.Stock}
		}
		_, err := conn.CopyFrom(ctx, pgx.Identifier{"products"},
			[]string{"product_id", "name", "category", "price", "stock"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
	}
	if len(p.Orders) > 0 {
		rows := make([][]any, len(p.Orders))
		for i, o := range p.Orders {
			rows[i] = []any{o.ID, o.CustomerID, o.ProductID, o.Quantity, o.PlacedAt, o.Amount}
		}
		_, err := conn.CopyFrom(ctx, pgx.Identifier{"orders"},
			[]string{"order_id", "customer_id", "product_id", "quantity", "order_date", "total_amount"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Postgres) CountRows(ctx context.Context, h Handle, table string) (int64, error) {
	conn := h.(*pgHandle).conn
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	var n int64
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: "count", Err: err}
	}
	return n, nil
}

// drainPG walks a result set to completion so selects measure full retrieval,
// not just the round trip of the first batch.
func drainPG(rows pgx.Rows, err error) error {
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if _, err := rows.Values(); err != nil {
			return err
		}
	}
	return rows.Err()
}
