// Package workload generates the synthetic dataset shared by every backend
// in a run. Generation is a pure function of (seed, index): the same seed and
// dataset size always yield byte-identical entities, so each backend receives
// exactly the same input regardless of when or how often the sequence is
// walked. Nothing is cached; restarting a stream means regenerating it.
package workload

import (
	"math/rand"
	"strconv"
	"time"
)

var cities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
	"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
}

// Cities returns the fixed city vocabulary generated customers draw from.
// Select scenarios cycle through it for their filter values.
func Cities() []string { return cities }

var categories = []string{
	"Electronics", "Clothing", "Books", "Home & Garden", "Sports",
	"Toys", "Food", "Health", "Beauty", "Automotive",
}

// Timestamps are derived from a fixed epoch so generated rows carry no
// wall-clock dependence.
var baseTime = time.Unix(1700000000, 0).UTC()

type Customer struct {
	ID        int64
	Name      string
	Email     string
	City      string
	CreatedAt time.Time
}

type Product struct {
	ID       int64
	Name     string
	Category string
	Price    float64
	Stock    int
}

// Order references a customer and a product by key. The referenced keys are
// always within the already-generated ranges, so backends that enforce
// referential integrity accept the load order customers, products, orders.
type Order struct {
	ID         int64
	CustomerID int64
	ProductID  int64
	Quantity   int
	Amount     float64
	PlacedAt   time.Time
}

// Dataset describes a deterministic synthetic dataset without holding any of
// it in memory. Per the original tool's proportions, a dataset of size N has
// N customers, N/2 products and 2N orders.
type Dataset struct {
	seed int64
	size int
}

func NewDataset(seed int64, size int) *Dataset {
	return &Dataset{seed: seed, size: size}
}

func (d *Dataset) Seed() int64       { return d.seed }
func (d *Dataset) Size() int         { return d.size }
func (d *Dataset) ProductCount() int { return d.size / 2 }
func (d *Dataset) OrderCount() int   { return d.size * 2 }

// rng returns a generator keyed to one record of one entity kind. Seeding per
// record (rather than one stream for the whole table) makes any index
// addressable in O(1), which is what keeps batch iteration restartable
// without replaying a stream prefix.
func (d *Dataset) rng(kind int64, i int) *rand.Rand {
	h := int64(uint64(d.seed) ^ uint64(kind)<<56 ^ uint64(i+1)*0x9e3779b97f4a7c15)
	return rand.New(rand.NewSource(h))
}

const (
	kindCustomer int64 = iota + 1
	kindProduct
	kindOrder
)

// Customer generates customer i. Indexes at or beyond Size() are valid and
// produce the same deterministic shape; scenario code uses them for rows that
// must not collide with the seeded dataset.
func (d *Dataset) Customer(i int) Customer {
	r := d.rng(kindCustomer, i)
	return Customer{
		ID:        int64(i) + 1,
		Name:      "Customer_" + itoa(i),
		Email:     "customer" + itoa(i) + "@email.com",
		City:      cities[r.Intn(len(cities))],
		CreatedAt: baseTime.Add(time.Duration(i) * time.Second),
	}
}

func (d *Dataset) Product(i int) Product {
	r := d.rng(kindProduct, i)
	return Product{
		ID:       int64(i) + 1,
		Name:     "Product_" + itoa(i),
		Category: categories[r.Intn(len(categories))],
		Price:    round2(10 + r.Float64()*490),
		Stock:    r.Intn(1001),
	}
}

func (d *Dataset) Order(i int) Order {
	r := d.rng(kindOrder, i)
	return Order{
		ID:         int64(i) + 1,
		CustomerID: int64(r.Intn(d.size)) + 1,
		ProductID:  int64(r.Intn(d.ProductCount())) + 1,
		Quantity:   r.Intn(10) + 1,
		Amount:     round2(50 + r.Float64()*950),
		PlacedAt:   baseTime.Add(time.Duration(i) * time.Minute),
	}
}

// Customers materializes n customers starting at offset.
func (d *Dataset) Customers(offset, n int) []Customer {
	out := make([]Customer, n)
	for i := range out {
		out[i] = d.Customer(offset + i)
	}
	return out
}

func (d *Dataset) Products(offset, n int) []Product {
	out := make([]Product, n)
	for i := range out {
		out[i] = d.Product(offset + i)
	}
	return out
}

func (d *Dataset) Orders(offset, n int) []Order {
	out := make([]Order, n)
	for i := range out {
		out[i] = d.Order(offset + i)
	}
	return out
}

// EachCustomerBatch walks the full customer set in batches of at most n,
// regenerating each batch from the seed. fn returning an error stops the walk.
func (d *Dataset) EachCustomerBatch(n int, fn func([]Customer) error) error {
	for off := 0; off < d.size; off += n {
		c := n
		if off+c > d.size {
			c = d.size - off
		}
		if err := fn(d.Customers(off, c)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dataset) EachProductBatch(n int, fn func([]Product) error) error {
	total := d.ProductCount()
	for off := 0; off < total; off += n {
		c := n
		if off+c > total {
			c = total - off
		}
		if err := fn(d.Products(off, c)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dataset) EachOrderBatch(n int, fn func([]Order) error) error {
	total := d.OrderCount()
	for off := 0; off < total; off += n {
		c := n
		if off+c > total {
			c = total - off
		}
		if err := fn(d.Orders(off, c)); err != nil {
			return err
		}
	}
	return nil
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func itoa(i int) string { return strconv.Itoa(i) }
