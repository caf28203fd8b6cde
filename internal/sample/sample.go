// Package sample creates the demo shop database: customers, products and
// orders filled with random but plausible rows.
package sample

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/askql/internal/schema"
)

//go:embed schema.csv
var schemaCSV []byte

// Row counts of the generated tables.
const (
	Customers = 50
	Products  = 30
	Orders    = 200
)

// batchSize caps the rows per INSERT statement.
const batchSize = 100

var cities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
	"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
}

var catalog = []struct {
	category string
	names    []string
}{
	{"Electronics", []string{"Laptop", "Smartphone", "Tablet", "Headphones", "Smart Watch", "Camera"}},
	{"Clothing", []string{"T-Shirt", "Jeans", "Jacket", "Sneakers", "Dress", "Hat"}},
	{"Books", []string{"Fiction Novel", "Biography", "Cookbook", "Self-Help", "Mystery", "Sci-Fi"}},
	{"Home & Garden", []string{"Coffee Maker", "Lamp", "Plant Pot", "Bedding Set", "Curtains", "Rug"}},
	{"Sports", []string{"Yoga Mat", "Dumbbells", "Basketball", "Tennis Racket", "Running Shoes", "Water Bottle"}},
}

// Schema returns the schema of the sample database.
func Schema() *schema.Schema {
	s, err := schema.Load(bytes.NewReader(schemaCSV))
	if err != nil {
		panic(fmt.Sprintf("sample: embedded schema is invalid: %v", err))
	}
	return s
}

// SchemaCSV returns the embedded schema file contents.
func SchemaCSV() []byte {
	return bytes.Clone(schemaCSV)
}

// Execer runs statements that return no rows.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// Options controls Setup.
type Options struct {
	// Seed makes the data reproducible. Zero picks a random seed.
	Seed uint64
	// Replace drops existing sample tables first.
	Replace bool
	Logger  *slog.Logger
}

// Setup creates the sample tables in db and fills them.
func Setup(ctx context.Context, db Execer, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger.Debug("creating sample database", "seed", seed)

	s := Schema()
	if opts.Replace {
		for i := len(s.Tables) - 1; i >= 0; i-- {
			if err := db.Exec(ctx, "DROP TABLE IF EXISTS "+s.Tables[i].Name); err != nil {
				return err
			}
		}
	}
	for i, stmt := range s.CreateStatements() {
		logger.Info("creating table", "table", s.Tables[i].Name)
		if err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", s.Tables[i].Name, err)
		}
	}

	data := Generate(seed)
	for _, t := range data.tables() {
		for start := 0; start < len(t.rows); start += batchSize {
			end := min(start+batchSize, len(t.rows))
			if err := db.Exec(ctx, insertStatement(t.name, t.rows[start:end])); err != nil {
				return fmt.Errorf("failed to load table %s: %w", t.name, err)
			}
		}
		logger.Info("loaded table", "table", t.name, "rows", len(t.rows))
	}
	return nil
}

// Customer is a row of the customers table.
type Customer struct {
	ID         int
	Name       string
	Email      string
	Age        int
	City       string
	SignupDate time.Time
}

// Product is a row of the products table.
type Product struct {
	ID       int
	Name     string
	Category string
	Price    float64
	InStock  bool
}

// Order is a row of the orders table.
type Order struct {
	ID          int
	CustomerID  int
	ProductID   int
	Quantity    int
	OrderDate   time.Time
	TotalAmount float64
}

// Data is a generated data set.
type Data struct {
	Customers []Customer
	Products  []Product
	Orders    []Order
}

// Generate builds the sample rows. The same seed yields the same rows.
func Generate(seed uint64) *Data {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	d := &Data{}

	signupBase := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= Customers; i++ {
		d.Customers = append(d.Customers, Customer{
			ID:         i,
			Name:       fmt.Sprintf("Customer %d", i),
			Email:      fmt.Sprintf("customer%d@example.com", i),
			Age:        18 + rng.IntN(58),
			City:       cities[rng.IntN(len(cities))],
			SignupDate: signupBase.AddDate(0, 0, rng.IntN(731)),
		})
	}

	id := 1
	for _, c := range catalog {
		for _, name := range c.names {
			d.Products = append(d.Products, Product{
				ID:       id,
				Name:     name,
				Category: c.category,
				Price:    round2(10 + rng.Float64()*1990),
				InStock:  rng.IntN(2) == 1,
			})
			id++
		}
	}

	orderBase := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= Orders; i++ {
		p := d.Products[rng.IntN(len(d.Products))]
		qty := 1 + rng.IntN(5)
		d.Orders = append(d.Orders, Order{
			ID:          i,
			CustomerID:  1 + rng.IntN(Customers),
			ProductID:   p.ID,
			Quantity:    qty,
			OrderDate:   orderBase.AddDate(0, 0, rng.IntN(366)),
			TotalAmount: round2(p.Price * float64(qty)),
		})
	}
	return d
}

type tableRows struct {
	name string
	rows [][]string
}

// tables renders the data as SQL literals, in load order.
func (d *Data) tables() []tableRows {
	customers := make([][]string, 0, len(d.Customers))
	for _, c := range d.Customers {
		customers = append(customers, []string{
			strconv.Itoa(c.ID), quote(c.Name), quote(c.Email), strconv.Itoa(c.Age), quote(c.City), date(c.SignupDate),
		})
	}
	products := make([][]string, 0, len(d.Products))
	for _, p := range d.Products {
		products = append(products, []string{
			strconv.Itoa(p.ID), quote(p.Name), quote(p.Category), money(p.Price), strings.ToUpper(strconv.FormatBool(p.InStock)),
		})
	}
	orders := make([][]string, 0, len(d.Orders))
	for _, o := range d.Orders {
		orders = append(orders, []string{
			strconv.Itoa(o.ID), strconv.Itoa(o.CustomerID), strconv.Itoa(o.ProductID),
			strconv.Itoa(o.Quantity), date(o.OrderDate), money(o.TotalAmount),
		})
	}
	return []tableRows{
		{"customers", customers},
		{"products", products},
		{"orders", orders},
	}
}

func insertStatement(table string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" VALUES ")
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(strings.Join(r, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func date(t time.Time) string {
	return "'" + t.Format(time.DateOnly) + "'"
}

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
