package sample

import (
	"context"
	"testing"

	"github.com/leapstack-labs/askql/internal/executor"
	"github.com/leapstack-labs/askql/internal/testutil"
	"github.com/leapstack-labs/askql/pkg/adapters/sqlite"
	"github.com/leapstack-labs/askql/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	s := Schema()
	require.Len(t, s.Tables, 3)
	assert.Equal(t, "customers", s.Tables[0].Name)
	assert.Equal(t, "products", s.Tables[1].Name)
	assert.Equal(t, "orders", s.Tables[2].Name)
	assert.Contains(t, s.Describe(), "  - signup_date (DATE)")
	assert.NotEmpty(t, SchemaCSV())
}

func TestGenerate(t *testing.T) {
	d := Generate(42)

	assert.Len(t, d.Customers, Customers)
	assert.Len(t, d.Products, Products)
	assert.Len(t, d.Orders, Orders)

	prices := map[int]float64{}
	for _, p := range d.Products {
		assert.GreaterOrEqual(t, p.Price, 10.0)
		assert.LessOrEqual(t, p.Price, 2000.0)
		prices[p.ID] = p.Price
	}
	for _, c := range d.Customers {
		assert.GreaterOrEqual(t, c.Age, 18)
		assert.LessOrEqual(t, c.Age, 75)
	}
	for _, o := range d.Orders {
		assert.GreaterOrEqual(t, o.CustomerID, 1)
		assert.LessOrEqual(t, o.CustomerID, Customers)
		assert.InDelta(t, prices[o.ProductID]*float64(o.Quantity), o.TotalAmount, 0.01)
		assert.Equal(t, 2024, o.OrderDate.Year())
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	assert.Equal(t, Generate(7), Generate(7))
	assert.NotEqual(t, Generate(7).Orders, Generate(8).Orders)
}

func TestInsertStatement(t *testing.T) {
	got := insertStatement("t", [][]string{{"1", quote("O'Brien")}, {"2", "NULL"}})
	assert.Equal(t, "INSERT INTO t VALUES (1, 'O''Brien'), (2, NULL)", got)
}

func TestSetup_SQLite(t *testing.T) {
	ctx := context.Background()
	adp := sqlite.New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{}))
	defer func() { _ = adp.Close() }()

	opts := Options{Seed: 1, Logger: testutil.NewTestLogger(t)}
	require.NoError(t, Setup(ctx, adp, opts))

	exec := executor.New(adp, executor.Config{})
	for table, want := range map[string]int64{"customers": Customers, "products": Products, "orders": Orders} {
		out := exec.Execute(ctx, "SELECT COUNT(*) FROM "+table)
		require.True(t, out.OK, out.Error)
		assert.EqualValues(t, want, out.Result.Rows[0][0], table)
	}

	out := exec.Execute(ctx, "SELECT COUNT(*) FROM products WHERE category = 'Home & Garden'")
	require.True(t, out.OK, out.Error)
	assert.EqualValues(t, 6, out.Result.Rows[0][0])

	t.Run("second run needs replace", func(t *testing.T) {
		assert.Error(t, Setup(ctx, adp, opts))
		opts.Replace = true
		assert.NoError(t, Setup(ctx, adp, opts))
	})
}
