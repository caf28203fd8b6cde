// Package schema loads and renders the description of the data store that
// the oracle sees in its prompts.
//
// A schema comes either from a CSV file with the columns
// table_name, column_name, data_type, nullable, key
// or from introspecting a connected adapter.
package schema

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/askql/pkg/core"
)

// Header is the expected first record of a schema CSV.
var Header = []string{"table_name", "column_name", "data_type", "nullable", "key"}

// KeyPrimary marks a primary key column in the key field.
const KeyPrimary = "PRI"

// Column describes one column.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	Key      string
}

// Table is an ordered list of columns.
type Table struct {
	Name    string
	Columns []Column
}

// Schema is an ordered list of tables.
type Schema struct {
	Tables []Table
}

// Table returns the named table or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// Describe renders the schema for a prompt:
//
//	Table: customers
//	Columns:
//	  - customer_id (INTEGER)
func (s *Schema) Describe() string {
	var b strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Table: %s\nColumns:", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "\n  - %s (%s)", c.Name, c.DataType)
		}
	}
	return b.String()
}

// CreateStatements returns one CREATE TABLE statement per table, in order.
func (s *Schema) CreateStatements() []string {
	stmts := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		defs := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			def := c.Name + " " + c.DataType
			if !c.Nullable {
				def += " NOT NULL"
			}
			if c.Key == KeyPrimary {
				def += " PRIMARY KEY"
			}
			defs = append(defs, def)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (%s)", t.Name, strings.Join(defs, ", ")))
	}
	return stmts
}

// LoadFile reads a schema CSV from disk.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load parses a schema CSV. Tables and columns keep file order.
func Load(r io.Reader) (*Schema, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("schema file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, want := range Header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return nil, fmt.Errorf("unexpected header %q, want %q", strings.Join(header, ","), strings.Join(Header, ","))
		}
	}

	s := &Schema{}
	index := map[string]int{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read schema: %w", err)
		}
		table := strings.TrimSpace(rec[0])
		col := Column{
			Name:     strings.TrimSpace(rec[1]),
			DataType: strings.TrimSpace(rec[2]),
			Nullable: !strings.EqualFold(strings.TrimSpace(rec[3]), "NO"),
			Key:      strings.ToUpper(strings.TrimSpace(rec[4])),
		}
		if table == "" || col.Name == "" || col.DataType == "" {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: table, column and type are required", line)
		}
		i, ok := index[table]
		if !ok {
			i = len(s.Tables)
			index[table] = i
			s.Tables = append(s.Tables, Table{Name: table})
		}
		s.Tables[i].Columns = append(s.Tables[i].Columns, col)
	}
	if len(s.Tables) == 0 {
		return nil, errors.New("schema file has no columns")
	}
	return s, nil
}

// Write renders s as a schema CSV.
func (s *Schema) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			nullable := "YES"
			if !c.Nullable {
				nullable = "NO"
			}
			if err := cw.Write([]string{t.Name, c.Name, c.DataType, nullable, c.Key}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Introspector is the metadata side of a data store adapter.
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error)
}

// Discover builds a schema from a live data store.
func Discover(ctx context.Context, db Introspector) (*Schema, error) {
	names, err := db.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	s := &Schema{}
	for _, name := range names {
		meta, err := db.GetTableMetadata(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
		}
		t := Table{Name: meta.Name}
		for _, c := range meta.Columns {
			col := Column{Name: c.Name, DataType: c.Type, Nullable: c.Nullable}
			if c.PrimaryKey {
				col.Key = KeyPrimary
			}
			t.Columns = append(t.Columns, col)
		}
		s.Tables = append(s.Tables, t)
	}
	if len(s.Tables) == 0 {
		return nil, errors.New("data store has no tables")
	}
	return s, nil
}
