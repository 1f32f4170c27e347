package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config sizes the generated dataset. Schema is the target schema name; the
// tables land in the warehouse's default catalog.
type Config struct {
	Schema           string
	Customers        int
	Suppliers        int
	Parts            int
	Orders           int
	MaxItemsPerOrder int
	Seed             int64
}

func DefaultConfig() Config {
	return Config{
		Schema:           "tpch",
		Customers:        500,
		Suppliers:        50,
		Parts:            200,
		Orders:           5_000,
		MaxItemsPerOrder: 4,
		Seed:             1,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Schema) == "" {
		return fmt.Errorf("schema is required")
	}
	if c.Customers <= 0 || c.Suppliers <= 0 || c.Parts <= 0 || c.Orders <= 0 {
		return fmt.Errorf("dataset sizes must be positive")
	}
	if c.MaxItemsPerOrder <= 0 {
		return fmt.Errorf("max items per order must be positive")
	}
	return nil
}

// Seeder populates a local warehouse with the TPCH-shaped sample dataset the
// query catalog expects.
type Seeder struct {
	db     *sql.DB
	logger *slog.Logger
	cfg    Config
}

func New(db *sql.DB, logger *slog.Logger, cfg Config) *Seeder {
	return &Seeder{db: db, logger: logger, cfg: cfg}
}

// Run drops and recreates the sample schema, then loads the generated rows
// in one transaction.
func (s *Seeder) Run(ctx context.Context) error {
	if err := s.cfg.validate(); err != nil {
		return err
	}

	start := time.Now()
	generator := NewGenerator(s.cfg)

	if err := s.createSchema(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.loadRegions(ctx, tx, generator.Regions()); err != nil {
		return err
	}
	if err := s.loadNations(ctx, tx, generator.Nations()); err != nil {
		return err
	}
	if err := s.loadCustomers(ctx, tx, generator.Customers()); err != nil {
		return err
	}
	if err := s.loadSuppliers(ctx, tx, generator.Suppliers()); err != nil {
		return err
	}
	if err := s.loadParts(ctx, tx, generator.Parts()); err != nil {
		return err
	}
	orders, items := generator.Orders()
	if err := s.loadOrders(ctx, tx, orders); err != nil {
		return err
	}
	if err := s.loadLineItems(ctx, tx, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("sample warehouse seeded",
			slog.String("schema", s.cfg.Schema),
			slog.Int("orders", len(orders)),
			slog.Int("line_items", len(items)),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

func (s *Seeder) createSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.cfg.Schema),
		fmt.Sprintf("CREATE SCHEMA %s", s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.region (
			r_regionkey INTEGER PRIMARY KEY,
			r_name VARCHAR NOT NULL
		)`, s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.nation (
			n_nationkey INTEGER PRIMARY KEY,
			n_name VARCHAR NOT NULL,
			n_regionkey INTEGER NOT NULL
		)`, s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.customer (
			c_custkey INTEGER PRIMARY KEY,
			c_name VARCHAR NOT NULL,
			c_mktsegment VARCHAR NOT NULL,
			c_nationkey INTEGER NOT NULL
		)`, s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.supplier (
			s_suppkey INTEGER PRIMARY KEY,
			s_name VARCHAR NOT NULL,
			s_nationkey INTEGER NOT NULL
		)`, s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.part (
			p_partkey INTEGER PRIMARY KEY,
			p_name VARCHAR NOT NULL,
			p_brand VARCHAR NOT NULL,
			p_type VARCHAR NOT NULL
		)`, s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.orders (
			o_orderkey INTEGER PRIMARY KEY,
			o_custkey INTEGER NOT NULL,
			o_orderstatus VARCHAR NOT NULL,
			o_totalprice DOUBLE NOT NULL,
			o_orderdate DATE NOT NULL,
			o_orderpriority VARCHAR NOT NULL
		)`, s.cfg.Schema),
		fmt.Sprintf(`CREATE TABLE %s.lineitem (
			l_orderkey INTEGER NOT NULL,
			l_partkey INTEGER NOT NULL,
			l_suppkey INTEGER NOT NULL,
			l_quantity INTEGER NOT NULL,
			l_extendedprice DOUBLE NOT NULL,
			l_discount DOUBLE NOT NULL,
			l_shipdate DATE NOT NULL,
			l_commitdate DATE NOT NULL,
			l_shipmode VARCHAR NOT NULL
		)`, s.cfg.Schema),
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create sample schema: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadRegions(ctx context.Context, tx *sql.Tx, rows []RegionRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.region VALUES ($1, $2)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare region insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.RegionKey, row.Name); err != nil {
			return fmt.Errorf("insert region: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadNations(ctx context.Context, tx *sql.Tx, rows []NationRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.nation VALUES ($1, $2, $3)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare nation insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.NationKey, row.Name, row.RegionKey); err != nil {
			return fmt.Errorf("insert nation: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadCustomers(ctx context.Context, tx *sql.Tx, rows []CustomerRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.customer VALUES ($1, $2, $3, $4)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare customer insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.CustKey, row.Name, row.MktSegment, row.NationKey); err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadSuppliers(ctx context.Context, tx *sql.Tx, rows []SupplierRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.supplier VALUES ($1, $2, $3)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare supplier insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.SuppKey, row.Name, row.NationKey); err != nil {
			return fmt.Errorf("insert supplier: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadParts(ctx context.Context, tx *sql.Tx, rows []PartRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.part VALUES ($1, $2, $3, $4)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare part insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.PartKey, row.Name, row.Brand, row.Type); err != nil {
			return fmt.Errorf("insert part: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadOrders(ctx context.Context, tx *sql.Tx, rows []OrderRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.orders VALUES ($1, $2, $3, $4, $5, $6)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare orders insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.OrderKey, row.CustKey, row.OrderStatus, row.TotalPrice, row.OrderDate, row.OrderPriority); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
	}
	return nil
}

func (s *Seeder) loadLineItems(ctx context.Context, tx *sql.Tx, rows []LineItemRow) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s.lineitem VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)", s.cfg.Schema))
	if err != nil {
		return fmt.Errorf("prepare lineitem insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.OrderKey, row.PartKey, row.SuppKey, row.Quantity, row.ExtendedPrice, row.Discount, row.ShipDate, row.CommitDate, row.ShipMode); err != nil {
			return fmt.Errorf("insert lineitem: %w", err)
		}
	}
	return nil
}
