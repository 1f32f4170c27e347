package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/orderlens/orderlens/internal/config"
	"github.com/orderlens/orderlens/internal/observability"
	"github.com/orderlens/orderlens/internal/seed"
)

func main() {
	cfg, err := config.LoadFromEnv("orderlens-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	seedCfg := seed.DefaultConfig()
	seedCfg.Schema = cfg.Warehouse.Schema

	flag.StringVar(&seedCfg.Schema, "schema", seedCfg.Schema, "target schema name")
	flag.IntVar(&seedCfg.Customers, "customers", seedCfg.Customers, "number of customers")
	flag.IntVar(&seedCfg.Suppliers, "suppliers", seedCfg.Suppliers, "number of suppliers")
	flag.IntVar(&seedCfg.Parts, "parts", seedCfg.Parts, "number of parts")
	flag.IntVar(&seedCfg.Orders, "orders", seedCfg.Orders, "number of orders")
	flag.IntVar(&seedCfg.MaxItemsPerOrder, "max-items", seedCfg.MaxItemsPerOrder, "max line items per order")
	flag.Int64Var(&seedCfg.Seed, "seed", seedCfg.Seed, "random seed")
	path := flag.String("path", cfg.Warehouse.LocalPath, "duckdb file to seed")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)
	if cfg.Warehouse.Driver != "duckdb" {
		logger.Error("seeding requires the duckdb driver", slog.String("driver", cfg.Warehouse.Driver))
		os.Exit(1)
	}

	db, err := sql.Open("duckdb", *path)
	if err != nil {
		logger.Error("failed to open local warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	seeder := seed.New(db, logger, seedCfg)
	if err := seeder.Run(context.Background()); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
}
