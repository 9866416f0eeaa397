// Command demo wires an audited save end to end against the configured
// database (embedded sqlite by default, postgres via CHRONICLE_DRIVER): it
// inserts, modifies and deletes a row, then prints the audit trail the saves
// produced. Business logic lives in the library packages; main only wires
// dependencies, the way a host application would.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
	_ "modernc.org/sqlite"

	"chronicle"
	"chronicle/actor"
	"chronicle/audit"
	pgstore "chronicle/audit/store/postgres"
	sqlitestore "chronicle/audit/store/sqlite"
	"chronicle/internal/platform/config"
	"chronicle/schema"
	"chronicle/sink"
	"chronicle/sqlengine"
	"chronicle/tracking"
)

type Customer struct {
	ID    int64 `db:"id,pk"`
	Name  string
	Email string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	db, dialect, store, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS customers (id BIGINT PRIMARY KEY, name TEXT, email TEXT)`); err != nil {
		return fmt.Errorf("create customers table: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	resolver, err := buildResolver(ctx, cfg)
	if err != nil {
		return err
	}

	worker, stopWorker, err := buildWorker(cfg, logger)
	if err != nil {
		return err
	}
	defer stopWorker()

	opts := []chronicle.Option{
		chronicle.WithLogger(logger),
		chronicle.WithActorResolver(resolver),
		chronicle.WithPublisher(worker),
	}
	if cfg.StrictVerification {
		opts = append(opts, chronicle.WithStrictVerification())
	}

	engine := sqlengine.New(db, dialect, tracking.NewTracker(schema.NewRegistry()))
	ic := chronicle.New(engine, store, opts...)

	customer := &Customer{ID: 1, Name: "Ann", Email: "ann@example.com"}
	if err := engine.Tracker().Add(customer); err != nil {
		return err
	}
	if _, err := ic.Save(ctx); err != nil {
		return err
	}

	customer.Email = "ann@chronicle.example"
	if _, err := ic.Save(ctx); err != nil {
		return err
	}

	if err := engine.Tracker().Remove(customer); err != nil {
		return err
	}
	if _, err := ic.Save(ctx); err != nil {
		return err
	}

	return printTrail(ctx, db)
}

// auditStore is what the demo needs from a store implementation: the
// append port plus schema management.
type auditStore interface {
	audit.Store
	EnsureSchema(ctx context.Context) error
}

func openDatabase(cfg config.Config) (*sql.DB, sqlengine.Dialect, auditStore, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, sqlengine.Postgres{}, pgstore.New(db), nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if cfg.DSN == ":memory:" {
			// A second pooled connection would see its own empty database.
			db.SetMaxOpenConns(1)
		}
		return db, sqlengine.SQLite{}, sqlitestore.New(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

// buildResolver picks the richest actor resolver the config allows: a
// Redis-backed session lookup when configured, a fixed demo identity
// otherwise.
func buildResolver(ctx context.Context, cfg config.Config) (actor.Resolver, error) {
	if cfg.RedisURL == "" {
		return actor.Static{ID: uuid.New()}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return actor.NewSessionResolver(client, cfg.SessionPrefix), nil
}

func buildWorker(cfg config.Config, logger *slog.Logger) (*sink.Worker, func(), error) {
	sinks := []sink.Sink{sink.NewLogger(logger)}
	var closeClient func()
	if len(cfg.KafkaBrokers) > 0 {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.KafkaTopic),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka client: %w", err)
		}
		closeClient = client.Close
		sinks = append(sinks, sink.NewKafka(client, cfg.KafkaTopic))
	}

	worker := sink.NewWorker(16, logger, sinks...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	stop := func() {
		cancel()
		<-done
		if closeClient != nil {
			closeClient()
		}
	}
	return worker, stop, nil
}

func printTrail(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `
		SELECT change_type, table_name, identity_json, from_json, to_json
		FROM audit_records ORDER BY created_at, id
	`)
	if err != nil {
		return fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var changeType, table, identity, from, to string
		if err := rows.Scan(&changeType, &table, &identity, &from, &to); err != nil {
			return err
		}
		fmt.Printf("%-8s %-10s %-12s %s -> %s\n", changeType, table, identity, from, to)
	}
	return rows.Err()
}
