package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/zms-erp/ledgertree/config"
	"github.com/zms-erp/ledgertree/migrations"
	"github.com/zms-erp/ledgertree/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	sqlRepository
	config *config.DatabaseConfig
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(cfgProvider config.Provider) (*PostgresRepository, error) {
	ctx := context.Background()
	cfg, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config: %w", err)
	}

	return &PostgresRepository{
		sqlRepository: sqlRepository{numbered: true},
		config:        cfg,
	}, nil
}

// Initialize sets up the PostgreSQL database
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", r.config.DSN())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	if err := migrations.Up(db, migrations.DialectPostgres); err != nil {
		db.Close()
		return err
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	return r.close()
}

// ReplaceAccounts stores a new snapshot for category
func (r *PostgresRepository) ReplaceAccounts(ctx context.Context, category models.Category, accounts []models.Account) error {
	return r.replaceAccounts(ctx, category, accounts)
}

// GetSnapshot returns the snapshot of category
func (r *PostgresRepository) GetSnapshot(ctx context.Context, category models.Category) (*Snapshot, error) {
	return r.getSnapshot(ctx, category)
}

// GetAccount retrieves an account by ID
func (r *PostgresRepository) GetAccount(ctx context.Context, category models.Category, id string) (*models.Account, error) {
	return r.getAccount(ctx, category, id)
}

// UpsertAccount inserts or replaces an account
func (r *PostgresRepository) UpsertAccount(ctx context.Context, category models.Category, account models.Account) error {
	return r.upsertAccount(ctx, category, account)
}

// DeleteAccount deletes an account and its descendants
func (r *PostgresRepository) DeleteAccount(ctx context.Context, category models.Category, id string) error {
	return r.deleteAccount(ctx, category, id)
}
