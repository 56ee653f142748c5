package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zms-erp/ledgertree/migrations"
	"github.com/zms-erp/ledgertree/models"
)

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	sqlRepository
	dbPath string
}

// NewSQLiteRepository creates a new SQLite repository instance.
// An empty path places the database under the user's home directory.
func NewSQLiteRepository(path string) *SQLiteRepository {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}

		dataDir := filepath.Join(homeDir, ".ledgertree")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			// Fallback to current directory if home directory is not accessible
			dataDir = "."
		}
		path = filepath.Join(dataDir, "snapshots.db")
	}

	return &SQLiteRepository{dbPath: path}
}

// Initialize opens the database and applies migrations
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite3", r.dbPath+"?_busy_timeout=5000")
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	if err := migrations.Up(db, migrations.DialectSQLite); err != nil {
		db.Close()
		return err
	}

	r.db = db
	return nil
}

// Cleanup closes the database connection
func (r *SQLiteRepository) Cleanup(ctx context.Context) error {
	return r.close()
}

// ReplaceAccounts stores a new snapshot for category
func (r *SQLiteRepository) ReplaceAccounts(ctx context.Context, category models.Category, accounts []models.Account) error {
	return r.replaceAccounts(ctx, category, accounts)
}

// GetSnapshot returns the snapshot of category
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, category models.Category) (*Snapshot, error) {
	return r.getSnapshot(ctx, category)
}

// GetAccount retrieves an account by ID
func (r *SQLiteRepository) GetAccount(ctx context.Context, category models.Category, id string) (*models.Account, error) {
	return r.getAccount(ctx, category, id)
}

// UpsertAccount inserts or replaces an account
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, category models.Category, account models.Account) error {
	return r.upsertAccount(ctx, category, account)
}

// DeleteAccount deletes an account and its descendants
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, category models.Category, id string) error {
	return r.deleteAccount(ctx, category, id)
}
