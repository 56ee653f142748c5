package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zms-erp/ledgertree/models"
)

// sqlRepository holds the queries shared by the SQL backends. Queries are
// written with ? placeholders and rebound for the dialect.
type sqlRepository struct {
	db       *sql.DB
	numbered bool
}

func (r *sqlRepository) rebind(query string) string {
	if !r.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *sqlRepository) close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *sqlRepository) replaceAccounts(ctx context.Context, category models.Category, accounts []models.Account) error {
	if category == "" {
		return ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM accounts WHERE category = ?"), string(category)); err != nil {
		return fmt.Errorf("error clearing snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.rebind(
		"INSERT INTO accounts (category, id, listid, description, parent_account_id, position) VALUES (?, ?, ?, ?, ?, ?)",
	))
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range dedupe(accounts) {
		if _, err := stmt.ExecContext(ctx, string(category), a.ID, a.ListID, a.Description, a.ParentAccountID, i); err != nil {
			return fmt.Errorf("error inserting account %s: %w", a.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO account_snapshots (category, refreshed_at) VALUES (?, ?)
		ON CONFLICT (category) DO UPDATE SET refreshed_at = excluded.refreshed_at
	`), string(category), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error recording snapshot: %w", err)
	}

	return tx.Commit()
}

func (r *sqlRepository) getSnapshot(ctx context.Context, category models.Category) (*Snapshot, error) {
	snap := &Snapshot{Category: category}
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT refreshed_at FROM account_snapshots WHERE category = ?"),
		string(category),
	).Scan(&snap.RefreshedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("error getting snapshot: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(
		"SELECT id, listid, description, parent_account_id FROM accounts WHERE category = ? ORDER BY position",
	), string(category))
	if err != nil {
		return nil, fmt.Errorf("error getting accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return snap, nil
}

func (r *sqlRepository) getAccount(ctx context.Context, category models.Category, id string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(
		"SELECT id, listid, description, parent_account_id FROM accounts WHERE category = ? AND id = ?",
	), string(category), id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *sqlRepository) upsertAccount(ctx context.Context, category models.Category, account models.Account) error {
	if category == "" || !validAccount(account) {
		return ErrInvalidInput
	}
	account = account.Normalized()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx, r.rebind(
		"SELECT COALESCE(MAX(position), -1) + 1 FROM accounts WHERE category = ?",
	), string(category)).Scan(&next)
	if err != nil {
		return fmt.Errorf("error getting next position: %w", err)
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO accounts (category, id, listid, description, parent_account_id, position)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (category, id) DO UPDATE SET
			listid = excluded.listid,
			description = excluded.description,
			parent_account_id = excluded.parent_account_id
	`), string(category), account.ID, account.ListID, account.Description, account.ParentAccountID, next)
	if err != nil {
		return fmt.Errorf("error upserting account: %w", err)
	}

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO account_snapshots (category, refreshed_at) VALUES (?, ?)
		ON CONFLICT (category) DO NOTHING
	`), string(category), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error recording snapshot: %w", err)
	}

	return tx.Commit()
}

func (r *sqlRepository) deleteAccount(ctx context.Context, category models.Category, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// The UNION drops repeated ids so a parent cycle cannot recurse forever.
	result, err := tx.ExecContext(ctx, r.rebind(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM accounts WHERE category = ? AND id = ?
			UNION
			SELECT a.id FROM accounts a
			INNER JOIN subtree s ON a.parent_account_id = s.id
			WHERE a.category = ?
		)
		DELETE FROM accounts WHERE category = ? AND id IN (SELECT id FROM subtree)
	`), string(category), id, string(category), string(category))
	if err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var a models.Account
	var parentID sql.NullString
	if err := row.Scan(&a.ID, &a.ListID, &a.Description, &parentID); err != nil {
		return nil, err
	}
	if parentID.Valid && parentID.String != "" {
		a.ParentAccountID = &parentID.String
	}
	return &a, nil
}
