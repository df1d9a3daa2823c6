package memberships

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all membership engine migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create item_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS item_memberships (
					id UUID PRIMARY KEY,
					item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
					account_id VARCHAR(255) NOT NULL,
					permission VARCHAR(16) NOT NULL,
					creator_id VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(item_id, account_id)
				);

				CREATE INDEX idx_item_memberships_account_id ON item_memberships(account_id);
				CREATE INDEX idx_item_memberships_item_id ON item_memberships(item_id);
			`,
		},
		{
			Version:     2,
			Description: "Create item_visibilities table",
			SQL: `
				CREATE TABLE IF NOT EXISTS item_visibilities (
					id UUID PRIMARY KEY,
					item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
					type VARCHAR(16) NOT NULL,
					creator_id VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(item_id, type)
				);

				CREATE INDEX idx_item_visibilities_item_id ON item_visibilities(item_id);
			`,
		},
		{
			Version:     3,
			Description: "Create membership_requests table",
			SQL: `
				CREATE TABLE IF NOT EXISTS membership_requests (
					id UUID PRIMARY KEY,
					item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
					account_id VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(item_id, account_id)
				);
			`,
		},
	}
}

// RunMigrations applies pending membership engine migrations. The items
// migrations must have run first; the tables here reference items(id).
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS membership_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM membership_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO membership_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
