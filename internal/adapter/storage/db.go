package storage

import (
	"fmt"
	"log"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_ledger_schema",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					id           VARCHAR(64) PRIMARY KEY,
					display_name VARCHAR(255) NOT NULL,
					kyc_status   VARCHAR(16) NOT NULL,
					cash_balance DECIMAL(18,2) NOT NULL DEFAULT 0,
					created_at   DATETIME(6) NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS properties (
					id                     VARCHAR(64) PRIMARY KEY,
					name                   VARCHAR(255) NOT NULL,
					location               VARCHAR(255) NOT NULL,
					total_value            DECIMAL(18,2) NOT NULL,
					token_price            DECIMAL(18,2) NOT NULL,
					tokens_available       INT NOT NULL,
					monthly_rent_per_token DECIMAL(18,4) NOT NULL,
					annual_yield           DECIMAL(6,2) NOT NULL,
					description            TEXT NOT NULL,
					image_url              VARCHAR(512) NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE IF NOT EXISTS holdings (
					account_id     VARCHAR(64) NOT NULL,
					property_id    VARCHAR(64) NOT NULL,
					quantity       INT NOT NULL,
					last_payout_at DATETIME(6) NOT NULL,
					PRIMARY KEY (account_id, property_id)
				)`,
				`CREATE TABLE IF NOT EXISTS transactions (
					id          CHAR(36) PRIMARY KEY,
					account_id  VARCHAR(64) NOT NULL,
					type        VARCHAR(32) NOT NULL,
					amount      DECIMAL(18,2) NOT NULL,
					description VARCHAR(255) NOT NULL,
					timestamp   DATETIME(6) NOT NULL,
					INDEX idx_transactions_account_ts (account_id, timestamp)
				)`,
				`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
					id         CHAR(36) PRIMARY KEY,
					account_id VARCHAR(64) NOT NULL,
					value      DECIMAL(18,2) NOT NULL,
					timestamp  DATETIME(6) NOT NULL,
					INDEX idx_snapshots_account_ts (account_id, timestamp)
				)`,
				`CREATE TABLE IF NOT EXISTS proposals (
					id            CHAR(36) PRIMARY KEY,
					property_id   VARCHAR(64) NOT NULL,
					property_name VARCHAR(255) NOT NULL,
					title         VARCHAR(255) NOT NULL,
					description   TEXT NOT NULL,
					yes_votes     INT NOT NULL DEFAULT 0,
					no_votes      INT NOT NULL DEFAULT 0
				)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS proposals`,
				`DROP TABLE IF EXISTS portfolio_snapshots`,
				`DROP TABLE IF EXISTS transactions`,
				`DROP TABLE IF EXISTS holdings`,
				`DROP TABLE IF EXISTS properties`,
				`DROP TABLE IF EXISTS accounts`,
			},
		},
	},
}

// NewDB connects to MySQL and applies the embedded schema migrations.
func NewDB(dsn string) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// Guards check rows matched, not rows changed: without CLIENT_FOUND_ROWS
	// a no-op UPDATE (zero-amount credit) reports 0 rows and would read as a
	// lost write race.
	cfg.ClientFoundRows = true

	db, err := sqlx.Connect("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	n, err := migrate.Exec(db.DB, "mysql", migrations, migrate.Up)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if n > 0 {
		log.Printf("applied %d migrations", n)
	}
	return db, nil
}
