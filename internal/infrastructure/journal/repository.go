package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"wethcycle/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Repository is an append-only audit log of confirmed transactions. The cycle
// never reads it back; it exists for the status API and offline reporting.
type Repository struct {
	db     *sql.DB
	driver string
}

// Entry is a journal row.
type Entry struct {
	ChainID           uint64
	Round             int
	Kind              string
	TxHash            string
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice string
	FeeWei            string
	Status            uint64
	CreatedAt         time.Time
}

func NewRepository(driver, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("journal dsn is required")
	}
	switch driver {
	case "sqlite", "mysql":
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	repo := &Repository{db: db, driver: driver}
	if err := repo.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) createSchema() error {
	schema := `CREATE TABLE IF NOT EXISTS tx_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chain_id INTEGER NOT NULL,
		round INTEGER NOT NULL,
		kind TEXT NOT NULL,
		tx_hash TEXT NOT NULL UNIQUE,
		block_number INTEGER NOT NULL,
		gas_used INTEGER NOT NULL,
		effective_gas_price TEXT NOT NULL,
		fee_wei TEXT NOT NULL,
		status INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if r.driver == "mysql" {
		schema = `CREATE TABLE IF NOT EXISTS tx_journal (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			chain_id BIGINT UNSIGNED NOT NULL,
			round INT NOT NULL,
			kind VARCHAR(16) NOT NULL,
			tx_hash VARCHAR(66) NOT NULL UNIQUE,
			block_number BIGINT UNSIGNED NOT NULL,
			gas_used BIGINT UNSIGNED NOT NULL,
			effective_gas_price VARCHAR(78) NOT NULL,
			fee_wei VARCHAR(78) NOT NULL,
			status TINYINT UNSIGNED NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := r.db.Exec(schema)
	return err
}

func (r *Repository) RecordOutcome(ctx context.Context, outcome domain.TxOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	insert := `INSERT INTO tx_journal (chain_id, round, kind, tx_hash, block_number, gas_used, effective_gas_price, fee_wei, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO NOTHING`
	if r.driver == "mysql" {
		insert = `INSERT IGNORE INTO tx_journal (chain_id, round, kind, tx_hash, block_number, gas_used, effective_gas_price, fee_wei, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err := r.db.ExecContext(ctx, insert,
		outcome.ChainID,
		outcome.Round,
		string(outcome.Kind),
		outcome.TxHash,
		outcome.BlockNumber,
		outcome.GasUsed,
		outcome.EffectiveGasPrice.String(),
		outcome.FeeWei.String(),
		outcome.Status,
	)
	return err
}

// TotalFee sums fee_wei across all journaled transactions. Fees are stored as
// decimal strings because they can exceed 64 bits.
func (r *Repository) TotalFee(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT fee_wei FROM tx_journal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	total := new(big.Int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		fee, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("malformed fee_wei %q in journal", raw)
		}
		total.Add(total, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return total, nil
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `SELECT chain_id, round, kind, tx_hash, block_number, gas_used, effective_gas_price, fee_wei, status, created_at
		FROM tx_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt sql.NullTime
		if err := rows.Scan(&entry.ChainID, &entry.Round, &entry.Kind, &entry.TxHash, &entry.BlockNumber, &entry.GasUsed, &entry.EffectiveGasPrice, &entry.FeeWei, &entry.Status, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
