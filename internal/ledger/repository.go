package ledger

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Repository stores ledger entries in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id            UUID PRIMARY KEY,
			account_code  TEXT NOT NULL,
			entry_type    TEXT NOT NULL,
			amount        INTEGER NOT NULL,
			balance_after INTEGER NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS ledger_entries_account_code_idx ON ledger_entries (account_code, created_at DESC)
	`)
	return err
}

func (r *Repository) Record(ctx context.Context, e *models.LedgerEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, account_code, entry_type, amount, balance_after, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.AccountCode, e.EntryType, e.Amount, e.BalanceAfter, e.Reason).Scan(&e.CreatedAt)
}

func (r *Repository) ListByCode(ctx context.Context, code string, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_code, entry_type, amount, balance_after, reason, created_at
		FROM ledger_entries WHERE account_code = $1 ORDER BY created_at DESC LIMIT $2
	`, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountCode, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// MemoryRecorder keeps the most recent entries in process when no database is
// configured.
type MemoryRecorder struct {
	mu      sync.Mutex
	limit   int
	entries []*models.LedgerEntry
}

func NewMemoryRecorder(limit int) *MemoryRecorder {
	return &MemoryRecorder{limit: limit}
}

func (m *MemoryRecorder) Record(_ context.Context, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
	return nil
}

// ListByCode returns newest first.
func (m *MemoryRecorder) ListByCode(_ context.Context, code string, limit int) ([]*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].AccountCode != code {
			continue
		}
		cp := *m.entries[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
