package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/arkaesthetics/ark-payments/internal/config"
)

// Postgres is the durable session store backend. It implements the same
// merge semantics as Memory in SQL so the reconciliation cascade does not
// care which backend it runs against.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects, tunes the pool and ensures the sessions table.
func OpenPostgres(cfg config.DatabaseConfig) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password,
	)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	log.Printf("[DB] session store connected to %s", cfg.Database)
	return p, nil
}

func (p *Postgres) ensureSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS ark_sessions (
			ref             TEXT PRIMARY KEY,
			order_id        TEXT NOT NULL DEFAULT '',
			payment_link_id TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure ark_sessions table: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Put(ref string, s Session) error {
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := p.db.Exec(`
		INSERT INTO ark_sessions (ref, order_id, payment_link_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ref) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			payment_link_id = EXCLUDED.payment_link_id,
			created_at = EXCLUDED.created_at
	`, ref, s.OrderID, s.PaymentLinkID, created)
	if err != nil {
		return fmt.Errorf("put session %s: %w", ref, err)
	}
	return nil
}

// Merge fills only empty columns; an existing non-empty order_id or
// payment_link_id always wins over the incoming value.
func (p *Postgres) Merge(ref string, s Session) error {
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := p.db.Exec(`
		INSERT INTO ark_sessions (ref, order_id, payment_link_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ref) DO UPDATE SET
			order_id = COALESCE(NULLIF(ark_sessions.order_id, ''), EXCLUDED.order_id),
			payment_link_id = COALESCE(NULLIF(ark_sessions.payment_link_id, ''), EXCLUDED.payment_link_id)
	`, ref, s.OrderID, s.PaymentLinkID, created)
	if err != nil {
		return fmt.Errorf("merge session %s: %w", ref, err)
	}
	return nil
}

func (p *Postgres) Get(ref string) (Session, bool, error) {
	var s Session
	err := p.db.QueryRow(`
		SELECT order_id, payment_link_id, created_at
		FROM ark_sessions WHERE ref = $1
	`, ref).Scan(&s.OrderID, &s.PaymentLinkID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("get session %s: %w", ref, err)
	}
	return s, true, nil
}
