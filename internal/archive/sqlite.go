package archive

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists archive records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the archive database and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive store: open: %w", err)
	}

	// WAL so the ops server can read while the sink writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive store: wal: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS archive (
			id             TEXT PRIMARY KEY,
			ticket_id      INTEGER NOT NULL,
			item           TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			buyer_label    TEXT NOT NULL DEFAULT '',
			seller_label   TEXT NOT NULL DEFAULT '',
			buyer_id       TEXT NOT NULL DEFAULT '',
			seller_id      TEXT NOT NULL DEFAULT '',
			creator_id     TEXT NOT NULL,
			nominal        INTEGER NOT NULL,
			fee            INTEGER NOT NULL,
			total          INTEGER NOT NULL,
			disposition    TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			closed_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_archive_ticket ON archive(ticket_id);
		CREATE INDEX IF NOT EXISTS idx_archive_disposition ON archive(disposition);
	`)
	if err != nil {
		return fmt.Errorf("archive store: migrate: %w", err)
	}
	return nil
}

// Save inserts one archive record.
func (s *Store) Save(rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO archive (id, ticket_id, item, payment_method, buyer_label, seller_label,
			buyer_id, seller_id, creator_id, nominal, fee, total, disposition, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.TicketID, rec.Item, rec.PaymentMethod, rec.BuyerLabel, rec.SellerLabel,
		rec.BuyerID, rec.SellerID, rec.CreatorID, rec.Nominal, rec.Fee, rec.Total,
		rec.Disposition, rec.CreatedAt.Format(time.RFC3339), rec.ClosedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("archive store: save: %w", err)
	}
	return nil
}

// ByTicket returns the record archived for the given ticket id.
func (s *Store) ByTicket(ticketID uint64) (*Record, error) {
	row := s.db.QueryRow(`SELECT id, ticket_id, item, payment_method, buyer_label, seller_label,
		buyer_id, seller_id, creator_id, nominal, fee, total, disposition, created_at, closed_at
		FROM archive WHERE ticket_id = ? ORDER BY closed_at DESC LIMIT 1`, ticketID)

	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("archive: ticket %d not found", ticketID)
		}
		return nil, fmt.Errorf("archive store: get: %w", err)
	}
	return rec, nil
}

// List returns the most recently closed records, optionally filtered by
// disposition. limit <= 0 means no limit.
func (s *Store) List(disposition string, limit int) ([]*Record, error) {
	query := `SELECT id, ticket_id, item, payment_method, buyer_label, seller_label,
		buyer_id, seller_id, creator_id, nominal, fee, total, disposition, created_at, closed_at
		FROM archive WHERE 1=1`
	var args []any

	if disposition != "" {
		query += " AND disposition = ?"
		args = append(args, disposition)
	}
	query += " ORDER BY closed_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive store: list: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("archive store: list scan: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of archived records with the given
// disposition, or all records when disposition is empty.
func (s *Store) Count(disposition string) (int, error) {
	query := "SELECT COUNT(*) FROM archive"
	var args []any
	if disposition != "" {
		query += " WHERE disposition = ?"
		args = append(args, disposition)
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("archive store: count: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var rec Record
	var createdAt, closedAt string

	err := row.Scan(&rec.ID, &rec.TicketID, &rec.Item, &rec.PaymentMethod, &rec.BuyerLabel,
		&rec.SellerLabel, &rec.BuyerID, &rec.SellerID, &rec.CreatorID, &rec.Nominal,
		&rec.Fee, &rec.Total, &rec.Disposition, &createdAt, &closedAt)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.ClosedAt, _ = time.Parse(time.RFC3339, closedAt)
	return &rec, nil
}
