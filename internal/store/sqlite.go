// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides registration/sent-message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/civicbots/courtbot/internal/registration"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path. The schema is
// created if it doesn't exist and pending migrations are applied, so this
// constructor doubles as the one-time migrate call. Parent directories are
// created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS registrations (
			registration_id    TEXT PRIMARY KEY,
			contact            TEXT NOT NULL,
			communication_type TEXT NOT NULL,
			case_number        TEXT NOT NULL,
			name               TEXT,
			state              INTEGER NOT NULL,
			created_at         DATETIME NOT NULL,
			updated_at         DATETIME NOT NULL,

			CHECK (state BETWEEN 0 AND 4)
		);

		CREATE INDEX IF NOT EXISTS idx_registrations_contact
			ON registrations(contact, communication_type);

		CREATE INDEX IF NOT EXISTS idx_registrations_state
			ON registrations(state);

		CREATE TABLE IF NOT EXISTS sent_messages (
			id                 TEXT PRIMARY KEY,
			contact            TEXT NOT NULL,
			communication_type TEXT NOT NULL,
			name               TEXT NOT NULL,
			event_date         TEXT NOT NULL,
			event_description  TEXT NOT NULL,
			case_number        TEXT NOT NULL DEFAULT '',
			created_at         DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_sent_messages_key
			ON sent_messages(contact, communication_type, name, event_date, event_description, case_number);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// runMigrations applies schema changes for databases created before the
// dedupe key grew the case_number column.
func (s *SQLiteStore) runMigrations() error {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('sent_messages') WHERE name = 'case_number'`).Scan(&exists)
	if err == nil {
		return nil
	}

	if _, err := s.db.Exec(`ALTER TABLE sent_messages ADD COLUMN case_number TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("adding case_number column to sent_messages: %w", err)
	}
	s.logger.Info("applied migration", "column", "case_number", "table", "sent_messages")

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateRegistration inserts a new registration, assigning an id and
// timestamps, and returns the id.
func (s *SQLiteStore) CreateRegistration(ctx context.Context, reg *registration.Registration) (string, error) {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	query := `
		INSERT INTO registrations (registration_id, contact, communication_type, case_number, name, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		reg.ID,
		reg.Contact,
		reg.CommunicationType,
		reg.CaseNumber,
		reg.Name,
		int(reg.State),
		reg.CreatedAt.UTC().Format(time.RFC3339),
		reg.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("inserting registration: %w", err)
	}

	s.logger.Debug("created registration",
		"id", reg.ID, "case_number", reg.CaseNumber, "communication_type", reg.CommunicationType)
	return reg.ID, nil
}

const registrationColumns = `registration_id, contact, communication_type, case_number, name, state, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (*registration.Registration, error) {
	var reg registration.Registration
	var name sql.NullString
	var state int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&reg.ID,
		&reg.Contact,
		&reg.CommunicationType,
		&reg.CaseNumber,
		&name,
		&state,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	reg.Name = name.String
	reg.State = registration.State(state)

	reg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	reg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &reg, nil
}

// GetRegistrationByID retrieves a registration by id.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetRegistrationByID(ctx context.Context, id string) (*registration.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE registration_id = ?`

	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying registration: %w", err)
	}
	return reg, nil
}

// GetRegistrationsByContact lists a contact's registrations for one
// communication type, oldest first.
func (s *SQLiteStore) GetRegistrationsByContact(ctx context.Context, contact, communicationType string) ([]*registration.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE contact = ? AND communication_type = ?
		ORDER BY created_at
	`
	return s.queryRegistrations(ctx, query, contact, communicationType)
}

// GetRegistrationsByState lists every registration in the given state,
// oldest first.
func (s *SQLiteStore) GetRegistrationsByState(ctx context.Context, state registration.State) ([]*registration.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE state = ?
		ORDER BY created_at
	`
	return s.queryRegistrations(ctx, query, int(state))
}

func (s *SQLiteStore) queryRegistrations(ctx context.Context, query string, args ...any) ([]*registration.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	var regs []*registration.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registrations: %w", err)
	}
	return regs, nil
}

// UpdateRegistrationName sets the resolved party name.
// Returns ErrNotFound if the registration doesn't exist.
func (s *SQLiteStore) UpdateRegistrationName(ctx context.Context, id, name string) error {
	query := `UPDATE registrations SET name = ?, updated_at = ? WHERE registration_id = ?`

	result, err := s.db.ExecContext(ctx, query, name, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating registration name: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated registration name", "id", id, "name", name)
	return nil
}

// UpdateRegistrationState moves a registration from one state to another with
// a compare-and-set guard on the current state. Returns ErrStaleRegistration
// when the registration exists but is no longer in from, ErrNotFound when it
// doesn't exist at all.
func (s *SQLiteStore) UpdateRegistrationState(ctx context.Context, id string, from, to registration.State) error {
	query := `UPDATE registrations SET state = ?, updated_at = ? WHERE registration_id = ? AND state = ?`

	result, err := s.db.ExecContext(ctx, query,
		int(to), time.Now().UTC().Format(time.RFC3339), id, int(from))
	if err != nil {
		return fmt.Errorf("updating registration state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM registrations WHERE registration_id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking registration: %w", err)
		}
		return ErrStaleRegistration
	}

	s.logger.Debug("updated registration state", "id", id, "from", from, "to", to)
	return nil
}

// GetSentMessage looks up the dedupe record matching the key fields of m.
// Returns ErrNotFound when no reminder for that event has been recorded.
func (s *SQLiteStore) GetSentMessage(ctx context.Context, m SentMessage) (*SentMessage, error) {
	query := `
		SELECT contact, communication_type, name, event_date, event_description, case_number, created_at
		FROM sent_messages
		WHERE contact = ? AND communication_type = ? AND name = ?
		  AND event_date = ? AND event_description = ? AND case_number = ?
	`

	var found SentMessage
	var createdAtStr string
	err := s.db.QueryRowContext(ctx, query,
		m.Contact, m.CommunicationType, m.Name, m.EventDate, m.EventDescription, m.CaseNumber,
	).Scan(
		&found.Contact,
		&found.CommunicationType,
		&found.Name,
		&found.EventDate,
		&found.EventDescription,
		&found.CaseNumber,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying sent message: %w", err)
	}

	found.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &found, nil
}

// CreateSentMessage records that a reminder for the event went out.
// Returns ErrDuplicateSentMessage when the key already exists.
func (s *SQLiteStore) CreateSentMessage(ctx context.Context, m SentMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sent_messages (id, contact, communication_type, name, event_date, event_description, case_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		m.Contact,
		m.CommunicationType,
		m.Name,
		m.EventDate,
		m.EventDescription,
		m.CaseNumber,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateSentMessage
		}
		return fmt.Errorf("inserting sent message: %w", err)
	}

	s.logger.Debug("recorded sent message",
		"contact", m.Contact, "case_number", m.CaseNumber, "event_date", m.EventDate)
	return nil
}
