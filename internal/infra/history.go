package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/zacteqye72-art/project-focus-app/internal/domain"
)

const historyDBName = "focus.db"

// EncryptedHistory implements domain.SessionStore and
// domain.SecretStore using a SQLCipher encrypted SQLite database.
// Session subjects and nudge counts are personal data, so the whole
// file is encrypted at rest.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the encrypted history database.
// The key is applied as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Verify the key actually decrypts the file.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

func (h *EncryptedHistory) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		minutes REAL NOT NULL,
		reminders INTEGER NOT NULL DEFAULT 0,
		nudges INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := h.db.Exec(schema)
	return err
}

// DBPath returns the database file path.
func (h *EncryptedHistory) DBPath() string {
	return h.dbPath
}

// --- domain.SessionStore implementation ---

// AddSession records a completed focus session.
func (h *EncryptedHistory) AddSession(rec domain.SessionRecord) error {
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO sessions (id, subject, started_at, ended_at, minutes, reminders, nudges)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Subject, rec.StartedAt.Unix(), rec.EndedAt.Unix(),
		rec.Minutes, rec.Reminders, rec.Nudges,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ListSessions returns sessions newest first, up to limit.
// A limit of zero or less means no limit.
func (h *EncryptedHistory) ListSessions(limit int) ([]domain.SessionRecord, error) {
	query := `SELECT id, subject, started_at, ended_at, minutes, reminders, nudges
		FROM sessions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var startedAt, endedAt int64
		if err := rows.Scan(&rec.ID, &rec.Subject, &startedAt, &endedAt,
			&rec.Minutes, &rec.Reminders, &rec.Nudges); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(startedAt, 0)
		rec.EndedAt = time.Unix(endedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ClearSessions deletes all session history.
func (h *EncryptedHistory) ClearSessions() error {
	_, err := h.db.Exec(`DELETE FROM sessions`)
	return err
}

// --- domain.SecretStore implementation ---

// GetSecret retrieves a secret by key.
func (h *EncryptedHistory) GetSecret(key string) (string, error) {
	var value string
	err := h.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("secret %q not found", key)
	}
	return value, err
}

// SetSecret stores a secret.
func (h *EncryptedHistory) SetSecret(key, value string) error {
	now := time.Now().Unix()
	_, err := h.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, now)
	return err
}

// Close releases the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

var (
	_ domain.SessionStore = (*EncryptedHistory)(nil)
	_ domain.SecretStore  = (*EncryptedHistory)(nil)
)
