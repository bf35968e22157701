// Package archive implements the named-snapshot store of spec §4.11: whole
// saved-core blobs (the same "24kF" byte stream internal/persistence
// produces) kept as rows in a real SQL database rather than loose files,
// selected by DSN scheme exactly the way the teacher's db_manager.go picked
// a driver by dbType string.
package archive

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"golang.org/x/crypto/blake2b"

	"calc42/internal/calcerr"
)

// Store is a single named-snapshot archive backed by one SQL connection.
// Unlike db_manager.go's DBManager, which multiplexed many named
// connections at once, an archive only ever talks to the one database a
// calc42 session was pointed at; the connection-map indirection the
// teacher needed for a multi-tenant tool has no job to do here.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// driverFor maps a DSN scheme to a registered database/sql driver name, the
// same dispatch db_manager.go's Connect did on an explicit dbType argument,
// generalized to read the scheme out of the DSN itself so callers only ever
// pass one string.
func driverFor(dsn string) (driver, trimmed string, cerr *calcerr.CalcError) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn, nil
	default:
		// no recognized scheme: treat the whole string as a sqlite path,
		// matching db_manager.go's "sqlite"/"sqlite3" default case.
		return "sqlite", dsn, nil
	}
}

// Open connects to the archive database named by dsn and ensures the
// snapshot table exists. Connection-pool settings mirror db_manager.go's
// Connect (10 max open, 5 max idle, 5 minute max lifetime).
func Open(dsn string) (*Store, *calcerr.CalcError) {
	driver, trimmed, derr := driverFor(dsn)
	if derr != nil {
		return nil, derr
	}

	db, err := sql.Open(driver, trimmed)
	if err != nil {
		return nil, calcerr.InternalError(fmt.Sprintf("archive: open %s: %v", driver, err))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, calcerr.InternalError(fmt.Sprintf("archive: ping %s: %v", driver, err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if cerr := s.ensureSchema(driver); cerr != nil {
		db.Close()
		return nil, cerr
	}
	return s, nil
}

func (s *Store) ensureSchema(driver string) *calcerr.CalcError {
	// sqlite/mysql/postgres/sqlserver all accept this DDL as written;
	// BLOB/VARBINARY naming differences are handled by each driver's own
	// type affinity rules rather than branching per driver here.
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS calc42_snapshots (
		name       VARCHAR(255) PRIMARY KEY,
		body       BLOB NOT NULL,
		checksum   BLOB NOT NULL,
		created_at BIGINT NOT NULL
	)`)
	if err != nil {
		return calcerr.InternalError(fmt.Sprintf("archive: schema init: %v", err))
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveAs stores body (a full persistence.Save byte stream) under name,
// replacing any existing snapshot with that name. createdAt is supplied by
// the caller rather than computed with time.Now here, keeping this package
// free of wall-clock reads so it stays trivially testable against a fake
// clock.
func (s *Store) SaveAs(name string, body []byte, createdAt int64) *calcerr.CalcError {
	sum := blake2b.Sum256(body)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM calc42_snapshots WHERE name = ?`, name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO calc42_snapshots (name, body, checksum, created_at) VALUES (?, ?, ?, ?)`,
			name, body, sum[:], createdAt,
		)
		return err
	})
	if err != nil {
		return calcerr.InternalError(fmt.Sprintf("archive: save_as %q: %v", name, err))
	}
	return nil
}

// Load retrieves the snapshot stored under name and verifies its BLAKE2b-256
// checksum (spec §4.11), refusing to hand back a row that's been corrupted
// at rest.
func (s *Store) Load(name string) ([]byte, *calcerr.CalcError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body, checksum []byte
	row := s.db.QueryRow(`SELECT body, checksum FROM calc42_snapshots WHERE name = ?`, name)
	if err := row.Scan(&body, &checksum); err != nil {
		if err == sql.ErrNoRows {
			return nil, calcerr.Nonexistent()
		}
		return nil, calcerr.InternalError(fmt.Sprintf("archive: load %q: %v", name, err))
	}

	sum := blake2b.Sum256(body)
	if string(sum[:]) != string(checksum) {
		return nil, calcerr.InternalError(fmt.Sprintf("archive: snapshot %q failed checksum verification", name))
	}
	return body, nil
}

// Delete removes a named snapshot. Returns false, nil if no such snapshot
// existed.
func (s *Store) Delete(name string) (bool, *calcerr.CalcError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM calc42_snapshots WHERE name = ?`, name)
	if err != nil {
		return false, calcerr.InternalError(fmt.Sprintf("archive: delete %q: %v", name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, calcerr.InternalError(fmt.Sprintf("archive: delete %q: %v", name, err))
	}
	return n > 0, nil
}

// Entry is one row of a LIST_SAVES listing: name, size, and creation time,
// without the blob body itself.
type Entry struct {
	Name      string
	Size      int
	CreatedAt int64
}

// List implements LIST_SAVES: every snapshot name, in creation order, with
// its body size rather than the body itself.
func (s *Store) List() ([]Entry, *calcerr.CalcError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT name, LENGTH(body), created_at FROM calc42_snapshots ORDER BY created_at ASC`)
	if err != nil {
		return nil, calcerr.InternalError(fmt.Sprintf("archive: list: %v", err))
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Size, &e.CreatedAt); err != nil {
			return nil, calcerr.InternalError(fmt.Sprintf("archive: list scan: %v", err))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, calcerr.InternalError(fmt.Sprintf("archive: list: %v", err))
	}
	return out, nil
}

// withTx runs fn inside a transaction, matching db_manager.go's Transaction
// helper: commit on success, roll back and surface the original error on
// failure.
func (s *Store) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
