package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Anonymus123-11/login-register/account"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Dialect selects the database flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ErrUnavailable wraps driver failures that are not constraint violations.
var ErrUnavailable = errors.New("sql account store unavailable")

// Store implements account.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ account.Store = (*Store)(nil)

// Open connects to dsn, applies pending migrations and returns a Store.
// For SQLite, dsn is a file path or ":memory:".
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	var driver, gooseDialect string
	switch dialect {
	case DialectSQLite:
		driver, gooseDialect = "sqlite", "sqlite3"
	case DialectPostgres:
		driver, gooseDialect = "pgx", "postgres"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect == DialectSQLite {
		// one writer; an in-memory database also lives in a single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		pragmas := []string{
			"PRAGMA journal_mode = WAL;",
			"PRAGMA synchronous = NORMAL;",
			"PRAGMA busy_timeout = 5000;",
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	}

	if err := migrate(ctx, db, gooseDialect); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: dialect}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const columns = `id, handle, address, secret_hash, role, verified,
	verification_hash, verification_expires_at, verification_attempts,
	reset_hash, reset_expires_at, reset_attempts,
	refresh_digest, avatar_ref, version, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, acc *account.Account) error {
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}

	vHash, vExp, vAttempts := codeColumns(acc.Verification)
	rHash, rExp, rAttempts := codeColumns(acc.Reset)

	query := `INSERT INTO accounts (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		acc.ID,
		acc.Handle,
		acc.Address,
		acc.SecretHash,
		string(acc.Role),
		boolToInt(acc.Verified),
		vHash, vExp, vAttempts,
		rHash, rExp, rAttempts,
		nullString(acc.RefreshDigest),
		acc.AvatarRef,
		int64(1),
		acc.CreatedAt.UnixMilli(),
		acc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return s.wrap(err)
	}
	acc.Version = 1
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return s.findOne(ctx, `WHERE id = ?`, id)
}

func (s *Store) FindByHandle(ctx context.Context, handle string) (*account.Account, error) {
	return s.findOne(ctx, `WHERE handle = ?`, handle)
}

func (s *Store) FindByAddress(ctx context.Context, address string) (*account.Account, error) {
	return s.findOne(ctx, `WHERE address = ?`, address)
}

func (s *Store) FindByHandleOrAddress(ctx context.Context, handle, address string) (*account.Account, error) {
	return s.findOne(ctx, `WHERE handle = ? OR address = ? ORDER BY created_at LIMIT 1`, handle, address)
}

func (s *Store) FindByRefreshToken(ctx context.Context, digest string) (*account.Account, error) {
	if digest == "" {
		return nil, account.ErrNotFound
	}
	return s.findOne(ctx, `WHERE refresh_digest = ?`, digest)
}

func (s *Store) Update(ctx context.Context, acc *account.Account, expectedVersion int64) error {
	if acc == nil || acc.ID == "" {
		return errors.New("account id required")
	}

	vHash, vExp, vAttempts := codeColumns(acc.Verification)
	rHash, rExp, rAttempts := codeColumns(acc.Reset)

	query := `UPDATE accounts SET
			handle = ?, address = ?, secret_hash = ?, role = ?, verified = ?,
			verification_hash = ?, verification_expires_at = ?, verification_attempts = ?,
			reset_hash = ?, reset_expires_at = ?, reset_attempts = ?,
			refresh_digest = ?, avatar_ref = ?, updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(query),
		acc.Handle,
		acc.Address,
		acc.SecretHash,
		string(acc.Role),
		boolToInt(acc.Verified),
		vHash, vExp, vAttempts,
		rHash, rExp, rAttempts,
		nullString(acc.RefreshDigest),
		acc.AvatarRef,
		acc.UpdatedAt.UnixMilli(),
		acc.ID,
		expectedVersion,
	)
	if err != nil {
		return s.wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap(err)
	}
	if n == 0 {
		if _, err := s.FindByID(ctx, acc.ID); err != nil {
			return err
		}
		return account.ErrVersionConflict
	}

	acc.Version = expectedVersion + 1
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM accounts WHERE id = ?`), id)
	if err != nil {
		return s.wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap(err)
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]*account.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer rows.Close()

	out := []*account.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, s.wrap(err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err)
	}
	return out, nil
}

func (s *Store) findOne(ctx context.Context, where string, args ...any) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM accounts `+where), args...)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, s.wrap(err)
	}
	return acc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*account.Account, error) {
	var (
		acc                  account.Account
		role                 string
		verified             int
		vHash, rHash         sql.NullString
		vExp, rExp           sql.NullInt64
		vAttempts, rAttempts int
		refresh              sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&acc.ID,
		&acc.Handle,
		&acc.Address,
		&acc.SecretHash,
		&role,
		&verified,
		&vHash, &vExp, &vAttempts,
		&rHash, &rExp, &rAttempts,
		&refresh,
		&acc.AvatarRef,
		&acc.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Role = account.Role(role)
	acc.Verified = verified != 0
	acc.Verification = pendingCode(vHash, vExp, vAttempts)
	acc.Reset = pendingCode(rHash, rExp, rAttempts)
	acc.RefreshDigest = refresh.String
	acc.CreatedAt = time.UnixMilli(createdAt).UTC()
	acc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &acc, nil
}

func codeColumns(c *account.PendingCode) (sql.NullString, sql.NullInt64, int) {
	if c == nil {
		return sql.NullString{}, sql.NullInt64{}, 0
	}
	return sql.NullString{String: c.Hash, Valid: true},
		sql.NullInt64{Int64: c.ExpiresAt.UnixMilli(), Valid: true},
		c.Attempts
}

func pendingCode(hash sql.NullString, expires sql.NullInt64, attempts int) *account.PendingCode {
	if !hash.Valid {
		return nil
	}
	return &account.PendingCode{
		Hash:      hash.String,
		ExpiresAt: time.UnixMilli(expires.Int64).UTC(),
		Attempts:  attempts,
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) wrap(err error) error {
	if isUniqueViolation(err) {
		return account.ErrDuplicate
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
