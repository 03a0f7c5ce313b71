package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"finanzas/internal/core"
)

// Dialect selects the SQL flavour of a repository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var ErrUnknownDialect = errors.New("unknown sql dialect")

func (d Dialect) driver() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// PoolConfig bounds the connection pool of a repository.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLRepository implements Store on database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

// SQLiteDSN builds a modernc DSN for the file at path with foreign keys on.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it.
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(ctx, DialectSQLite, SQLiteDSN(dbPath), PoolConfig{})
}

// NewPostgresRepository connects to dsn and migrates the database.
func NewPostgresRepository(ctx context.Context, dsn string, pool PoolConfig) (*SQLRepository, error) {
	return open(ctx, DialectPostgres, dsn, pool)
}

func open(ctx context.Context, dialect Dialect, dsn string, pool PoolConfig) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: dialect}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Dialect returns the repository's SQL flavour.
func (r *SQLRepository) Dialect() Dialect {
	return r.dialect
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	default:
		return err
	}
}

const userColumns = `id, username, email, password, provider, provider_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (core.User, error) {
	var (
		u          core.User
		provider   string
		providerID sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &provider, &providerID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return core.User{}, err
	}
	u.Provider = core.Provider(provider)
	u.ProviderID = providerID.String
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *SQLRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := time.Now().UTC()
	if u.Provider == "" {
		u.Provider = core.ProviderLocal
	}
	row := r.queryRow(ctx,
		`INSERT INTO users (username, email, password, provider, provider_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, string(u.Provider), nullString(u.ProviderID), now, now)
	created, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", mapError(err))
	}

	slog.InfoContext(ctx, "User created", "user_id", created.ID, "provider", created.Provider)
	return created, nil
}

func (r *SQLRepository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	row := r.queryRow(ctx,
		`UPDATE users SET username = ?, email = ?, password = ?, provider = ?, provider_id = ?, updated_at = ?
		 WHERE id = ? RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, string(u.Provider), nullString(u.ProviderID), time.Now().UTC(), u.ID)
	updated, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("update user %d: %w", u.ID, mapError(err))
	}
	return updated, nil
}

func (r *SQLRepository) UserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, mapError(err))
	}
	return u, nil
}

func (r *SQLRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", mapError(err))
	}
	return u, nil
}

func (r *SQLRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&n); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

const categoryColumns = `id, user_id, name, icon, color, type, parent_id, created_at`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c        core.Category
		typ      string
		parentID sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &typ, &parentID, &c.CreatedAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	if parentID.Valid {
		p := parentID.Int64
		c.ParentID = &p
	}
	return c, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func (r *SQLRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY name, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := scanCategory(r.queryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, mapError(err))
	}
	return c, nil
}

func (r *SQLRepository) CategoryNameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	var n int
	err := r.queryRow(ctx,
		`SELECT COUNT(*) FROM categories WHERE user_id = ? AND name = ? AND id <> ?`,
		userID, name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row := r.queryRow(ctx,
		`INSERT INTO categories (user_id, name, icon, color, type, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+categoryColumns,
		c.UserID, c.Name, c.Icon, c.Color, string(c.Type), nullInt(c.ParentID), time.Now().UTC())
	created, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", mapError(err))
	}
	return created, nil
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row := r.queryRow(ctx,
		`UPDATE categories SET name = ?, icon = ?, color = ?, type = ?, parent_id = ?
		 WHERE id = ? AND user_id = ? RETURNING `+categoryColumns,
		c.Name, c.Icon, c.Color, string(c.Type), nullInt(c.ParentID), c.ID, c.UserID)
	updated, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category %d: %w", c.ID, mapError(err))
	}
	return updated, nil
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		r.rebind(`UPDATE categories SET parent_id = NULL WHERE parent_id = ? AND user_id = ?`), id, userID); err != nil {
		return fmt.Errorf("detach subcategories: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM categories WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete category %d: %w", id, core.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
