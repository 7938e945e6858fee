package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/ids"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository/migrations"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps every collection in one jsonb table, keyed by (collection, id).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const returningColumns = `id, body, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, collection string, doc models.Document) (models.Document, error) {
	payload, err := json.Marshal(body(doc))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	id := doc.ID()
	if id == "" {
		id = ids.New()
	}
	ts := now()

	const query = `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		RETURNING ` + returningColumns

	return scanDocument(s.pool.QueryRow(ctx, query, collection, id, payload, ts))
}

func (s *PostgresStore) FindByID(ctx context.Context, collection, id string) (models.Document, error) {
	const query = `SELECT ` + returningColumns + ` FROM documents WHERE collection = $1 AND id = $2`
	return scanDocument(s.pool.QueryRow(ctx, query, collection, id))
}

func (s *PostgresStore) FindOne(ctx context.Context, collection string, match Match) (models.Document, error) {
	where, args, err := matchClause(collection, match)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + returningColumns + ` FROM documents WHERE ` + where + ` ORDER BY seq LIMIT 1`
	return scanDocument(s.pool.QueryRow(ctx, query, args...))
}

func (s *PostgresStore) Find(ctx context.Context, collection string, opts FindOptions) ([]models.Document, error) {
	where, args, err := matchClause(collection, opts.Match)
	if err != nil {
		return nil, err
	}
	order := "seq"
	if opts.SortBy != "" {
		args = append(args, opts.SortBy)
		order = fmt.Sprintf("body->>$%d, seq", len(args))
	}
	query := `SELECT ` + returningColumns + ` FROM documents WHERE ` + where + ` ORDER BY ` + order

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapPgError(err)
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, wrapPgError(rows.Err())
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, cond Match, set models.Document) (models.Document, error) {
	assign, unset := splitSet(set)
	payload, err := json.Marshal(assign)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	condition, err := json.Marshal(cond)
	if err != nil {
		return nil, fmt.Errorf("encode condition: %w", err)
	}
	if unset == nil {
		unset = []string{}
	}
	if cond == nil {
		condition = []byte("{}")
	}

	const query = `
		UPDATE documents
		SET body = (body || $3::jsonb) - $4::text[], updated_at = $5
		WHERE collection = $1 AND id = $2 AND body @> $6::jsonb
		RETURNING ` + returningColumns

	return scanDocument(s.pool.QueryRow(ctx, query, collection, id, payload, unset, now(), condition))
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) (models.Document, error) {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING ` + returningColumns
	return scanDocument(s.pool.QueryRow(ctx, query, collection, id))
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE collection = $1`, collection).Scan(&n)
	return n, wrapPgError(err)
}

// EnsureIndex creates a partial expression index over the collection's rows.
// Rows missing any indexed field are left out of unique checks.
func (s *PostgresStore) EnsureIndex(ctx context.Context, collection string, idx Index) error {
	exprs := make([]string, len(idx.Fields))
	present := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		exprs[i] = fmt.Sprintf("(body->>%s)", quoteLiteral(f))
		present[i] = fmt.Sprintf("body ? %s", quoteLiteral(f))
	}
	name := indexName(collection, idx)
	if idx.Name != "" {
		// Postgres index names are schema-wide
		name = collection + "_" + idx.Name
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON documents (%s) WHERE collection = %s AND %s",
		unique,
		pgx.Identifier{name}.Sanitize(),
		strings.Join(exprs, ", "),
		quoteLiteral(collection),
		strings.Join(present, " AND "),
	)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create index on %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func matchClause(collection string, match Match) (string, []any, error) {
	args := []any{collection}
	clause := "collection = $1"

	contained := Match{}
	for k, v := range match {
		if k == models.FieldID {
			args = append(args, v)
			clause += fmt.Sprintf(" AND id = $%d", len(args))
			continue
		}
		contained[k] = v
	}
	if len(contained) > 0 {
		payload, err := json.Marshal(contained)
		if err != nil {
			return "", nil, fmt.Errorf("encode match: %w", err)
		}
		args = append(args, payload)
		clause += fmt.Sprintf(" AND body @> $%d::jsonb", len(args))
	}
	return clause, args, nil
}

func scanDocument(row pgx.Row) (models.Document, error) {
	var (
		id        string
		raw       []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &raw, &createdAt, &updatedAt); err != nil {
		return nil, wrapPgError(err)
	}
	doc := models.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc[models.FieldID] = id
	doc[models.FieldCreatedAt] = createdAt.UTC()
	doc[models.FieldUpdatedAt] = updatedAt.UTC()
	return doc, nil
}

func wrapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ Store = (*PostgresStore)(nil)
