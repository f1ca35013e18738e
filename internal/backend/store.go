// ABOUTME: SQLite persistence for catalog records, chat history and index metadata
// ABOUTME: Uses modernc.org/sqlite; tables are derived from the catalog schemas

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389/brewdesk/internal/catalog"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// tables maps each kind to its table name.
var tables = map[catalog.Kind]string{
	catalog.KindOutlet:  "outlets",
	catalog.KindProduct: "products",
	catalog.KindFood:    "food",
	catalog.KindDrink:   "drinks",
}

// Store persists the catalog in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the database at path. Parent directories are
// created as needed.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// busy_timeout is per connection, so it goes in the DSN rather than a PRAGMA.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("store initialized", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	var b strings.Builder
	for _, k := range catalog.Kinds {
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid INTEGER PRIMARY KEY AUTOINCREMENT", tables[k])
		for _, f := range catalog.MustSchema(k).Fields {
			fmt.Fprintf(&b, ",\n\t%s %s", f.Name, columnType(f))
		}
		b.WriteString("\n);\n")
	}
	b.WriteString(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_session
			ON chat_messages(session_id, id);

		CREATE TABLE IF NOT EXISTS embedding_metadata (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_type TEXT NOT NULL,
			item_id INTEGER NOT NULL,
			text TEXT NOT NULL
		);
	`)
	_, err := s.db.Exec(b.String())
	return err
}

func columnType(f catalog.Field) string {
	switch f.Coercion {
	case catalog.CoerceInt:
		return "INTEGER NOT NULL DEFAULT 0"
	case catalog.CoerceFloatOrNull:
		return "REAL"
	}
	return "TEXT NOT NULL DEFAULT ''"
}

func tableFor(k catalog.Kind) (string, catalog.Schema, error) {
	schema, err := catalog.SchemaFor(k)
	if err != nil {
		return "", catalog.Schema{}, err
	}
	return tables[k], schema, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads "id, <schema fields...>" into a typed record.
func scanRecord(sc scanner, schema catalog.Schema) (catalog.Record, error) {
	var id int64
	dest := make([]any, 0, len(schema.Fields)+1)
	dest = append(dest, &id)
	for _, f := range schema.Fields {
		switch f.Coercion {
		case catalog.CoerceInt:
			dest = append(dest, new(int64))
		case catalog.CoerceFloatOrNull:
			dest = append(dest, new(sql.NullFloat64))
		default:
			dest = append(dest, new(string))
		}
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(schema.Fields))
	for i, f := range schema.Fields {
		switch v := dest[i+1].(type) {
		case *int64:
			values[f.Name] = *v
		case *sql.NullFloat64:
			if v.Valid {
				values[f.Name] = v.Float64
			} else {
				values[f.Name] = nil
			}
		case *string:
			values[f.Name] = *v
		}
	}
	return catalog.FromValues(schema.Kind, &id, values)
}

// columnArgs returns the record's values in schema order.
func columnArgs(schema catalog.Schema, rec catalog.Record) []any {
	vals := rec.Values()
	args := make([]any, len(schema.Fields))
	for i, f := range schema.Fields {
		args[i] = vals[f.Name]
	}
	return args
}

func selectColumns(schema catalog.Schema) string {
	return "id, " + strings.Join(schema.Names(), ", ")
}

// List returns up to limit records of kind k starting at offset, in id order,
// along with the total count.
func (s *Store) List(ctx context.Context, k catalog.Kind, offset, limit int) ([]catalog.Record, int, error) {
	table, schema, err := tableFor(k)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", table, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT ? OFFSET ?", selectColumns(schema), table)
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", table, err)
	}
	defer rows.Close()

	recs, err := scanAll(rows, schema)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", table, err)
	}
	return recs, total, nil
}

func scanAll(rows *sql.Rows, schema catalog.Schema) ([]catalog.Record, error) {
	recs := []catalog.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, schema)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, k catalog.Kind, id int64) (catalog.Record, error) {
	table, schema, err := tableFor(k)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns(schema), table)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id), schema)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %d: %w", k, id, err)
	}
	return rec, nil
}

// Create inserts rec, ignoring any identifier it carries, and returns the
// stored record.
func (s *Store) Create(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	table, schema, err := tableFor(rec.Kind())
	if err != nil {
		return nil, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema.Fields)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(schema.Names(), ", "), placeholders)

	res, err := s.db.ExecContext(ctx, query, columnArgs(schema, rec)...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading insert id: %w", err)
	}
	return rec.WithID(&id), nil
}

// Update overwrites every schema column of the record with the given id.
func (s *Store) Update(ctx context.Context, id int64, rec catalog.Record) (catalog.Record, error) {
	table, schema, err := tableFor(rec.Kind())
	if err != nil {
		return nil, err
	}
	sets := make([]string, len(schema.Fields))
	for i, name := range schema.Names() {
		sets[i] = name + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))

	args := append(columnArgs(schema, rec), id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating %s %d: %w", rec.Kind(), id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return rec.WithID(&id), nil
}

// Delete removes a record by id.
func (s *Store) Delete(ctx context.Context, k catalog.Kind, id int64) error {
	table, _, err := tableFor(k)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", k, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Query filters a search. Empty strings and nil bounds are ignored.
type Query struct {
	Name     string
	Category string
	Address  string // outlets only
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// Search returns records of kind k matching q. Text filters are substring
// matches; price bounds are inclusive and skipped for kinds without a price.
func (s *Store) Search(ctx context.Context, k catalog.Kind, q Query) ([]catalog.Record, error) {
	table, schema, err := tableFor(k)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	like := func(col, val string) {
		if val == "" {
			return
		}
		if _, ok := schema.Field(col); !ok {
			return
		}
		where = append(where, col+" LIKE ?")
		args = append(args, "%"+val+"%")
	}
	like("name", q.Name)
	like("category", q.Category)
	like("address", q.Address)

	if _, ok := schema.Field("price"); ok {
		if q.MinPrice != nil {
			where = append(where, "price >= ?")
			args = append(args, *q.MinPrice)
		}
		if q.MaxPrice != nil {
			where = append(where, "price <= ?")
			args = append(args, *q.MaxPrice)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", selectColumns(schema), table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", table, err)
	}
	defer rows.Close()

	recs, err := scanAll(rows, schema)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", table, err)
	}
	return recs, nil
}

// Turn is one stored chat message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AppendChat stores turns for a session in order.
func (s *Store) AppendChat(ctx context.Context, sessionID string, turns ...Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, t := range turns {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
			sessionID, t.Role, t.Content, now); err != nil {
			return fmt.Errorf("saving chat message: %w", err)
		}
	}
	return tx.Commit()
}

// ChatHistory returns a session's turns oldest first. Unknown sessions yield
// an empty slice.
func (s *Store) ChatHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM chat_messages WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ClearChat deletes a session's history.
func (s *Store) ClearChat(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	return nil
}

// Document is one entry of the search index.
type Document struct {
	Kind catalog.Kind
	ID   int64
	Text string
}

// ReplaceIndex swaps the index contents for docs atomically.
func (s *Store) ReplaceIndex(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embedding_metadata"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO embedding_metadata (item_type, item_id, text) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing index insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, string(d.Kind), d.ID, d.Text); err != nil {
			return fmt.Errorf("indexing %s %d: %w", d.Kind, d.ID, err)
		}
	}
	return tx.Commit()
}

// IndexDocuments returns every indexed document.
func (s *Store) IndexDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT item_type, item_id, text FROM embedding_metadata ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var kind string
		if err := rows.Scan(&kind, &d.ID, &d.Text); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		d.Kind = catalog.Kind(kind)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// IndexCount returns the number of indexed documents.
func (s *Store) IndexCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embedding_metadata").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting index: %w", err)
	}
	return n, nil
}
