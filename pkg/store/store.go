package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	_ "modernc.org/sqlite" // Register SQLite driver

	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

const timestampLayout = "2006-01-02 15:04:05"

// parseTimestamp parses a timestamp string from SQLite, handling multiple formats
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	formats := []string{
		timestampLayout,                 // SQLite standard format (UTC assumed)
		"2006-01-02 15:04:05 -0700 MST", // With timezone offset and name
		time.RFC3339,                    // ISO 8601
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}

	log.DefaultLogger.Warn("[STORE] Failed to parse timestamp", "value", s)
	return time.Time{}
}

// attributeCodePattern restricts attribute codes used inside JSON paths
var attributeCodePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Condition narrows an object query on one attribute
type Condition struct {
	Attribute string
	Operator  string // "=", "!=", "IN", "LIKE"
	Value     interface{}
}

// Store is the host-application database: classes, records, users, attachments and shortcut actions
type Store struct {
	db         *sql.DB
	writeQueue *writeQueue
	blobs      BlobStore
	logger     log.Logger
}

// NewStore creates a new store instance. A nil blob store keeps attachment contents in SQLite.
func NewStore(dbPath string, blobs BlobStore) (*Store, error) {
	logger := log.DefaultLogger.With("component", "store")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Concurrent readers, single writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger.Info("[STORE] SQLite configured", "path", dbPath, "journal_mode", "wal", "busy_timeout_ms", 5000)

	store := &Store{db: db, blobs: blobs, logger: logger}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store.writeQueue = newWriteQueue(store)
	logger.Debug("[STORE] Write queue initialized")

	return store, nil
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS classes (
			name TEXT PRIMARY KEY,
			attributes TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS objects (
			class TEXT NOT NULL,
			id INTEGER NOT NULL,
			fields TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (class, id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL UNIQUE,
			language TEXT NOT NULL DEFAULT 'EN US',
			contact_class TEXT,
			contact_id INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_class TEXT NOT NULL,
			item_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			creation_date DATETIME NOT NULL,
			filename TEXT NOT NULL,
			mimetype TEXT NOT NULL,
			contents BLOB,
			blob_key TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_item ON attachments(item_class, item_id)`,
		`CREATE TABLE IF NOT EXISTS shortcut_actions (
			uid TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// PutClass creates or replaces a class definition (queued for serialized execution)
func (s *Store) PutClass(class *model.Class) error {
	return s.writeQueue.enqueue("put_class", func() error { return s.putClassDirect(class) })
}

func (s *Store) putClassDirect(class *model.Class) error {
	_, err := s.db.Exec(
		`INSERT INTO classes (name, attributes) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET attributes = excluded.attributes`,
		class.Name, class.Attributes,
	)
	if err != nil {
		return fmt.Errorf("failed to put class %s: %w", class.Name, err)
	}
	return nil
}

// ListAttributes returns the attribute codes of a class in display order
func (s *Store) ListAttributes(className string) ([]string, error) {
	var attrs model.StringSlice
	err := s.db.QueryRow(`SELECT attributes FROM classes WHERE name = ?`, className).Scan(&attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("class %s", className)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes of %s: %w", className, err)
	}
	return attrs, nil
}

// ClassExists reports whether the class is known
func (s *Store) ClassExists(className string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM classes WHERE name = ?`, className).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check class %s: %w", className, err)
	}
	return n > 0, nil
}

// PutObject creates or replaces a record (queued for serialized execution)
func (s *Store) PutObject(obj *model.Object) error {
	return s.writeQueue.enqueue("put_object", func() error { return s.putObjectDirect(obj) })
}

func (s *Store) putObjectDirect(obj *model.Object) error {
	if obj.Fields == nil {
		obj.Fields = model.Fields{}
	}
	_, err := s.db.Exec(
		`INSERT INTO objects (class, id, fields, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(class, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		obj.Class, obj.Key, obj.Fields, time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to put object %s::%d: %w", obj.Class, obj.Key, err)
	}
	return nil
}

// GetObject loads a single record
func (s *Store) GetObject(className string, key int64) (*model.Object, error) {
	obj := &model.Object{Class: className, Key: key}
	err := s.db.QueryRow(`SELECT fields FROM objects WHERE class = ? AND id = ?`, className, key).Scan(&obj.Fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("object %s::%d", className, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s::%d: %w", className, key, err)
	}
	return obj, nil
}

// buildWhere compiles conditions into a WHERE clause on the objects table
func buildWhere(className string, conds []Condition) (string, []interface{}, error) {
	clauses := []string{"class = ?"}
	args := []interface{}{className}

	for _, c := range conds {
		var column string
		if c.Attribute == "id" {
			column = "id"
		} else {
			if !attributeCodePattern.MatchString(c.Attribute) {
				return "", nil, model.Validationf("invalid attribute code '%s'", c.Attribute)
			}
			column = "json_extract(fields, ?)"
			args = append(args, "$."+c.Attribute)
		}

		switch strings.ToUpper(c.Operator) {
		case "=", "":
			clauses = append(clauses, column+" = ?")
			args = append(args, c.Value)
		case "!=":
			clauses = append(clauses, column+" != ?")
			args = append(args, c.Value)
		case "LIKE":
			clauses = append(clauses, column+" LIKE ?")
			args = append(args, c.Value)
		case "IN":
			values, ok := c.Value.([]interface{})
			if !ok || len(values) == 0 {
				// An empty IN list matches nothing
				clauses = append(clauses, "0 = 1")
				if column != "id" {
					args = args[:len(args)-1]
				}
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
			clauses = append(clauses, column+" IN ("+placeholders+")")
			args = append(args, values...)
		default:
			return "", nil, model.Validationf("unsupported operator '%s'", c.Operator)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// FindObjects returns the records of a class matching all conditions, ordered by key
func (s *Store) FindObjects(ctx context.Context, className string, conds []Condition) ([]*model.Object, error) {
	where, args, err := buildWhere(className, conds)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, fields FROM objects WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", className, err)
	}
	defer rows.Close()

	var objects []*model.Object
	for rows.Next() {
		obj := &model.Object{Class: className}
		if err := rows.Scan(&obj.Key, &obj.Fields); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", className, err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// CountObjects counts the records of a class matching all conditions
func (s *Store) CountObjects(ctx context.Context, className string, conds []Condition) (int, error) {
	where, args, err := buildWhere(className, conds)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", className, err)
	}
	return n, nil
}

// CreateUser creates a new user (queued for serialized execution)
func (s *Store) CreateUser(user *model.User) error {
	return s.writeQueue.enqueue("create_user", func() error { return s.createUserDirect(user) })
}

func (s *Store) createUserDirect(user *model.User) error {
	if user.Language == "" {
		user.Language = "EN US"
	}
	result, err := s.db.Exec(
		`INSERT INTO users (login, token, language, contact_class, contact_id) VALUES (?, ?, ?, ?, ?)`,
		user.Login, user.Token, user.Language, user.ContactClass, user.ContactID,
	)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Login, err)
	}
	user.ID, err = result.LastInsertId()
	return err
}

// GetUserByToken resolves an API token to a user
func (s *Store) GetUserByToken(token string) (*model.User, error) {
	if token == "" {
		return nil, model.ErrAuthentication
	}
	user := &model.User{}
	var contactClass sql.NullString
	var contactID sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, login, token, language, contact_class, contact_id FROM users WHERE token = ?`, token,
	).Scan(&user.ID, &user.Login, &user.Token, &user.Language, &contactClass, &contactID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrAuthentication
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	user.ContactClass = contactClass.String
	user.ContactID = contactID.Int64
	return user, nil
}

// CreateAttachment stores an attachment. Contents go to the blob store when one is configured.
func (s *Store) CreateAttachment(ctx context.Context, att *model.Attachment) error {
	if s.blobs != nil {
		key := fmt.Sprintf("attachments/%s/%d/%s", att.ItemClass, att.ItemID, uuid.NewString())
		if err := s.blobs.Put(ctx, key, att.Contents.Data, att.Contents.MimeType); err != nil {
			return fmt.Errorf("failed to store attachment contents: %w", err)
		}
		att.BlobKey = key
	}
	return s.writeQueue.enqueue("create_attachment", func() error { return s.createAttachmentDirect(att) })
}

func (s *Store) createAttachmentDirect(att *model.Attachment) error {
	if att.CreationDate.IsZero() {
		att.CreationDate = time.Now()
	}
	var contents interface{}
	var blobKey interface{}
	if att.BlobKey != "" {
		blobKey = att.BlobKey
	} else {
		contents = att.Contents.Data
	}

	result, err := s.db.Exec(
		`INSERT INTO attachments (item_class, item_id, user_id, creation_date, filename, mimetype, contents, blob_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		att.ItemClass, att.ItemID, att.UserID, att.CreationDate.UTC().Format(timestampLayout),
		att.Contents.FileName, att.Contents.MimeType, contents, blobKey,
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	att.ID, err = result.LastInsertId()
	return err
}

// ListAttachments returns the attachments of the given records of one class
func (s *Store) ListAttachments(ctx context.Context, itemClass string, itemIDs []int64) ([]*model.Attachment, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	args := []interface{}{itemClass}
	for _, id := range itemIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_class, item_id, user_id, creation_date, filename, mimetype, contents, blob_key
		 FROM attachments WHERE item_class = ? AND item_id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var atts []*model.Attachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, att := range atts {
		if err := s.loadBlob(ctx, att); err != nil {
			return nil, err
		}
	}
	return atts, nil
}

// GetAttachment loads one attachment with its contents
func (s *Store) GetAttachment(ctx context.Context, id int64) (*model.Attachment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, item_class, item_id, user_id, creation_date, filename, mimetype, contents, blob_key
		 FROM attachments WHERE id = ?`, id)
	att, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("attachment %d", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadBlob(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttachment(row rowScanner) (*model.Attachment, error) {
	att := &model.Attachment{}
	var created string
	var blobKey sql.NullString
	err := row.Scan(&att.ID, &att.ItemClass, &att.ItemID, &att.UserID, &created,
		&att.Contents.FileName, &att.Contents.MimeType, &att.Contents.Data, &blobKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan attachment: %w", err)
	}
	att.CreationDate = parseTimestamp(created)
	att.BlobKey = blobKey.String
	return att, nil
}

func (s *Store) loadBlob(ctx context.Context, att *model.Attachment) error {
	if att.BlobKey == "" {
		return nil
	}
	if s.blobs == nil {
		return fmt.Errorf("attachment %d is stored in object storage but none is configured", att.ID)
	}
	data, err := s.blobs.Get(ctx, att.BlobKey)
	if err != nil {
		return fmt.Errorf("failed to load attachment %d contents: %w", att.ID, err)
	}
	att.Contents.Data = data
	return nil
}

// UpsertShortcutActions sets the enabled state of the given menu element UIDs only.
// Entries for other UIDs are left untouched.
func (s *Store) UpsertShortcutActions(actions map[string]bool) error {
	if len(actions) == 0 {
		return nil
	}
	return s.writeQueue.enqueue("upsert_shortcut_actions", func() error { return s.upsertShortcutActionsDirect(actions) })
}

func (s *Store) upsertShortcutActionsDirect(actions map[string]bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timestampLayout)
	for uid, enabled := range actions {
		if _, err := tx.Exec(
			`INSERT INTO shortcut_actions (uid, enabled, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(uid) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
			uid, enabled, now,
		); err != nil {
			return fmt.Errorf("failed to upsert shortcut action %s: %w", uid, err)
		}
	}
	return tx.Commit()
}

// ShortcutActions returns the host configuration value: enabled UIDs, sorted, comma separated
func (s *Store) ShortcutActions() (string, error) {
	rows, err := s.db.Query(`SELECT uid FROM shortcut_actions WHERE enabled = 1`)
	if err != nil {
		return "", fmt.Errorf("failed to list shortcut actions: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return "", err
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	sort.Strings(uids)
	return strings.Join(uids, ","), nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.writeQueue != nil {
		s.writeQueue.shutdown()
	}
	return s.db.Close()
}
