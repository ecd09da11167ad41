package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the catalog database. Writers take Lock, readers RLock.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// catalogDSN enables WAL and foreign keys so objects follow their annotation.
const catalogDSN = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// New opens the catalog at dbPath and creates its tables.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+catalogDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(catalogSchema)
	return err
}

// catalogSchema holds one row per annotation file and one per object.
const catalogSchema = `
	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		format TEXT NOT NULL,
		path TEXT NOT NULL,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (filename, format)
	);

	CREATE TABLE IF NOT EXISTS objects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		annotation_id INTEGER NOT NULL,
		class_name TEXT NOT NULL,
		xmin INTEGER NOT NULL,
		ymin INTEGER NOT NULL,
		xmax INTEGER NOT NULL,
		ymax INTEGER NOT NULL,
		has_demographics INTEGER NOT NULL DEFAULT 0,
		gender REAL,
		age INTEGER,
		FOREIGN KEY (annotation_id) REFERENCES annotations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_annotations_format ON annotations(format);
	CREATE INDEX IF NOT EXISTS idx_objects_class_name ON objects(class_name);
	CREATE INDEX IF NOT EXISTS idx_objects_annotation_id ON objects(annotation_id);
`

func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn is the shared connection; callers hold the matching lock.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock() {
	db.mu.Lock()
}

func (db *DB) Unlock() {
	db.mu.Unlock()
}

func (db *DB) RLock() {
	db.mu.RLock()
}

func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
