// Package engine is riverdb's top-level entry point: it owns every
// open database by name and bundles each one's DiskManager, BufferPool,
// and CatalogManager into a single handle a CLI or future executor can
// drive.
//
// Grounded on the teacher's storageengine.StorageEngine struct, which
// already bundles exactly these handles (BufferPool/DiskManager/
// CatalogManager) under one value; its package-level dbs_-style global
// map is replaced here by an explicit Engine.Databases field, per
// spec §9's redesign note against hidden global state.
package engine

import (
	"os"
	"path/filepath"
	"sync"

	"riverdb/pkg/buffer"
	"riverdb/pkg/catalog"
	"riverdb/pkg/dberr"
	"riverdb/pkg/diskmgr"
)

const defaultPoolSize = 256

// Database bundles one open database's storage handles.
type Database struct {
	Name    string
	Pool    *buffer.Pool
	Catalog *catalog.Manager

	disk *diskmgr.Manager
}

// Flush writes every dirty catalog and buffer-pool page to disk
// without closing the database.
func (db *Database) Flush() error {
	return db.Catalog.FlushAll()
}

// Close releases the database's cache resources and closes its
// backing file. Callers that want durable state call Flush first.
func (db *Database) Close() error {
	db.Catalog.Close()
	return db.disk.Close()
}

func openDatabase(name, path string, poolSize int, opts ...catalog.Option) (*Database, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	disk, err := diskmgr.Open(path)
	if err != nil {
		return nil, err
	}

	pool := buffer.New(poolSize, disk)
	cm, err := catalog.Open(pool, fresh, opts...)
	if err != nil {
		_ = disk.Close()
		return nil, err
	}
	return &Database{Name: name, Pool: pool, Catalog: cm, disk: disk}, nil
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPoolSize overrides the buffer pool frame count every database
// this Engine opens is given. Defaults to 256.
func WithPoolSize(n int) Option {
	return func(e *Engine) { e.poolSize = n }
}

// WithCatalogOptions forwards options to every database's
// catalog.Open call, e.g. catalog.WithIndexNodeSize.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(e *Engine) { e.catalogOpts = append(e.catalogOpts, opts...) }
}

// Engine is the top-level value a CLI or process holds: every database
// it has opened, by name, plus the directory new ones are created in.
type Engine struct {
	mu          sync.Mutex
	dir         string
	poolSize    int
	catalogOpts []catalog.Option

	Databases map[string]*Database
}

// New creates an Engine rooted at dir, which must already exist; each
// database is one "<name>.db" file directly inside it.
func New(dir string, opts ...Option) *Engine {
	e := &Engine{
		dir:       dir,
		poolSize:  defaultPoolSize,
		Databases: make(map[string]*Database),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) path(name string) string {
	return filepath.Join(e.dir, name+".db")
}

// CreateDatabase creates and opens a new database file; it is an
// error for one by this name to already exist, whether open or only
// present on disk.
func (e *Engine) CreateDatabase(name string) (*Database, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, open := e.Databases[name]; open {
		return nil, dberr.Newf(dberr.IOFailure, "engine: database %q is already open", name)
	}
	path := e.path(name)
	if _, err := os.Stat(path); err == nil {
		return nil, dberr.Newf(dberr.IOFailure, "engine: database %q already exists", name)
	}

	db, err := openDatabase(name, path, e.poolSize, e.catalogOpts...)
	if err != nil {
		return nil, err
	}
	e.Databases[name] = db
	return db, nil
}

// Open returns the already-open database by name, opening it from
// disk first if it is not yet resident in this Engine.
func (e *Engine) Open(name string) (*Database, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.Databases[name]; ok {
		return db, nil
	}
	path := e.path(name)
	if _, err := os.Stat(path); err != nil {
		return nil, dberr.Newf(dberr.IOFailure, "engine: database %q does not exist", name)
	}

	db, err := openDatabase(name, path, e.poolSize, e.catalogOpts...)
	if err != nil {
		return nil, err
	}
	e.Databases[name] = db
	return db, nil
}

// DropDatabase closes the database if open, without flushing it, then
// deletes its backing file.
func (e *Engine) DropDatabase(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if db, ok := e.Databases[name]; ok {
		if err := db.Close(); err != nil {
			return err
		}
		delete(e.Databases, name)
	}
	if err := os.Remove(e.path(name)); err != nil && !os.IsNotExist(err) {
		return dberr.Wrapf(dberr.IOFailure, err, "removing database file for %q", name)
	}
	return nil
}

// CloseAll flushes and closes every open database.
func (e *Engine) CloseAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, db := range e.Databases {
		if err := db.Flush(); err != nil {
			return err
		}
		if err := db.Close(); err != nil {
			return err
		}
		delete(e.Databases, name)
	}
	return nil
}
