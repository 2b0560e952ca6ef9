package catalog

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"strconv"

	"riverdb/pkg/bplustree"
	"riverdb/pkg/buffer"
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
	"riverdb/pkg/record"
	"riverdb/pkg/table"
)

const (
	defaultLeafMaxSize     = 50
	defaultInternalMaxSize = 50
)

// Option configures a Manager at Open time.
type Option func(*Manager)

// WithIndexNodeSize overrides the B+ tree node sizes every index on
// this catalog is opened with.
func WithIndexNodeSize(leafMaxSize, internalMaxSize int) Option {
	return func(m *Manager) {
		m.leafMaxSize = leafMaxSize
		m.internalMaxSize = internalMaxSize
	}
}

// TableInfo is the in-memory handle for one cataloged table.
type TableInfo struct {
	ID     uint32
	Name   string
	Schema *record.Schema
	Heap   *table.Heap

	metaPageID page.ID
}

// IndexInfo is the in-memory handle for one cataloged index.
type IndexInfo struct {
	ID               uint32
	Name             string
	TableID          uint32
	KeyColumnIndices []uint32
	Tree             *bplustree.Tree

	metaPageID page.ID
}

// KeyValue is one (key, value) pair inserted into or removed from an
// index's tree in a batch, per spec §4.10's batch_insert contract.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// BatchInsert inserts every pair not already present. Idempotent: a
// pair whose key already exists is silently skipped rather than
// erroring, per spec §4.10.
func (ix *IndexInfo) BatchInsert(pairs []KeyValue) error {
	for _, p := range pairs {
		if _, err := ix.Tree.Insert(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// EncodeRowID packs a RowID into the 8-byte value an index tree stores
// against a row's key.
func EncodeRowID(rid record.RowID) []byte {
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(rid.PageID))
	binary.BigEndian.PutUint32(b[4:8], rid.Slot)
	return b[:]
}

// DecodeRowID is the inverse of EncodeRowID.
func DecodeRowID(b []byte) record.RowID {
	return record.RowID{
		PageID: page.ID(int32(binary.BigEndian.Uint32(b[0:4]))),
		Slot:   binary.BigEndian.Uint32(b[4:8]),
	}
}

// EncodeKey builds the key this index stores row under.
func (ix *IndexInfo) EncodeKey(row *record.Row) ([]byte, error) {
	return EncodeKey(row, ix.KeyColumnIndices)
}

// Lookup returns the RowID stored for row's key columns, if any.
func (ix *IndexInfo) Lookup(row *record.Row) (record.RowID, bool, error) {
	key, err := ix.EncodeKey(row)
	if err != nil {
		return record.RowID{}, false, err
	}
	v, found, err := ix.Tree.GetValue(key)
	if err != nil || !found {
		return record.RowID{}, false, err
	}
	return DecodeRowID(v), true, nil
}

// Manager is the catalog: CatalogMeta (page 0), the index-root map
// (page 1), and every table/index's metadata page, all pinned through
// the same BufferPool as heap and index pages.
type Manager struct {
	pool *buffer.Pool

	meta  *catalogMeta
	roots *rootMap

	tables     map[uint32]*TableInfo
	tableNames map[string]uint32
	indexes    map[uint32]*IndexInfo

	nextTableID uint32
	nextIndexID uint32

	tableCache *nameCache
	indexCache *nameCache

	leafMaxSize     int
	internalMaxSize int
}

// Open loads an existing catalog, or — when fresh is true, meaning the
// backing file was just created — initializes an empty one. fresh is
// decided by the caller (pkg/engine checks for the database file's
// prior existence before opening the disk manager), since nothing
// below the catalog can tell "never written" apart from "zeroed by
// a partial write" on its own.
func Open(pool *buffer.Pool, fresh bool, opts ...Option) (*Manager, error) {
	m := &Manager{
		pool:            pool,
		tables:          make(map[uint32]*TableInfo),
		tableNames:      make(map[string]uint32),
		indexes:         make(map[uint32]*IndexInfo),
		leafMaxSize:     defaultLeafMaxSize,
		internalMaxSize: defaultInternalMaxSize,
	}
	for _, opt := range opts {
		opt(m)
	}

	tableCache, err := newNameCache()
	if err != nil {
		return nil, err
	}
	indexCache, err := newNameCache()
	if err != nil {
		return nil, err
	}
	m.tableCache = tableCache
	m.indexCache = indexCache

	if fresh {
		if err := m.initFresh(); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initFresh() error {
	id0, buf0, err := m.pool.New()
	if err != nil {
		return err
	}
	if id0 != catalogMetaPageID {
		return dberr.Newf(dberr.IOFailure, "catalog: expected fresh catalog meta at page 0, got page %d", id0)
	}
	m.meta = newCatalogMeta()
	if err := m.meta.serializeTo(buf0); err != nil {
		_ = m.pool.Unpin(id0, false)
		return err
	}
	if err := m.pool.Unpin(id0, true); err != nil {
		return err
	}

	id1, buf1, err := m.pool.New()
	if err != nil {
		return err
	}
	if id1 != rootMapPageID {
		return dberr.Newf(dberr.IOFailure, "catalog: expected fresh index root map at page 1, got page %d", id1)
	}
	m.roots = newRootMap()
	if err := m.roots.serializeTo(buf1); err != nil {
		_ = m.pool.Unpin(id1, false)
		return err
	}
	return m.pool.Unpin(id1, true)
}

func (m *Manager) load() error {
	buf0, err := m.pool.Fetch(catalogMetaPageID)
	if err != nil {
		return err
	}
	meta, err := deserializeCatalogMeta(buf0)
	if uerr := m.pool.Unpin(catalogMetaPageID, false); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return err
	}
	m.meta = meta

	buf1, err := m.pool.Fetch(rootMapPageID)
	if err != nil {
		return err
	}
	roots, err := deserializeRootMap(buf1)
	if uerr := m.pool.Unpin(rootMapPageID, false); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return err
	}
	m.roots = roots

	for tableID, metaPageID := range m.meta.tables {
		if err := m.loadTable(tableID, metaPageID); err != nil {
			return err
		}
		if tableID+1 > m.nextTableID {
			m.nextTableID = tableID + 1
		}
	}
	for indexID, metaPageID := range m.meta.indexes {
		if err := m.loadIndex(indexID, metaPageID); err != nil {
			return err
		}
		if indexID+1 > m.nextIndexID {
			m.nextIndexID = indexID + 1
		}
	}
	return nil
}

func (m *Manager) loadTable(tableID uint32, metaPageID page.ID) error {
	buf, err := m.pool.Fetch(metaPageID)
	if err != nil {
		return err
	}
	tm, err := deserializeTableMeta(buf)
	if uerr := m.pool.Unpin(metaPageID, false); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return err
	}

	heap, err := table.OpenHeap(m.pool, tm.schema, tm.firstPageID)
	if err != nil {
		return err
	}

	ti := &TableInfo{ID: tableID, Name: tm.name, Schema: tm.schema, Heap: heap, metaPageID: metaPageID}
	m.tables[tableID] = ti
	m.tableNames[tm.name] = tableID
	slog.Debug("catalog loaded table", "table_id", tableID, "name", tm.name)
	return nil
}

func (m *Manager) loadIndex(indexID uint32, metaPageID page.ID) error {
	buf, err := m.pool.Fetch(metaPageID)
	if err != nil {
		return err
	}
	im, err := deserializeIndexMeta(buf)
	if uerr := m.pool.Unpin(metaPageID, false); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return err
	}

	tree, err := bplustree.Open(m.pool, m.roots, indexID, bytes.Compare, m.leafMaxSize, m.internalMaxSize)
	if err != nil {
		return err
	}

	ii := &IndexInfo{ID: indexID, Name: im.name, TableID: im.tableID, KeyColumnIndices: im.keyColumnIndices, Tree: tree, metaPageID: metaPageID}
	m.indexes[indexID] = ii
	slog.Debug("catalog loaded index", "index_id", indexID, "name", im.name, "table_id", im.tableID)
	return nil
}

// CreateTable registers a new table with the given schema.
func (m *Manager) CreateTable(name string, schema *record.Schema) (*TableInfo, error) {
	if _, exists := m.tableNames[name]; exists {
		return nil, dberr.Newf(dberr.TableAlreadyExist, "table %q already exists", name)
	}

	heap, err := table.NewHeap(m.pool, schema)
	if err != nil {
		return nil, err
	}

	tableID := m.nextTableID
	m.nextTableID++

	metaPageID, metaBuf, err := m.pool.New()
	if err != nil {
		return nil, err
	}
	tm := &tableMeta{tableID: tableID, name: name, firstPageID: heap.FirstPageID(), schema: schema}
	if err := tm.serializeTo(metaBuf); err != nil {
		_ = m.pool.Unpin(metaPageID, false)
		return nil, err
	}
	if err := m.pool.Unpin(metaPageID, true); err != nil {
		return nil, err
	}

	m.meta.tables[tableID] = metaPageID
	ti := &TableInfo{ID: tableID, Name: name, Schema: schema, Heap: heap, metaPageID: metaPageID}
	m.tables[tableID] = ti
	m.tableNames[name] = tableID
	m.tableCache.set(name, tableID)

	slog.Info("catalog created table", "table_id", tableID, "name", name)
	return ti, nil
}

// GetTable looks up a table by name.
func (m *Manager) GetTable(name string) (*TableInfo, error) {
	if id, ok := m.tableCache.get(name); ok {
		if ti, ok := m.tables[id]; ok {
			return ti, nil
		}
	}
	id, ok := m.tableNames[name]
	if !ok {
		return nil, dberr.Newf(dberr.TableNotExist, "table %q does not exist", name)
	}
	m.tableCache.set(name, id)
	return m.tables[id], nil
}

// GetTableByID looks up a table by id.
func (m *Manager) GetTableByID(id uint32) (*TableInfo, error) {
	ti, ok := m.tables[id]
	if !ok {
		return nil, dberr.Newf(dberr.TableNotExist, "table id %d does not exist", id)
	}
	return ti, nil
}

// GetTables returns every cataloged table.
func (m *Manager) GetTables() []*TableInfo {
	out := make([]*TableInfo, 0, len(m.tables))
	for _, ti := range m.tables {
		out = append(out, ti)
	}
	return out
}

// DropTable removes a table and every index on it.
func (m *Manager) DropTable(name string) error {
	ti, err := m.GetTable(name)
	if err != nil {
		return err
	}

	if err := m.RemoveIndexesOnTable(ti.ID); err != nil {
		return err
	}
	if err := ti.Heap.FreeHeap(); err != nil {
		return err
	}
	if err := m.pool.Delete(ti.metaPageID); err != nil {
		return err
	}

	delete(m.meta.tables, ti.ID)
	delete(m.tables, ti.ID)
	delete(m.tableNames, name)
	m.tableCache.del(name)

	slog.Info("catalog dropped table", "table_id", ti.ID, "name", name)
	return nil
}

// CreateIndex builds a new unique-key index over keyColumnNames and
// populates it by scanning the full table, per spec §4.10.
func (m *Manager) CreateIndex(tableName, indexName string, keyColumnNames []string) (*IndexInfo, error) {
	ti, err := m.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if _, err := m.getIndexLocked(ti.ID, indexName); err == nil {
		return nil, dberr.Newf(dberr.IndexAlreadyExist, "index %q already exists on table %q", indexName, tableName)
	}

	indices := make([]uint32, len(keyColumnNames))
	for i, colName := range keyColumnNames {
		ci := ti.Schema.ColumnIndex(colName)
		if ci < 0 {
			return nil, dberr.Newf(dberr.ColumnNameNotExist, "column %q does not exist on table %q", colName, tableName)
		}
		if !ti.Schema.Columns[ci].Unique {
			return nil, dberr.Newf(dberr.KeyConstraintViolated, "column %q is not unique, cannot be indexed", colName)
		}
		indices[i] = uint32(ci)
	}

	indexID := m.nextIndexID
	m.nextIndexID++

	tree, err := bplustree.Open(m.pool, m.roots, indexID, bytes.Compare, m.leafMaxSize, m.internalMaxSize)
	if err != nil {
		return nil, err
	}

	rowIDs, err := ti.Heap.FetchAllIds()
	if err != nil {
		return nil, err
	}
	pairs := make([]KeyValue, 0, len(rowIDs))
	for _, rid := range rowIDs {
		row := record.NewRow()
		row.ID = rid
		if err := ti.Heap.GetTuple(row); err != nil {
			return nil, err
		}
		key, err := EncodeKey(row, indices)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, KeyValue{Key: key, Value: EncodeRowID(rid)})
	}

	ii := &IndexInfo{ID: indexID, Name: indexName, TableID: ti.ID, KeyColumnIndices: indices, Tree: tree}
	if err := ii.BatchInsert(pairs); err != nil {
		return nil, err
	}

	metaPageID, metaBuf, err := m.pool.New()
	if err != nil {
		return nil, err
	}
	im := &indexMeta{indexID: indexID, name: indexName, tableID: ti.ID, rootPageID: tree.RootPageID(), keyColumnIndices: indices}
	if err := im.serializeTo(metaBuf); err != nil {
		_ = m.pool.Unpin(metaPageID, false)
		return nil, err
	}
	if err := m.pool.Unpin(metaPageID, true); err != nil {
		return nil, err
	}
	ii.metaPageID = metaPageID

	m.meta.indexes[indexID] = metaPageID
	m.indexes[indexID] = ii
	m.indexCache.set(indexCacheKey(ti.ID, indexName), indexID)

	slog.Info("catalog created index", "index_id", indexID, "name", indexName, "table_id", ti.ID, "rows_indexed", len(pairs))
	return ii, nil
}

func indexCacheKey(tableID uint32, indexName string) string {
	return strconv.FormatUint(uint64(tableID), 10) + "." + indexName
}

func (m *Manager) getIndexLocked(tableID uint32, indexName string) (*IndexInfo, error) {
	for _, ii := range m.indexes {
		if ii.TableID == tableID && ii.Name == indexName {
			return ii, nil
		}
	}
	return nil, dberr.Newf(dberr.IndexNotFound, "index %q not found", indexName)
}

// GetIndex looks up an index by table name and index name.
func (m *Manager) GetIndex(tableName, indexName string) (*IndexInfo, error) {
	ti, err := m.GetTable(tableName)
	if err != nil {
		return nil, dberr.Wrapf(dberr.IndexNotFound, err, "index %q not found", indexName)
	}
	key := indexCacheKey(ti.ID, indexName)
	if id, ok := m.indexCache.get(key); ok {
		if ii, ok := m.indexes[id]; ok {
			return ii, nil
		}
	}
	ii, err := m.getIndexLocked(ti.ID, indexName)
	if err != nil {
		return nil, err
	}
	m.indexCache.set(key, ii.ID)
	return ii, nil
}

// GetTableIndexes returns every index defined on tableID.
func (m *Manager) GetTableIndexes(tableID uint32) []*IndexInfo {
	var out []*IndexInfo
	for _, ii := range m.indexes {
		if ii.TableID == tableID {
			out = append(out, ii)
		}
	}
	return out
}

// DropIndex removes one index.
func (m *Manager) DropIndex(tableName, indexName string) error {
	ti, err := m.GetTable(tableName)
	if err != nil {
		return err
	}
	ii, err := m.getIndexLocked(ti.ID, indexName)
	if err != nil {
		return err
	}
	return m.dropIndexInfo(ii)
}

func (m *Manager) dropIndexInfo(ii *IndexInfo) error {
	if err := ii.Tree.Destroy(); err != nil {
		return err
	}
	m.roots.drop(ii.ID)
	if err := m.pool.Delete(ii.metaPageID); err != nil {
		return err
	}
	delete(m.meta.indexes, ii.ID)
	delete(m.indexes, ii.ID)
	m.indexCache.del(indexCacheKey(ii.TableID, ii.Name))
	slog.Info("catalog dropped index", "index_id", ii.ID, "name", ii.Name, "table_id", ii.TableID)
	return nil
}

// RemoveIndexesOnTable drops every index on tableID. Idempotent: a
// table with no indexes is a no-op, per spec §4.10.
func (m *Manager) RemoveIndexesOnTable(tableID uint32) error {
	for _, ii := range m.GetTableIndexes(tableID) {
		if err := m.dropIndexInfo(ii); err != nil {
			return err
		}
	}
	return nil
}

// FlushAll writes the catalog meta page, the index root map, and
// every table/index metadata page, then flushes the whole buffer pool.
func (m *Manager) FlushAll() error {
	buf0, err := m.pool.Fetch(catalogMetaPageID)
	if err != nil {
		return err
	}
	if err := m.meta.serializeTo(buf0); err != nil {
		_ = m.pool.Unpin(catalogMetaPageID, false)
		return err
	}
	if err := m.pool.Unpin(catalogMetaPageID, true); err != nil {
		return err
	}

	buf1, err := m.pool.Fetch(rootMapPageID)
	if err != nil {
		return err
	}
	if err := m.roots.serializeTo(buf1); err != nil {
		_ = m.pool.Unpin(rootMapPageID, false)
		return err
	}
	if err := m.pool.Unpin(rootMapPageID, true); err != nil {
		return err
	}

	for tableID, ti := range m.tables {
		buf, err := m.pool.Fetch(ti.metaPageID)
		if err != nil {
			return err
		}
		tm := &tableMeta{tableID: tableID, name: ti.Name, firstPageID: ti.Heap.FirstPageID(), schema: ti.Schema}
		if err := tm.serializeTo(buf); err != nil {
			_ = m.pool.Unpin(ti.metaPageID, false)
			return err
		}
		if err := m.pool.Unpin(ti.metaPageID, true); err != nil {
			return err
		}
	}

	for indexID, ii := range m.indexes {
		buf, err := m.pool.Fetch(ii.metaPageID)
		if err != nil {
			return err
		}
		im := &indexMeta{indexID: indexID, name: ii.Name, tableID: ii.TableID, rootPageID: ii.Tree.RootPageID(), keyColumnIndices: ii.KeyColumnIndices}
		if err := im.serializeTo(buf); err != nil {
			_ = m.pool.Unpin(ii.metaPageID, false)
			return err
		}
		if err := m.pool.Unpin(ii.metaPageID, true); err != nil {
			return err
		}
	}

	return m.pool.FlushAll()
}

// Close releases the catalog's cache resources. It does not flush —
// callers call FlushAll first.
func (m *Manager) Close() {
	m.tableCache.close()
	m.indexCache.close()
}
