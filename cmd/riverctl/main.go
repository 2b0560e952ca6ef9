// riverctl is a debug driver for riverdb's storage core: create a
// database and tables, insert rows from a flat file, dump a table's
// rows, and dump a B+ tree index's leaf chain. It speaks directly to
// engine.Engine — no SQL parsing, per spec §4.14/§6.
//
// Grounded on the teacher's cmd/seed, cmd/inspect_idx, and
// cmd/dump_sample: each is a small direct driver of the storage layer,
// which is exactly the shape riverctl's subcommands take. Like the
// teacher's own cmd/ tools, riverctl uses plain flag/bufio rather than
// a CLI framework.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"riverdb/pkg/catalog"
	"riverdb/pkg/engine"
	"riverdb/pkg/record"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "createdb":
		err = runCreateDB(args)
	case "createtable":
		err = runCreateTable(args)
	case "createindex":
		err = runCreateIndex(args)
	case "insert":
		err = runInsert(args)
	case "dump":
		err = runDump(args)
	case "dumpindex":
		err = runDumpIndex(args)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "riverctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: riverctl <command> [flags]

commands:
  createdb     -dir DIR -db NAME
  createtable  -dir DIR -db NAME -table NAME -columns SPEC
  createindex  -dir DIR -db NAME -table NAME -index NAME -columns NAMES
  insert       -dir DIR -db NAME -table NAME -file PATH
  dump         -dir DIR -db NAME -table NAME
  dumpindex    -dir DIR -db NAME -table NAME -index NAME

column SPEC is semicolon-separated column definitions of the form
  name:type[:attr]
where type is int32, float32, or charN (e.g. char32), and attr is
"unique" or "nullable" (default is neither). Example:
  -columns "id:int32:unique;name:char32;price:float32"`)
}

func openEngine(dir string) *engine.Engine {
	return engine.New(dir, engine.WithCatalogOptions(catalog.WithIndexNodeSize(64, 64)))
}

func runCreateDB(args []string) error {
	fs := flag.NewFlagSet("createdb", flag.ExitOnError)
	dir := fs.String("dir", ".", "engine root directory")
	name := fs.String("db", "", "database name")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-db is required")
	}

	e := openEngine(*dir)
	db, err := e.CreateDatabase(*name)
	if err != nil {
		return err
	}
	defer e.CloseAll()
	fmt.Printf("created database %q\n", db.Name)
	return nil
}

func runCreateTable(args []string) error {
	fs := flag.NewFlagSet("createtable", flag.ExitOnError)
	dir := fs.String("dir", ".", "engine root directory")
	dbName := fs.String("db", "", "database name")
	tableName := fs.String("table", "", "table name")
	columns := fs.String("columns", "", "column spec, see usage")
	fs.Parse(args)
	if *dbName == "" || *tableName == "" || *columns == "" {
		return fmt.Errorf("-db, -table, and -columns are required")
	}

	schema, err := parseSchema(*columns)
	if err != nil {
		return err
	}

	e := openEngine(*dir)
	db, err := e.Open(*dbName)
	if err != nil {
		return err
	}
	defer e.CloseAll()

	ti, err := db.Catalog.CreateTable(*tableName, schema)
	if err != nil {
		return err
	}
	fmt.Printf("created table %q (id %d) with %d columns\n", ti.Name, ti.ID, schema.ColumnCount())
	return nil
}

func runCreateIndex(args []string) error {
	fs := flag.NewFlagSet("createindex", flag.ExitOnError)
	dir := fs.String("dir", ".", "engine root directory")
	dbName := fs.String("db", "", "database name")
	tableName := fs.String("table", "", "table name")
	indexName := fs.String("index", "", "index name")
	columns := fs.String("columns", "", "semicolon-separated key column names")
	fs.Parse(args)
	if *dbName == "" || *tableName == "" || *indexName == "" || *columns == "" {
		return fmt.Errorf("-db, -table, -index, and -columns are required")
	}

	e := openEngine(*dir)
	db, err := e.Open(*dbName)
	if err != nil {
		return err
	}
	defer e.CloseAll()

	cols := strings.Split(*columns, ";")
	ii, err := db.Catalog.CreateIndex(*tableName, *indexName, cols)
	if err != nil {
		return err
	}
	fmt.Printf("created index %q on table %q over columns %v\n", ii.Name, *tableName, cols)
	return nil
}

func runInsert(args []string) error {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	dir := fs.String("dir", ".", "engine root directory")
	dbName := fs.String("db", "", "database name")
	tableName := fs.String("table", "", "table name")
	path := fs.String("file", "", "flat file, one comma-separated row per line")
	fs.Parse(args)
	if *dbName == "" || *tableName == "" || *path == "" {
		return fmt.Errorf("-db, -table, and -file are required")
	}

	e := openEngine(*dir)
	db, err := e.Open(*dbName)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Flush()
		_ = e.CloseAll()
	}()

	ti, err := db.Catalog.GetTable(*tableName)
	if err != nil {
		return err
	}

	f, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer f.Close()

	n := 0
	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row, err := parseRow(ti.Schema, line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		ok, err := ti.Heap.InsertTuple(row)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !ok {
			return fmt.Errorf("line %d: row does not fit any page", lineNo)
		}
		for _, ii := range db.Catalog.GetTableIndexes(ti.ID) {
			key, err := ii.EncodeKey(row)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			if _, err := ii.Tree.Insert(key, catalog.EncodeRowID(row.ID)); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("inserted %d row(s) into %q\n", n, *tableName)
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	dir := fs.String("dir", ".", "engine root directory")
	dbName := fs.String("db", "", "database name")
	tableName := fs.String("table", "", "table name")
	fs.Parse(args)
	if *dbName == "" || *tableName == "" {
		return fmt.Errorf("-db and -table are required")
	}

	e := openEngine(*dir)
	db, err := e.Open(*dbName)
	if err != nil {
		return err
	}
	defer e.CloseAll()

	ti, err := db.Catalog.GetTable(*tableName)
	if err != nil {
		return err
	}

	ids, err := ti.Heap.FetchAllIds()
	if err != nil {
		return err
	}
	for _, rid := range ids {
		row := record.NewRow()
		row.ID = rid
		if err := ti.Heap.GetTuple(row); err != nil {
			return err
		}
		fmt.Printf("(%d,%d)\t%s\n", rid.PageID, rid.Slot, formatRow(row))
	}
	fmt.Printf("%d row(s)\n", len(ids))
	return nil
}

func runDumpIndex(args []string) error {
	fs := flag.NewFlagSet("dumpindex", flag.ExitOnError)
	dir := fs.String("dir", ".", "engine root directory")
	dbName := fs.String("db", "", "database name")
	tableName := fs.String("table", "", "table name")
	indexName := fs.String("index", "", "index name")
	fs.Parse(args)
	if *dbName == "" || *tableName == "" || *indexName == "" {
		return fmt.Errorf("-db, -table, and -index are required")
	}

	e := openEngine(*dir)
	db, err := e.Open(*dbName)
	if err != nil {
		return err
	}
	defer e.CloseAll()

	ii, err := db.Catalog.GetIndex(*tableName, *indexName)
	if err != nil {
		return err
	}

	it, err := ii.Tree.Begin()
	if err != nil {
		return err
	}
	defer it.Close()

	n := 0
	for it.Valid() {
		rid := catalog.DecodeRowID(it.Value())
		fmt.Printf("%x\t(%d,%d)\n", it.Key(), rid.PageID, rid.Slot)
		n++
		if err := it.Next(); err != nil {
			return err
		}
	}
	fmt.Printf("%d key(s)\n", n)
	return nil
}

func parseSchema(spec string) (*record.Schema, error) {
	defs := strings.Split(spec, ";")
	cols := make([]record.Column, 0, len(defs))
	for i, def := range defs {
		parts := strings.Split(def, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad column spec %q: need name:type[:attr]", def)
		}
		name, typeTok := parts[0], parts[1]
		nullable, unique := false, false
		if len(parts) > 2 {
			switch parts[2] {
			case "unique":
				unique = true
			case "nullable":
				nullable = true
			default:
				return nil, fmt.Errorf("bad column spec %q: unknown attr %q", def, parts[2])
			}
		}

		switch {
		case typeTok == "int32":
			cols = append(cols, record.NewInt32Column(name, uint32(i), nullable, unique))
		case typeTok == "float32":
			cols = append(cols, record.NewFloat32Column(name, uint32(i), nullable, unique))
		case strings.HasPrefix(typeTok, "char"):
			length, err := strconv.Atoi(typeTok[len("char"):])
			if err != nil || length <= 0 {
				return nil, fmt.Errorf("bad column spec %q: bad char length", def)
			}
			cols = append(cols, record.NewCharColumn(name, uint32(length), uint32(i), nullable, unique))
		default:
			return nil, fmt.Errorf("bad column spec %q: unknown type %q", def, typeTok)
		}
	}
	return record.NewSchema(cols...)
}

func parseRow(schema *record.Schema, line string) (*record.Row, error) {
	values := strings.Split(line, ",")
	if len(values) != schema.ColumnCount() {
		return nil, fmt.Errorf("expected %d fields, got %d", schema.ColumnCount(), len(values))
	}
	fields := make([]record.Field, len(values))
	for i, raw := range values {
		raw = strings.TrimSpace(raw)
		col := schema.Columns[i]
		if raw == "" && col.Nullable {
			fields[i] = record.NewNullField(col.Type)
			continue
		}
		switch col.Type {
		case record.TypeInt32:
			v, err := strconv.ParseInt(raw, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			fields[i] = record.NewInt32Field(int32(v))
		case record.TypeFloat32:
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			fields[i] = record.NewFloat32Field(float32(v))
		case record.TypeChar:
			fields[i] = record.NewCharField(raw)
		}
	}
	return record.NewRow(fields...), nil
}

func formatRow(row *record.Row) string {
	parts := make([]string, len(row.Fields))
	for i, f := range row.Fields {
		if f.Null {
			parts[i] = "NULL"
			continue
		}
		switch f.Type {
		case record.TypeInt32:
			parts[i] = strconv.FormatInt(int64(f.I32), 10)
		case record.TypeFloat32:
			parts[i] = strconv.FormatFloat(float64(f.F32), 'g', -1, 32)
		case record.TypeChar:
			parts[i] = f.Str
		}
	}
	return strings.Join(parts, "\t")
}
