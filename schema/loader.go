package schema

import (
	"bytes"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ghchinoy/lovefield/lferrors"
)

// document mirrors the YAML shape described in SPEC_FULL.md §6. Decoding
// uses KnownFields so a typo'd key is a SYNTAX error rather than silently
// ignored, matching the teacher's ParseGeneratorConfig decode discipline.
type document struct {
	Name    string                    `yaml:"name"`
	Version int                       `yaml:"version"`
	Table   map[string]tableDocument  `yaml:"table"`
}

type tableDocument struct {
	Column     map[string]string   `yaml:"column"`
	Constraint constraintDocument  `yaml:"constraint"`
}

type constraintDocument struct {
	PrimaryKey []string                     `yaml:"primaryKey"`
	Unique     map[string][]string          `yaml:"unique"`
	Nullable   []string                     `yaml:"nullable"`
	ForeignKey map[string]foreignKeyDocument `yaml:"foreignKey"`
}

type foreignKeyDocument struct {
	LocalColumn  string `yaml:"localColumn"`
	Reference    string `yaml:"reference"`
	RemoteColumn string `yaml:"remoteColumn"`
}

var typeNames = map[string]ColumnType{
	"integer":  TypeInteger,
	"number":   TypeNumber,
	"string":   TypeString,
	"boolean":  TypeBoolean,
	"datetime": TypeDatetime,
	"bytes":    TypeBytes,
}

// Load parses and validates a declarative YAML schema document.
func Load(yamlBytes []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(yamlBytes))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, lferrors.Wrap(lferrors.SYNTAX, err, "decoding schema document")
	}
	return build(doc)
}

func build(doc document) (*Schema, error) {
	if doc.Name == "" {
		return nil, lferrors.New(lferrors.SYNTAX, "schema document missing name")
	}

	s := &Schema{Name: doc.Name, Version: doc.Version, tables: map[string]*Table{}}

	// Deterministic order: sort table names so Load is reproducible
	// across runs despite Go's randomized map iteration.
	names := make([]string, 0, len(doc.Table))
	for name := range doc.Table {
		names = append(names, name)
	}
	sortStrings(names)

	for _, name := range names {
		td := doc.Table[name]
		table, err := buildTable(name, td)
		if err != nil {
			return nil, err
		}
		if _, exists := s.tables[name]; exists {
			return nil, lferrors.New(lferrors.SYNTAX, "duplicate table %q", name)
		}
		s.tables[name] = table
		s.order = append(s.order, name)
	}

	if err := validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

func buildTable(name string, td tableDocument) (*Table, error) {
	table := &Table{Name: name}

	nullable := map[string]bool{}
	for _, c := range td.Constraint.Nullable {
		nullable[c] = true
	}

	colNames := make([]string, 0, len(td.Column))
	for col := range td.Column {
		colNames = append(colNames, col)
	}
	sortStrings(colNames)

	seen := map[string]bool{}
	for _, col := range colNames {
		typeName := td.Column[col]
		t, ok := typeNames[typeName]
		if !ok {
			return nil, lferrors.New(lferrors.SYNTAX, "table %q column %q: unknown type %q", name, col, typeName)
		}
		if seen[col] {
			return nil, lferrors.New(lferrors.SYNTAX, "table %q: duplicate column %q", name, col)
		}
		seen[col] = true
		table.Columns = append(table.Columns, Column{
			Name:     col,
			Type:     t,
			Nullable: nullable[col],
		})
	}

	table.PrimaryKey = append([]string(nil), td.Constraint.PrimaryKey...)

	uniqueNames := make([]string, 0, len(td.Constraint.Unique))
	for iname := range td.Constraint.Unique {
		uniqueNames = append(uniqueNames, iname)
	}
	sortStrings(uniqueNames)
	for _, iname := range uniqueNames {
		cols := td.Constraint.Unique[iname]
		table.Indices = append(table.Indices, Index{
			Name:    iname,
			Columns: indexColumns(cols),
			Unique:  true,
			Ordered: true,
		})
	}

	fkNames := make([]string, 0, len(td.Constraint.ForeignKey))
	for fname := range td.Constraint.ForeignKey {
		fkNames = append(fkNames, fname)
	}
	sortStrings(fkNames)
	for _, fname := range fkNames {
		fkd := td.Constraint.ForeignKey[fname]
		table.ForeignKeys = append(table.ForeignKeys, ForeignKey{
			Name:          fname,
			LocalColumns:  []string{fkd.LocalColumn},
			RemoteTable:   fkd.Reference,
			RemoteColumns: []string{fkd.RemoteColumn},
		})
	}

	return table, nil
}

func indexColumns(names []string) []IndexColumn {
	out := make([]IndexColumn, len(names))
	for i, n := range names {
		out[i] = IndexColumn{Column: n}
	}
	return out
}

// validate checks cross-table referential structure: every foreign key's
// local columns exist, and its remote table/columns exist. Cycles between
// tables are legal (§9) and are not rejected here.
func validate(s *Schema) error {
	for _, name := range s.order {
		t := s.tables[name]
		for _, pk := range t.PrimaryKey {
			if _, ok := t.Column(pk); !ok {
				return lferrors.New(lferrors.SYNTAX, "table %q: primary key references unknown column %q", name, pk)
			}
		}
		for _, idx := range t.Indices {
			for _, ic := range idx.Columns {
				if _, ok := t.Column(ic.Column); !ok {
					return lferrors.New(lferrors.SYNTAX, "table %q: index %q references unknown column %q", name, idx.Name, ic.Column)
				}
			}
		}
		for _, fk := range t.ForeignKeys {
			for _, col := range fk.LocalColumns {
				if _, ok := t.Column(col); !ok {
					return lferrors.New(lferrors.SYNTAX, "table %q: foreign key %q references unknown local column %q", name, fk.Name, col)
				}
			}
			remote, ok := s.tables[fk.RemoteTable]
			if !ok {
				return lferrors.New(lferrors.SYNTAX, "table %q: foreign key %q references unknown table %q", name, fk.Name, fk.RemoteTable)
			}
			for _, col := range fk.RemoteColumns {
				if _, ok := remote.Column(col); !ok {
					return lferrors.New(lferrors.SYNTAX, "table %q: foreign key %q references unknown remote column %q.%q", name, fk.Name, fk.RemoteTable, col)
				}
			}
		}
	}
	return nil
}

func sortStrings(in []string) {
	sort.Strings(in)
}
