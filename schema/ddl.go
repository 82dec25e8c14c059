package schema

import (
	"fmt"
	"strings"

	"github.com/SJBM1876/Musicians-and-Bands-Database/orm"
)

// CreateStatements returns CREATE TABLE statements for every kind and join
// table. Referenced tables come before the tables that reference them.
func (r *Registry) CreateStatements(d orm.Dialect) []string {
	kinds := r.sortedKinds()
	joins := r.JoinTables()

	stmts := make([]string, 0, len(kinds)+len(joins))
	for _, k := range kinds {
		stmts = append(stmts, createKind(d, k))
	}
	for _, jt := range joins {
		stmts = append(stmts, createJoin(d, jt))
	}
	return stmts
}

// DropStatements returns DROP TABLE statements in the reverse order of
// CreateStatements.
func (r *Registry) DropStatements(d orm.Dialect) []string {
	kinds := r.sortedKinds()
	joins := r.JoinTables()

	stmts := make([]string, 0, len(kinds)+len(joins))
	for i := len(joins) - 1; i >= 0; i-- {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+d.QuoteIdent(joins[i].Table))
	}
	for i := len(kinds) - 1; i >= 0; i-- {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+d.QuoteIdent(kinds[i].Table))
	}
	return stmts
}

// sortedKinds orders kinds so that every referenced kind precedes the
// kinds holding foreign keys to it. Ties keep registration order.
func (r *Registry) sortedKinds() []*Kind {
	kinds := r.Kinds()
	byName := make(map[string]*Kind, len(kinds))
	for _, k := range kinds {
		byName[k.Name] = k
	}

	var out []*Kind
	state := make(map[string]int, len(kinds)) // 1 visiting, 2 done
	var visit func(k *Kind)
	visit = func(k *Kind) {
		if state[k.Name] != 0 {
			return
		}
		state[k.Name] = 1
		for _, fk := range k.ForeignKeys {
			if ref, ok := byName[fk.RefKind]; ok && ref != k {
				visit(ref)
			}
		}
		state[k.Name] = 2
		out = append(out, k)
	}
	for _, k := range kinds {
		visit(k)
	}
	return out
}

func createKind(d orm.Dialect, k *Kind) string {
	qi := d.QuoteIdent
	defs := []string{qi(orm.PrimaryKey) + " " + primaryKeyType(d)}
	for _, f := range k.Fields {
		def := qi(f.Name) + " " + columnType(d, f.Type)
		if f.Required {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	for _, fk := range k.ForeignKeys {
		defs = append(defs, qi(fk.Column)+" "+columnType(d, Integer))
	}
	defs = append(defs,
		qi(CreatedAt)+" "+columnType(d, Time)+" NOT NULL",
		qi(UpdatedAt)+" "+columnType(d, Time)+" NOT NULL",
	)
	for _, fk := range k.ForeignKeys {
		defs = append(defs, foreignKey(d, fk.Column, fk.RefTable, fk.OnDelete))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qi(k.Table), strings.Join(defs, ", "))
}

func createJoin(d orm.Dialect, jt JoinTable) string {
	qi := d.QuoteIdent
	intType := columnType(d, Integer)
	defs := []string{
		qi(jt.Left.Column) + " " + intType + " NOT NULL",
		qi(jt.Right.Column) + " " + intType + " NOT NULL",
		fmt.Sprintf("PRIMARY KEY (%s, %s)", qi(jt.Left.Column), qi(jt.Right.Column)),
		foreignKey(d, jt.Left.Column, jt.Left.Table, "CASCADE"),
		foreignKey(d, jt.Right.Column, jt.Right.Table, "CASCADE"),
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qi(jt.Table), strings.Join(defs, ", "))
}

func foreignKey(d orm.Dialect, column, refTable, onDelete string) string {
	s := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QuoteIdent(column), d.QuoteIdent(refTable), d.QuoteIdent(orm.PrimaryKey))
	if onDelete != "" {
		s += " ON DELETE " + onDelete
	}
	return s
}

func primaryKeyType(d orm.Dialect) string {
	switch d.Name() {
	case "postgres":
		return "BIGSERIAL PRIMARY KEY"
	case "mysql":
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func columnType(d orm.Dialect, t Type) string {
	switch d.Name() {
	case "postgres":
		switch t {
		case String:
			return "VARCHAR(255)"
		case Integer:
			return "BIGINT"
		case Float:
			return "DOUBLE PRECISION"
		case Boolean:
			return "BOOLEAN"
		case Time:
			return "TIMESTAMPTZ"
		}
	case "mysql":
		switch t {
		case String:
			return "VARCHAR(255)"
		case Integer:
			return "BIGINT"
		case Float:
			return "DOUBLE"
		case Boolean:
			return "BOOLEAN"
		case Time:
			return "DATETIME(6)"
		}
	default:
		switch t {
		case String:
			return "TEXT"
		case Integer:
			return "INTEGER"
		case Float:
			return "REAL"
		case Boolean:
			return "BOOLEAN"
		case Time:
			return "DATETIME"
		}
	}
	return "TEXT"
}
