package assoc

import "github.com/SJBM1876/Musicians-and-Bands-Database/internal/naming"

// Op is the operation a generated accessor method performs.
type Op int

const (
	OpGet Op = iota + 1
	OpAdd
	OpSet
	OpRemove
	OpHas
	OpCount
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpAdd:
		return "add"
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	case OpHas:
		return "has"
	case OpCount:
		return "count"
	default:
		return "unknown"
	}
}

// Method is one generated accessor name bound to its relation, e.g.
// "AddTrack" and "AddTracks" both perform OpAdd on Group.Tracks.
type Method struct {
	Name     string
	Op       Op
	Relation *Relation
}

func methodsFor(rel *Relation) []Method {
	m := func(name string, op Op) Method {
		return Method{Name: name, Op: op, Relation: rel}
	}
	if !rel.Collection() {
		return []Method{
			m("Get"+rel.Name, OpGet),
			m("Set"+rel.Name, OpSet),
		}
	}
	one := naming.Singular(rel.Name)
	return []Method{
		m("Get"+rel.Name, OpGet),
		m("Count"+rel.Name, OpCount),
		m("Set"+rel.Name, OpSet),
		m("Add"+one, OpAdd),
		m("Add"+rel.Name, OpAdd),
		m("Remove"+one, OpRemove),
		m("Remove"+rel.Name, OpRemove),
		m("Has"+one, OpHas),
		m("Has"+rel.Name, OpHas),
	}
}
