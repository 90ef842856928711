// Package schema implements the declarative schema primitives and the
// recursive, path-tracked validator.
package schema

// Kind enumerates the scalar leaf kinds a schema node may require.
type Kind string

const (
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindDuration Kind = "duration"
	KindCron     Kind = "cron"
)

// Node is the common interface implemented by every schema primitive:
// scalar kinds, collections, Optional/Required-wrapped object fields,
// Union, and Any.
type Node interface {
	node()
}

// Scalar matches one of the permitted leaf kinds.
type Scalar struct {
	Kind Kind
}

func (Scalar) node() {}

// ListNode matches an ordered list whose elements all satisfy Elem.
type ListNode struct {
	Elem Node
}

func (ListNode) node() {}

// MapNode matches a map of arbitrary string keys to values satisfying Elem.
// Unlike Obj, MapNode keys are not declared individually and therefore
// never trigger "unknown extra key" diagnostics.
type MapNode struct {
	Elem Node
}

func (MapNode) node() {}

// Field describes one declared key of an Obj schema node.
type Field struct {
	Key      string
	Node     Node
	Required bool
	Default  any // used when Required is false and the key is absent
}

// Required declares a mandatory object field.
func Required(key string, n Node) Field {
	return Field{Key: key, Node: n, Required: true}
}

// Optional declares an object field with a default value used when absent.
func Optional(key string, n Node, def any) Field {
	return Field{Key: key, Node: n, Required: false, Default: def}
}

// Obj matches a map whose declared keys must each satisfy their Field's
// Node; any key not declared in Fields is an "unknown extra key" error
// unless the schema is wrapped in Any.
type Obj struct {
	Fields []Field
}

func (Obj) node() {}

// AllOptional reports whether every field of the object is Optional --
// the condition under which the validator may synthesize the whole map
// from defaults when the key is entirely absent.
func (o Obj) AllOptional() bool {
	for _, f := range o.Fields {
		if f.Required {
			return false
		}
	}
	return true
}

// Union validates the value against the branch with the most of its
// required keys present (the earlier branch wins a tie); when no branch has
// any required key present, the validator reports each branch's first
// mismatch.
type Union struct {
	Branches []Node
}

func (Union) node() {}

// Any matches any value without further validation.
type Any struct{}

func (Any) node() {}
