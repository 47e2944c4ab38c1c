// pkg/object/value_kind.go
package object

// ValueKind tags the payload held in a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindNative
	KindUserFn
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindBool:
		return "BOOL"
	case KindNative:
		return "NATIVE"
	case KindUserFn:
		return "FUNCTION"
	default:
		return "INVALID"
	}
}

// Type tags carried by Object.Type.
const (
	TypeInt      = "Int"
	TypeFloat    = "Float"
	TypeString   = "String"
	TypeBool     = "Boolean"
	TypeNull     = "Null"
	TypeFunction = "Function"
	// TypeClass marks a class template.
	TypeClass = "class"
)

// Value is the immutable tagged payload of an Object. Only the field selected
// by Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Int    int32
	Float  float64
	Str    string
	Bool   bool
	Native *Native
	Fn     *UserFn
}

// Call is what a native function sees when invoked: the receiver for bound
// methods (nil otherwise), the operand stack and the argument count.
type Call struct {
	Self  *Object
	Stack *Stack
	Argc  int
}

type NativeFunc func(c *Call) error

type Native struct {
	Name string
	Fn   NativeFunc
}

// Binder is implemented by scope frames. A Capture keeps one so that a popped
// frame stays readable when captures are resolved by reference.
type Binder interface {
	Binding(name string) (*Object, bool)
}

// Capture records where a free variable lived when a function was closed.
type Capture struct {
	Index int
	Name  string
	Frame Binder
}

// UserFn is a function literal: recorded body bytes plus its capture list.
type UserFn struct {
	Name     string
	Body     []byte
	Captures []Capture
}
