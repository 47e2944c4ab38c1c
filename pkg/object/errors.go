package object

import "fmt"

// Kind classifies runtime errors. A Kind is itself an error so callers can
// test with errors.Is(err, object.LookupError).
type Kind uint8

const (
	LookupError Kind = iota + 1
	DispatchError
	ArityOrStackError
	TypeMismatchError
	EncodingError
	ArithmeticError
	LimitError
)

func (k Kind) String() string {
	switch k {
	case LookupError:
		return "LookupError"
	case DispatchError:
		return "DispatchError"
	case ArityOrStackError:
		return "ArityOrStackError"
	case TypeMismatchError:
		return "TypeMismatchError"
	case EncodingError:
		return "EncodingError"
	case ArithmeticError:
		return "ArithmeticError"
	case LimitError:
		return "LimitError"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) Error() string { return k.String() }

// Error is a terminal runtime condition. Op and Offset are filled in by the
// engine with the instruction that was executing.
type Error struct {
	Kind   Kind
	Msg    string
	Op     string
	Offset int
}

func Errorf(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...), Offset: -1}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s (in '%s' at offset %d)", e.Kind, e.Msg, e.Op, e.Offset)
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}
