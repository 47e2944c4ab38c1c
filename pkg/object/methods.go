package object

import (
	"math"
	"strconv"
)

// Method names that binary operators dispatch to.
const (
	MethodAdd            = "add"
	MethodSub            = "sub"
	MethodMul            = "mul"
	MethodDiv            = "div"
	MethodMod            = "mod"
	MethodSmallerThan    = "smallerThan"
	MethodGreaterThan    = "greaterThan"
	MethodSmallerOrEqual = "smallerOrEqual"
	MethodGreaterOrEqual = "greaterOrEqual"
	MethodEqualTo        = "equalTo"
	MethodToString       = "toString"
)

var (
	intMethods    map[string]*Object
	floatMethods  map[string]*Object
	stringMethods map[string]*Object
	boolMethods   map[string]*Object
	nullMethods   map[string]*Object
)

func init() {
	intMethods = map[string]*Object{
		MethodAdd: intArith(MethodAdd, func(a, b int32) (int32, error) { return a + b, nil }),
		MethodSub: intArith(MethodSub, func(a, b int32) (int32, error) { return a - b, nil }),
		MethodMul: intArith(MethodMul, func(a, b int32) (int32, error) { return a * b, nil }),
		MethodDiv: intArith(MethodDiv, func(a, b int32) (int32, error) {
			if b == 0 {
				return 0, Errorf(ArithmeticError, "integer division by zero")
			}
			return a / b, nil
		}),
		MethodMod: intArith(MethodMod, func(a, b int32) (int32, error) {
			if b == 0 {
				return 0, Errorf(ArithmeticError, "integer modulo by zero")
			}
			return a % b, nil
		}),
		MethodSmallerThan:    intCompare(MethodSmallerThan, func(a, b int32) bool { return a < b }),
		MethodGreaterThan:    intCompare(MethodGreaterThan, func(a, b int32) bool { return a > b }),
		MethodSmallerOrEqual: intCompare(MethodSmallerOrEqual, func(a, b int32) bool { return a <= b }),
		MethodGreaterOrEqual: intCompare(MethodGreaterOrEqual, func(a, b int32) bool { return a >= b }),
		MethodEqualTo:        intCompare(MethodEqualTo, func(a, b int32) bool { return a == b }),
		MethodToString:       toString(func(o *Object) string { return strconv.FormatInt(int64(o.Value.Int), 10) }),
	}

	floatMethods = map[string]*Object{
		MethodAdd: floatArith(MethodAdd, func(a, b float64) (float64, error) { return a + b, nil }),
		MethodSub: floatArith(MethodSub, func(a, b float64) (float64, error) { return a - b, nil }),
		MethodMul: floatArith(MethodMul, func(a, b float64) (float64, error) { return a * b, nil }),
		MethodDiv: floatArith(MethodDiv, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, Errorf(ArithmeticError, "float division by zero")
			}
			return a / b, nil
		}),
		MethodMod: floatArith(MethodMod, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, Errorf(ArithmeticError, "float modulo by zero")
			}
			return math.Mod(a, b), nil
		}),
		MethodSmallerThan:    floatCompare(MethodSmallerThan, func(a, b float64) bool { return a < b }),
		MethodGreaterThan:    floatCompare(MethodGreaterThan, func(a, b float64) bool { return a > b }),
		MethodSmallerOrEqual: floatCompare(MethodSmallerOrEqual, func(a, b float64) bool { return a <= b }),
		MethodGreaterOrEqual: floatCompare(MethodGreaterOrEqual, func(a, b float64) bool { return a >= b }),
		MethodEqualTo:        floatCompare(MethodEqualTo, func(a, b float64) bool { return a == b }),
		MethodToString:       toString(func(o *Object) string { return formatFloat(o.Value.Float) }),
	}

	stringMethods = map[string]*Object{
		MethodAdd: NewNative(MethodAdd, func(c *Call) error {
			self, right, err := binaryOperands(c, MethodAdd, TypeString)
			if err != nil {
				return err
			}
			c.Stack.Push(NewString(self.Value.Str + right.Value.Str))
			return nil
		}),
		MethodSmallerThan: stringCompare(MethodSmallerThan, func(a, b string) bool { return a < b }),
		MethodGreaterThan: stringCompare(MethodGreaterThan, func(a, b string) bool { return a > b }),
		MethodEqualTo:     stringCompare(MethodEqualTo, func(a, b string) bool { return a == b }),
		MethodToString:    toString(func(o *Object) string { return o.Value.Str }),
		"length": NewNative("length", func(c *Call) error {
			self, err := receiver(c, "length", 0)
			if err != nil {
				return err
			}
			c.Stack.Push(NewInt(int32(len(self.Value.Str))))
			return nil
		}),
	}

	boolMethods = map[string]*Object{
		MethodEqualTo: NewNative(MethodEqualTo, func(c *Call) error {
			self, right, err := binaryOperands(c, MethodEqualTo, TypeBool)
			if err != nil {
				return err
			}
			c.Stack.Push(NewBool(self.Value.Bool == right.Value.Bool))
			return nil
		}),
		MethodToString: toString(func(o *Object) string { return strconv.FormatBool(o.Value.Bool) }),
	}

	nullMethods = map[string]*Object{
		MethodEqualTo: NewNative(MethodEqualTo, func(c *Call) error {
			if _, err := receiver(c, MethodEqualTo, 1); err != nil {
				return err
			}
			right, err := c.Stack.Pop()
			if err != nil {
				return err
			}
			c.Stack.Push(NewBool(right.Type == TypeNull))
			return nil
		}),
		MethodToString: toString(func(*Object) string { return "null" }),
	}
}

// PrimitiveClasses returns fresh class templates for the built-in types. The
// templates share their method tables with the primitives they describe.
func PrimitiveClasses() []*Object {
	return []*Object{
		newPrimitiveClass(TypeInt, NewInt(0)),
		newPrimitiveClass(TypeFloat, NewFloat(0)),
		newPrimitiveClass(TypeString, NewString("")),
		newPrimitiveClass(TypeBool, NewBool(false)),
	}
}

func receiver(c *Call, method string, argc int) (*Object, error) {
	if c.Self == nil {
		return nil, Errorf(DispatchError, "method '%s' called without a receiver", method)
	}
	if c.Argc != argc {
		return nil, Errorf(ArityOrStackError, "%s.%s expects %d argument(s), got %d", c.Self.Type, method, argc, c.Argc)
	}
	return c.Self, nil
}

// binaryOperands pops the right operand and checks its tag against typ.
func binaryOperands(c *Call, method, typ string) (*Object, *Object, error) {
	self, err := receiver(c, method, 1)
	if err != nil {
		return nil, nil, err
	}
	right, err := c.Stack.Pop()
	if err != nil {
		return nil, nil, err
	}
	if right.Type != typ {
		return nil, nil, Errorf(DispatchError, "operator '%s' not implemented for %s and %s", method, self.Type, right.Type)
	}
	return self, right, nil
}

func intArith(method string, f func(a, b int32) (int32, error)) *Object {
	return NewNative(method, func(c *Call) error {
		self, right, err := binaryOperands(c, method, TypeInt)
		if err != nil {
			return err
		}
		v, err := f(self.Value.Int, right.Value.Int)
		if err != nil {
			return err
		}
		c.Stack.Push(NewInt(v))
		return nil
	})
}

func intCompare(method string, f func(a, b int32) bool) *Object {
	return NewNative(method, func(c *Call) error {
		self, right, err := binaryOperands(c, method, TypeInt)
		if err != nil {
			return err
		}
		c.Stack.Push(NewBool(f(self.Value.Int, right.Value.Int)))
		return nil
	})
}

func floatArith(method string, f func(a, b float64) (float64, error)) *Object {
	return NewNative(method, func(c *Call) error {
		self, right, err := binaryOperands(c, method, TypeFloat)
		if err != nil {
			return err
		}
		v, err := f(self.Value.Float, right.Value.Float)
		if err != nil {
			return err
		}
		c.Stack.Push(NewFloat(v))
		return nil
	})
}

func floatCompare(method string, f func(a, b float64) bool) *Object {
	return NewNative(method, func(c *Call) error {
		self, right, err := binaryOperands(c, method, TypeFloat)
		if err != nil {
			return err
		}
		c.Stack.Push(NewBool(f(self.Value.Float, right.Value.Float)))
		return nil
	})
}

func stringCompare(method string, f func(a, b string) bool) *Object {
	return NewNative(method, func(c *Call) error {
		self, right, err := binaryOperands(c, method, TypeString)
		if err != nil {
			return err
		}
		c.Stack.Push(NewBool(f(self.Value.Str, right.Value.Str)))
		return nil
	})
}

func toString(render func(*Object) string) *Object {
	return NewNative(MethodToString, func(c *Call) error {
		self, err := receiver(c, MethodToString, 0)
		if err != nil {
			return err
		}
		c.Stack.Push(NewString(render(self)))
		return nil
	})
}
