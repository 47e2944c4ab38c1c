package object

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKey is the reserved member name under which a primitive exposes its
// payload.
const ValueKey = "value"

// Object is every runtime entity: primitives, functions, namespaces, class
// templates and instances.
type Object struct {
	// Name is the binding name. Assignment rewrites it to the left-hand side;
	// member access extends it to a dotted path such as "p.x". Names starting
	// with '$' belong to anonymous results.
	Name  string
	Type  string
	Value Value
	// Members holds methods and fields. Tables of primitives are shared
	// between objects and copied before the first write.
	Members map[string]*Object
	// Class is the class name for templates and instances.
	Class string
	// Parent is reserved. Lookup and instancing never consult it.
	Parent string

	shared bool
	recv   *Object
}

func anonymous(typ string) string {
	return "$" + strings.ToLower(typ)
}

// Anonymous reports whether the object has no binding to write back to.
func (o *Object) Anonymous() bool {
	return o.Name == "" || o.Name[0] == '$'
}

func NewInt(v int32) *Object {
	return &Object{Name: anonymous(TypeInt), Type: TypeInt, Value: Value{Kind: KindInt, Int: v}, Members: intMethods, shared: true}
}

func NewFloat(v float64) *Object {
	return &Object{Name: anonymous(TypeFloat), Type: TypeFloat, Value: Value{Kind: KindFloat, Float: v}, Members: floatMethods, shared: true}
}

func NewString(v string) *Object {
	return &Object{Name: anonymous(TypeString), Type: TypeString, Value: Value{Kind: KindString, Str: v}, Members: stringMethods, shared: true}
}

func NewBool(v bool) *Object {
	return &Object{Name: anonymous(TypeBool), Type: TypeBool, Value: Value{Kind: KindBool, Bool: v}, Members: boolMethods, shared: true}
}

func NewNull() *Object {
	return &Object{Name: anonymous(TypeNull), Type: TypeNull, Members: nullMethods, shared: true}
}

func NewNative(name string, fn NativeFunc) *Object {
	return &Object{Name: name, Type: TypeFunction, Value: Value{Kind: KindNative, Native: &Native{Name: name, Fn: fn}}}
}

func NewUserFn(name string, body []byte, captures []Capture) *Object {
	return &Object{Name: name, Type: TypeFunction, Value: Value{Kind: KindUserFn, Fn: &UserFn{Name: name, Body: body, Captures: captures}}}
}

// NewNamespace builds a plain object whose members are natives, such as IO.
func NewNamespace(name string, members map[string]*Object) *Object {
	return &Object{Name: name, Type: name, Members: members}
}

// NewClass builds a class template from a snapshot of member bindings.
func NewClass(name string, members map[string]*Object) *Object {
	return &Object{Name: name, Type: TypeClass, Class: name, Members: members}
}

func newPrimitiveClass(name string, zero *Object) *Object {
	return &Object{Name: name, Type: TypeClass, Class: name, Value: zero.Value, Members: zero.Members, shared: true}
}

// IsClass reports whether o is a class template.
func (o *Object) IsClass() bool {
	return o.Type == TypeClass
}

// Callable reports whether o wraps a native or user function.
func (o *Object) Callable() bool {
	return o.Value.Kind == KindNative || o.Value.Kind == KindUserFn
}

func (o *Object) Contains(name string) bool {
	if name == ValueKey {
		return o.Value.Kind != KindNull || o.Type == TypeNull
	}
	_, ok := o.Members[name]
	return ok
}

// Member looks a member up by name. The reserved "value" key yields a copy of
// the primitive itself.
func (o *Object) Member(name string) (*Object, error) {
	if name == ValueKey && o.Contains(ValueKey) {
		v := o.Clone()
		v.Name = o.Name + "." + ValueKey
		return v, nil
	}
	m, ok := o.Members[name]
	if !ok {
		return nil, Errorf(DispatchError, "member '%s' not found on %s", name, o.Type)
	}
	return m, nil
}

// SetMember replaces or adds a member, copying a shared table first. Writing
// a primitive to the "value" key of a primitive replaces its payload.
func (o *Object) SetMember(name string, m *Object) {
	if name == ValueKey && o.Contains(ValueKey) && m.Contains(ValueKey) {
		o.Type, o.Value, o.Members, o.shared = m.Type, m.Value, m.Members, m.shared
		return
	}
	o.own()
	o.Members[name] = m
}

func (o *Object) own() {
	if !o.shared && o.Members != nil {
		return
	}
	members := make(map[string]*Object, len(o.Members)+1)
	for k, v := range o.Members {
		members[k] = v
	}
	o.Members = members
	o.shared = false
}

// MemberNames returns member names in sorted order.
func (o *Object) MemberNames() []string {
	names := make([]string, 0, len(o.Members))
	for k := range o.Members {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone copies o structurally. Owned member tables are copied member by
// member; shared primitive tables stay shared until written.
func (o *Object) Clone() *Object {
	c := *o
	if !o.shared && o.Members != nil {
		c.Members = make(map[string]*Object, len(o.Members))
		for k, v := range o.Members {
			c.Members[k] = v.Clone()
		}
	}
	return &c
}

// Instance clones a class template into a concrete object. No initializer is
// re-run: fields keep the template's snapshot values.
func (o *Object) Instance() *Object {
	inst := o.Clone()
	inst.Type = o.Class
	inst.Name = anonymous(o.Class)
	inst.own()
	return inst
}

// Bind records recv as the receiver of a method object.
func (o *Object) Bind(recv *Object) {
	o.recv = recv
}

func (o *Object) Receiver() *Object {
	return o.recv
}

// Inspect renders o for diagnostics and state snapshots. It never dispatches.
func (o *Object) Inspect() string {
	switch o.Value.Kind {
	case KindInt:
		return strconv.FormatInt(int64(o.Value.Int), 10)
	case KindFloat:
		return formatFloat(o.Value.Float)
	case KindString:
		return o.Value.Str
	case KindBool:
		return strconv.FormatBool(o.Value.Bool)
	case KindNative:
		return fmt.Sprintf("native %s", o.Value.Native.Name)
	case KindUserFn:
		return fmt.Sprintf("function %s", o.Value.Fn.Name)
	}
	if o.IsClass() {
		return fmt.Sprintf("class %s", o.Class)
	}
	if o.Type == TypeNull {
		return "null"
	}
	return fmt.Sprintf("%s{%s}", o.Type, strings.Join(o.MemberNames(), ", "))
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
