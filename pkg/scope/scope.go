// Package scope implements the scope stack: an ordered stack of name→object
// frames searched dynamically, plus the capture lists closures resolve their
// free variables against.
package scope

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexander-drabik/Yapko/pkg/object"
)

// Mode selects how capture entries are resolved.
type Mode uint8

const (
	// CaptureIndex resolves an entry against whatever frame currently sits at
	// the recorded position. A popped and replaced frame is read in its place.
	CaptureIndex Mode = iota
	// CaptureFrame resolves an entry against the frame that was live when the
	// function was closed, even after that frame has been popped.
	CaptureFrame
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "index":
		return CaptureIndex, nil
	case "frame":
		return CaptureFrame, nil
	default:
		return CaptureIndex, fmt.Errorf("unknown capture mode %q (want index or frame)", s)
	}
}

func (m Mode) String() string {
	if m == CaptureFrame {
		return "frame"
	}
	return "index"
}

type Frame struct {
	vars    map[string]*object.Object
	aliases map[string]string
}

func NewFrame() *Frame {
	return &Frame{vars: make(map[string]*object.Object)}
}

func (f *Frame) Binding(name string) (*object.Object, bool) {
	o, ok := f.vars[name]
	return o, ok
}

// Alias makes name refer to the binding found at path when looked up through
// this frame. Method calls use it to bind `self`.
func (f *Frame) Alias(name, path string) {
	if f.aliases == nil {
		f.aliases = make(map[string]string)
	}
	f.aliases[name] = path
}

func (f *Frame) has(name string) bool {
	if _, ok := f.vars[name]; ok {
		return true
	}
	_, ok := f.aliases[name]
	return ok
}

// Names returns the frame's bindings in sorted order.
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.vars))
	for k := range f.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Stack is owned by a single engine. Frame 0 is permanent.
type Stack struct {
	frames   []*Frame
	mode     Mode
	segments []segment
}

// segment is the capture list of one call in progress. base is the frame the
// call was made from; the call's own frames sit above it.
type segment struct {
	base     int
	captures []object.Capture
}

func New(mode Mode) *Stack {
	return &Stack{frames: []*Frame{NewFrame()}, mode: mode}
}

func (s *Stack) Mode() Mode {
	return s.mode
}

func (s *Stack) Push() *Frame {
	f := NewFrame()
	s.frames = append(s.frames, f)
	return f
}

// Pop removes the innermost frame. It never removes frame 0 and reports
// whether a frame was removed.
func (s *Stack) Pop() bool {
	if len(s.frames) == 1 {
		return false
	}
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
	return true
}

// Current is the index of the innermost frame.
func (s *Stack) Current() int {
	return len(s.frames) - 1
}

func (s *Stack) Frame(i int) *Frame {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	return s.frames[i]
}

func (s *Stack) current() *Frame {
	return s.frames[len(s.frames)-1]
}

// Declare binds name in the current frame. Redeclaring a name the current
// frame already holds is a LookupError; outer frames may be shadowed.
func (s *Stack) Declare(name string, o *object.Object) error {
	f := s.current()
	if f.has(name) {
		return object.Errorf(object.LookupError, "'%s' is already defined", name)
	}
	o.Name = name
	f.vars[name] = o
	return nil
}

// Set binds name in the current frame, replacing an existing binding.
func (s *Stack) Set(name string, o *object.Object) {
	o.Name = name
	s.current().vars[name] = o
}

// PushCaptures activates a function's capture list for the duration of a
// call. It must be called from the frame the call is made from, before the
// call opens its own frame.
func (s *Stack) PushCaptures(c []object.Capture) {
	s.segments = append(s.segments, segment{base: s.Current(), captures: c})
}

func (s *Stack) PopCaptures() {
	if len(s.segments) > 0 {
		s.segments[len(s.segments)-1] = segment{}
		s.segments = s.segments[:len(s.segments)-1]
	}
}

// ActiveCaptures reports how many capture lists are active.
func (s *Stack) ActiveCaptures() int {
	return len(s.segments)
}

// Capture flattens the visible bindings for a function being closed: frames
// are walked from the innermost to frame 0 and only the first occurrence of a
// name is kept. The function's own binding in the current frame is appended.
func (s *Stack) Capture(fnName string) []object.Capture {
	seen := make(map[string]bool)
	var out []object.Capture
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		for _, name := range f.Names() {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, object.Capture{Index: i, Name: name, Frame: f})
		}
	}
	return append(out, object.Capture{Index: s.Current(), Name: fnName, Frame: s.current()})
}

// maxAliasDepth bounds alias rewriting so a self-referencing alias fails
// instead of recursing forever.
const maxAliasDepth = 32

// Resolve returns the object bound to a name or dotted path. The object is
// the stored one, callers clone before handing it out.
func (s *Stack) Resolve(path string) (*object.Object, error) {
	return s.resolve(path, 0)
}

func (s *Stack) resolve(path string, depth int) (*object.Object, error) {
	head, rest := splitPath(path)
	o, canonical, err := s.locate(head)
	if err != nil {
		return nil, err
	}
	if canonical != "" {
		if depth >= maxAliasDepth {
			return nil, aliasCycle(head)
		}
		return s.resolve(joinPath(canonical, rest), depth+1)
	}
	for _, name := range rest {
		if o, err = o.Member(name); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Canonical rewrites a path whose head is an alias to the path it stands
// for.
func (s *Stack) Canonical(path string) string {
	for depth := 0; depth < maxAliasDepth; depth++ {
		head, rest := splitPath(path)
		_, canonical, err := s.locate(head)
		if err != nil || canonical == "" {
			return path
		}
		path = joinPath(canonical, rest)
	}
	return path
}

// Assign stores value into the existing binding for path, searching from the
// innermost frame outwards. value.Name becomes the assigned path.
func (s *Stack) Assign(path string, value *object.Object) error {
	return s.assign(path, value, 0)
}

func (s *Stack) assign(path string, value *object.Object, depth int) error {
	head, rest := splitPath(path)
	f, canonical, err := s.owner(head)
	if err != nil {
		return err
	}
	if canonical != "" {
		if depth >= maxAliasDepth {
			return aliasCycle(head)
		}
		return s.assign(joinPath(canonical, rest), value, depth+1)
	}
	value.Name = path
	if len(rest) == 0 {
		f.vars[head] = value
		return nil
	}
	target := f.vars[head]
	for _, name := range rest[:len(rest)-1] {
		m, err := target.Member(name)
		if err != nil {
			return err
		}
		target = m
	}
	target.SetMember(rest[len(rest)-1], value)
	return nil
}

func aliasCycle(name string) error {
	return object.Errorf(object.LookupError, "alias '%s' does not resolve to a binding", name)
}

// locate finds the object for a single name. When the name is an alias the
// alias target is returned instead.
func (s *Stack) locate(name string) (*object.Object, string, error) {
	f, canonical, err := s.owner(name)
	if err != nil {
		return nil, "", err
	}
	if canonical != "" {
		return nil, canonical, nil
	}
	return f.vars[name], "", nil
}

// owner finds the frame holding name: the frames opened by the innermost
// call first (or just the current frame outside a call), then the active
// capture lists (most recent call first), then every live frame from the
// innermost outwards.
func (s *Stack) owner(name string) (*Frame, string, error) {
	for i := s.Current(); i >= s.callBase(); i-- {
		if f, alias, ok := lookIn(s.frames[i], name); ok {
			return f, alias, nil
		}
	}
	for i := len(s.segments) - 1; i >= 0; i-- {
		for _, c := range s.segments[i].captures {
			if c.Name != name {
				continue
			}
			f := s.captured(c)
			if f == nil {
				continue
			}
			if f, alias, ok := lookIn(f, name); ok {
				return f, alias, nil
			}
		}
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if f, alias, ok := lookIn(s.frames[i], name); ok {
			return f, alias, nil
		}
	}
	return nil, "", object.Errorf(object.LookupError, "'%s' not found", name)
}

// callBase is the lowest frame belonging to the innermost call. It is never
// above the current frame.
func (s *Stack) callBase() int {
	n := len(s.segments)
	if n == 0 {
		return s.Current()
	}
	return min(s.segments[n-1].base+1, s.Current())
}

func (s *Stack) captured(c object.Capture) *Frame {
	if s.mode == CaptureFrame {
		f, _ := c.Frame.(*Frame)
		return f
	}
	return s.Frame(c.Index)
}

func lookIn(f *Frame, name string) (*Frame, string, bool) {
	if _, ok := f.vars[name]; ok {
		return f, "", true
	}
	if alias, ok := f.aliases[name]; ok {
		return f, alias, true
	}
	return nil, "", false
}

func splitPath(path string) (string, []string) {
	parts := strings.Split(path, ".")
	return parts[0], parts[1:]
}

func joinPath(head string, rest []string) string {
	if len(rest) == 0 {
		return head
	}
	return head + "." + strings.Join(rest, ".")
}
