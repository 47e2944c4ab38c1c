package object

// Stack is the operand stack. Top of stack is items[len(items)-1].
type Stack struct {
	items []*Object
}

func NewStack() *Stack {
	return &Stack{items: make([]*Object, 0, 16)}
}

func (s *Stack) Push(o *Object) {
	s.items = append(s.items, o)
}

func (s *Stack) Pop() (*Object, error) {
	if len(s.items) == 0 {
		return nil, Errorf(ArityOrStackError, "operand stack is empty")
	}
	o := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	return o, nil
}

// Peek returns the entry depth positions below the top; depth 0 is the top.
func (s *Stack) Peek(depth int) (*Object, error) {
	if depth < 0 || depth >= len(s.items) {
		return nil, Errorf(ArityOrStackError, "operand stack has %d entries, need %d", len(s.items), depth+1)
	}
	return s.items[len(s.items)-1-depth], nil
}

// Remove takes out the entry depth positions below the top, keeping the
// entries above it in order.
func (s *Stack) Remove(depth int) (*Object, error) {
	o, err := s.Peek(depth)
	if err != nil {
		return nil, err
	}
	i := len(s.items) - 1 - depth
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	return o, nil
}

func (s *Stack) Len() int {
	return len(s.items)
}

// Items returns a copy of the stack, bottom first.
func (s *Stack) Items() []*Object {
	out := make([]*Object, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Stack) Reset() {
	for i := range s.items {
		s.items[i] = nil
	}
	s.items = s.items[:0]
}
