package application

import "reflect"

type nodeID struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// SeenSet records the nodes already visited by one walk. Nodes are compared
// by identity: pointers, maps and slices by address, so two equal values
// stored at different places are distinct. Values without an address are
// never recorded.
type SeenSet struct {
	ids map[nodeID]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[nodeID]struct{})}
}

func (s *SeenSet) Add(node any) {
	if id, ok := identity(node); ok {
		s.ids[id] = struct{}{}
	}
}

func (s *SeenSet) Contains(node any) bool {
	id, ok := identity(node)
	if !ok {
		return false
	}
	_, seen := s.ids[id]
	return seen
}

func (s *SeenSet) Len() int { return len(s.ids) }

func identity(node any) (nodeID, bool) {
	v := reflect.ValueOf(node)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return nodeID{}, false
		}
		return nodeID{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		if v.Len() == 0 {
			return nodeID{}, false
		}
		return nodeID{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, true
	}
	return nodeID{}, false
}
