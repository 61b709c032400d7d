package coe

import (
	"fmt"
)

// Subitem is one field of a structural record
type Subitem struct {
	SubIndex uint8
	Name     string
	Type     Builtin
	// Bit offset of the subitem inside the containing record
	BitOffset int
}

// StructuralType is a named record carrying an ordered sequence of
// subitems. Its bit size is the span from offset 0 to the end of the
// last subitem, padding implied by the declared offsets included.
type StructuralType struct {
	RecordName string
	Subitems   []Subitem
}

// NewStructural builds a record descriptor, asserting monotone,
// non-overlapping subitem offsets
func NewStructural(name string, subitems []Subitem) (*StructuralType, error) {
	end := 0
	for i, sub := range subitems {
		if sub.BitOffset < end {
			return nil, fmt.Errorf("structural %q: subitem %d (%s) overlaps the previous one (offset %d < %d)",
				name, i, sub.Name, sub.BitOffset, end)
		}
		end = sub.BitOffset + sub.Type.BitSize()
	}
	return &StructuralType{RecordName: name, Subitems: subitems}, nil
}

func (s *StructuralType) Name() string { return s.RecordName }

// BitSize of the whole record including inter-subitem padding
func (s *StructuralType) BitSize() int {
	if len(s.Subitems) == 0 {
		return 0
	}
	last := s.Subitems[len(s.Subitems)-1]
	return last.BitOffset + last.Type.BitSize()
}

func (s *StructuralType) ByteSize() int {
	return (s.BitSize() + 7) / 8
}

// Subitem returns the subitem with the given subindex
func (s *StructuralType) Subitem(subindex uint8) (Subitem, bool) {
	for _, sub := range s.Subitems {
		if sub.SubIndex == subindex {
			return sub, true
		}
	}
	return Subitem{}, false
}

// SubitemByName returns the first subitem with the given name
func (s *StructuralType) SubitemByName(name string) (Subitem, bool) {
	for _, sub := range s.Subitems {
		if sub.Name == name {
			return sub, true
		}
	}
	return Subitem{}, false
}

// Type is a tagged union over the closed set of CoE descriptors:
// either a builtin (numeric or string, possibly an array) or a
// structural record.
type Type struct {
	builtin    Builtin
	structural *StructuralType
}

// BuiltinType wraps a builtin descriptor into a Type
func BuiltinType(b Builtin) Type {
	return Type{builtin: b}
}

// RecordType wraps a structural descriptor into a Type
func RecordType(s *StructuralType) Type {
	return Type{structural: s}
}

func (t Type) IsStructural() bool { return t.structural != nil }
func (t Type) IsBuiltin() bool    { return t.structural == nil }

func (t Type) IsNumeric() bool { return t.IsBuiltin() && t.builtin.IsNumeric() }
func (t Type) IsString() bool  { return t.IsBuiltin() && t.builtin.IsString() }
func (t Type) IsScalar() bool  { return t.IsBuiltin() && t.builtin.IsScalar() }
func (t Type) IsArray() bool   { return t.IsBuiltin() && t.builtin.IsArray() }

// Builtin returns the builtin descriptor; ok is false for records
func (t Type) Builtin() (Builtin, bool) {
	return t.builtin, t.IsBuiltin()
}

// Structural returns the record descriptor; ok is false for builtins
func (t Type) Structural() (*StructuralType, bool) {
	return t.structural, t.IsStructural()
}

// Id returns the type tag
func (t Type) Id() TypeId {
	if t.IsStructural() {
		return Structural
	}
	return t.builtin.Id
}

func (t Type) Name() string {
	if t.IsStructural() {
		return t.structural.Name()
	}
	return t.builtin.Name()
}

func (t Type) BitSize() int {
	if t.IsStructural() {
		return t.structural.BitSize()
	}
	return t.builtin.BitSize()
}

func (t Type) ByteSize() int {
	return (t.BitSize() + 7) / 8
}

// Equal compares two descriptors structurally
func (t Type) Equal(other Type) bool {
	if t.IsStructural() != other.IsStructural() {
		return false
	}
	if t.IsBuiltin() {
		return t.builtin == other.builtin
	}
	a, b := t.structural, other.structural
	if a.RecordName != b.RecordName || len(a.Subitems) != len(b.Subitems) {
		return false
	}
	for i := range a.Subitems {
		if a.Subitems[i] != b.Subitems[i] {
			return false
		}
	}
	return true
}
