// Package coe describes CoE (CANopen over EtherCAT) data types precisely
// enough that bit-exact PDI and SDO layouts can be computed from them.
package coe

import (
	"fmt"
	"strconv"
	"strings"

	ethercat "github.com/samsamfire/goethercat"
)

// TypeId is the closed enumeration of CoE type tags used by the whole
// library. Values 0..14 are the numeric builtins, String and Structural
// complete the set.
type TypeId uint8

const (
	Bit               TypeId = iota // 1-bit boolean   [BIT / BOOL]
	Bool8                           // 8-bit boolean   [BOOL8]
	Byte                            // 8-bit bitset    [BYTE]
	Word                            // 16-bit bitset   [WORD]
	DoubleWord                      // 32-bit bitset   [DWORD]
	ShortInt                        // 8-bit signed    [SINT]
	UnsignedShortInt                // 8-bit unsigned  [USINT]
	Int                             // 16-bit signed   [INT]
	UnsignedInt                     // 16-bit unsigned [UINT]
	DoubleInt                       // 32-bit signed   [DINT]
	UnsignedDoubleInt               // 32-bit unsigned [UDINT]
	LongInt                         // 64-bit signed   [LINT]
	UnsignedLongInt                 // 64-bit unsigned [ULINT]
	Real                            // 32-bit float    [REAL]
	LongReal                        // 64-bit float    [LREAL]
	String                          // character string [STRING(n)]
	Structural                      // named record of subitems
)

// Number of numeric builtin type ids
const NumericTypesNum = 15

var typeNames = map[TypeId]string{
	Bit:               "BIT",
	Bool8:             "BOOL8",
	Byte:              "BYTE",
	Word:              "WORD",
	DoubleWord:        "DWORD",
	ShortInt:          "SINT",
	UnsignedShortInt:  "USINT",
	Int:               "INT",
	UnsignedInt:       "UINT",
	DoubleInt:         "DINT",
	UnsignedDoubleInt: "UDINT",
	LongInt:           "LINT",
	UnsignedLongInt:   "ULINT",
	Real:              "REAL",
	LongReal:          "LREAL",
}

var numericBitSizes = map[TypeId]int{
	Bit:               1,
	Bool8:             8,
	Byte:              8,
	Word:              16,
	DoubleWord:        32,
	ShortInt:          8,
	UnsignedShortInt:  8,
	Int:               16,
	UnsignedInt:       16,
	DoubleInt:         32,
	UnsignedDoubleInt: 32,
	LongInt:           64,
	UnsignedLongInt:   64,
	Real:              32,
	LongReal:          64,
}

// Aliases accepted when parsing ENI DataType strings. The canonical
// names from typeNames are accepted as well.
var typeAliases = map[string]TypeId{
	"BOOL":    Bit,
	"BIT1":    Bit,
	"BOOL1":   Bit,
	"BYTE8":   Byte,
	"WORD16":  Word,
	"DWORD32": DoubleWord,
	"SINT8":   ShortInt,
	"USINT8":  UnsignedShortInt,
	"INT16":   Int,
	"UINT16":  UnsignedInt,
	"DINT32":  DoubleInt,
	"UDINT32": UnsignedDoubleInt,
	"LINT64":  LongInt,
	"ULINT64": UnsignedLongInt,
	"REAL32":  Real,
	"LREAL64": LongReal,
}

// IsNumeric returns true for the 15 numeric builtin tags
func (id TypeId) IsNumeric() bool { return id < String }

// IsBuiltin returns true for numeric and string tags
func (id TypeId) IsBuiltin() bool { return id <= String }

// Builtin describes a builtin CoE type: a numeric scalar or a string,
// optionally with Arity > 0 denoting a fixed-length array of the base.
type Builtin struct {
	Id TypeId
	// Number of characters, meaningful only when Id == String
	StringLen int
	// 0 for scalars, element count for fixed-length arrays
	Arity int
}

// NewBuiltin creates a scalar builtin descriptor
func NewBuiltin(id TypeId) (Builtin, error) {
	return NewBuiltinArray(id, 0)
}

// NewBuiltinArray creates a builtin descriptor with the given arity.
// Arity 0 denotes a scalar.
func NewBuiltinArray(id TypeId, arity int) (Builtin, error) {
	if !id.IsNumeric() {
		return Builtin{}, fmt.Errorf("%w : %d", ethercat.ErrInvalidType, id)
	}
	return Builtin{Id: id, Arity: arity}, nil
}

// NewString creates a STRING(n) descriptor
func NewString(chars int) Builtin {
	return Builtin{Id: String, StringLen: chars}
}

// NewStringArray creates a fixed-length array of STRING(n)
func NewStringArray(chars int, arity int) Builtin {
	return Builtin{Id: String, StringLen: chars, Arity: arity}
}

// Return the CoE name of the type, e.g. "SINT", "STRING(32)",
// "DWORD_ARRAY" for arrays
func (b Builtin) Name() string {
	var base string
	if b.Id == String {
		base = fmt.Sprintf("STRING(%d)", b.StringLen)
	} else {
		base = typeNames[b.Id]
	}
	if b.Arity > 0 {
		return base + "_ARRAY"
	}
	return base
}

// Return the base bit size of a single element
func (b Builtin) baseBitSize() int {
	if b.Id == String {
		return 8 * b.StringLen
	}
	return numericBitSizes[b.Id]
}

// BitSize returns the total bit size of the described type,
// multiplied by arity for arrays
func (b Builtin) BitSize() int {
	if b.Arity > 0 {
		return b.baseBitSize() * b.Arity
	}
	return b.baseBitSize()
}

// ByteSize returns the bit size rounded up to full bytes
func (b Builtin) ByteSize() int {
	return (b.BitSize() + 7) / 8
}

// AsType wraps the builtin into a [Type]
func (b Builtin) AsType() Type { return BuiltinType(b) }

func (b Builtin) IsNumeric() bool { return b.Id.IsNumeric() }
func (b Builtin) IsString() bool  { return b.Id == String }
func (b Builtin) IsScalar() bool  { return b.Arity == 0 }
func (b Builtin) IsArray() bool   { return b.Arity > 0 }

// Parse resolves an ENI DataType string into a builtin descriptor.
// Accepts canonical CoE names ("DINT"), common aliases ("BOOL", "INT16")
// and "STRING(n)".
func Parse(name string) (Builtin, error) {
	trimmed := strings.TrimSpace(name)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "STRING(") && strings.HasSuffix(upper, ")") {
		inner := upper[len("STRING(") : len(upper)-1]
		chars, err := strconv.Atoi(inner)
		if err != nil || chars <= 0 {
			return Builtin{}, fmt.Errorf("%w : bad string length in %q", ethercat.ErrInvalidType, name)
		}
		return NewString(chars), nil
	}
	for id, n := range typeNames {
		if n == upper {
			return Builtin{Id: id}, nil
		}
	}
	if id, ok := typeAliases[upper]; ok {
		return Builtin{Id: id}, nil
	}
	return Builtin{}, fmt.Errorf("%w : unknown CoE type %q", ethercat.ErrInvalidType, name)
}
