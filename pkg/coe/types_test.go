package coe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ethercat "github.com/samsamfire/goethercat"
)

func TestBuiltinSizes(t *testing.T) {

	sizes := map[TypeId]int{
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
	for id, expected := range sizes {
		builtin, err := NewBuiltin(id)
		assert.Nil(t, err)
		assert.Equal(t, expected, builtin.BitSize())
		assert.Equal(t, (expected+7)/8, builtin.ByteSize())
	}
}

func TestBuiltinNames(t *testing.T) {

	dint, _ := NewBuiltin(DoubleInt)
	assert.Equal(t, "DINT", dint.Name())

	str := NewString(32)
	assert.Equal(t, "STRING(32)", str.Name())
	assert.Equal(t, 256, str.BitSize())

	dwords, _ := NewBuiltinArray(DoubleWord, 4)
	assert.Equal(t, "DWORD_ARRAY", dwords.Name())
	assert.Equal(t, 128, dwords.BitSize())
	assert.True(t, dwords.IsArray())
	assert.False(t, dwords.IsScalar())
}

func TestBuiltinInvalidId(t *testing.T) {

	_, err := NewBuiltin(String)
	assert.ErrorIs(t, err, ethercat.ErrInvalidType)

	_, err = NewBuiltin(TypeId(42))
	assert.ErrorIs(t, err, ethercat.ErrInvalidType)
}

func TestParse(t *testing.T) {

	parsed, err := Parse("DINT")
	assert.Nil(t, err)
	assert.Equal(t, DoubleInt, parsed.Id)

	parsed, err = Parse("BOOL")
	assert.Nil(t, err)
	assert.Equal(t, Bit, parsed.Id)

	parsed, err = Parse("STRING(8)")
	assert.Nil(t, err)
	assert.Equal(t, String, parsed.Id)
	assert.Equal(t, 8, parsed.StringLen)

	_, err = Parse("FLOAT128")
	assert.ErrorIs(t, err, ethercat.ErrInvalidType)
}

func TestStructural(t *testing.T) {

	uint16Type, _ := NewBuiltin(UnsignedInt)
	uint8Type, _ := NewBuiltin(UnsignedShortInt)

	record, err := NewStructural("Status", []Subitem{
		{SubIndex: 1, Name: "Word", Type: uint16Type, BitOffset: 0},
		{SubIndex: 2, Name: "Flags", Type: uint8Type, BitOffset: 24}, // 8 bits padding
	})
	assert.Nil(t, err)
	assert.Equal(t, 32, record.BitSize())
	assert.Equal(t, 4, record.ByteSize())

	sub, ok := record.Subitem(2)
	assert.True(t, ok)
	assert.Equal(t, "Flags", sub.Name)
	sub, ok = record.SubitemByName("Word")
	assert.True(t, ok)
	assert.EqualValues(t, 1, sub.SubIndex)

	// Overlapping subitems are rejected
	_, err = NewStructural("Broken", []Subitem{
		{SubIndex: 1, Name: "A", Type: uint16Type, BitOffset: 0},
		{SubIndex: 2, Name: "B", Type: uint8Type, BitOffset: 8},
	})
	assert.NotNil(t, err)
}

func TestTypeUnion(t *testing.T) {

	dint, _ := NewBuiltin(DoubleInt)
	builtin := BuiltinType(dint)
	assert.True(t, builtin.IsBuiltin())
	assert.True(t, builtin.IsNumeric())
	assert.False(t, builtin.IsStructural())
	assert.Equal(t, DoubleInt, builtin.Id())
	assert.Equal(t, 32, builtin.BitSize())

	uint8Type, _ := NewBuiltin(UnsignedShortInt)
	record, _ := NewStructural("Rec", []Subitem{{SubIndex: 1, Name: "A", Type: uint8Type, BitOffset: 0}})
	structural := RecordType(record)
	assert.True(t, structural.IsStructural())
	assert.Equal(t, Structural, structural.Id())
	assert.Equal(t, "Rec", structural.Name())

	other := BuiltinType(dint)
	assert.True(t, builtin.Equal(other))
	assert.False(t, builtin.Equal(structural))
}
