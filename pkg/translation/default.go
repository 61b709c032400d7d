package translation

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/internal/bits"
)

// Bit is the 1-bit boolean tag type. It shares the host representation
// of bool but occupies a single bit in a binary image, against bool's
// eight (BOOL8).
type Bit bool

var bitType = reflect.TypeOf(Bit(false))

// Default is the stock codec for the builtin CoE representation types:
// Bit and bool, the integer and float scalars, strings, byte slices,
// fixed-length arrays and dynamic slices of the above, and []string
// under the configured array layout mode. Values are copied verbatim
// on a little-endian host; the bit-offset-aware forms shift-and-merge
// over a sliding byte window.
//
// Default is stateless apart from the string-array mode; a single
// instance may serve any number of wrappers and goroutines.
type Default[T any] struct {
	mode StringArrayMode
}

// NewDefault creates a default codec for T, rejecting unsupported types
func NewDefault[T any]() (*Default[T], error) {
	return NewDefaultWithMode[T](AssumeEqualSize)
}

// NewDefaultWithMode creates a default codec with an explicit
// string-array layout mode
func NewDefaultWithMode[T any](mode StringArrayMode) (*Default[T], error) {
	var zero T
	if err := checkSupported(reflect.TypeOf(&zero).Elem()); err != nil {
		return nil, err
	}
	return &Default[T]{mode: mode}, nil
}

// MustDefault is [NewDefault] for statically known-supported types
func MustDefault[T any]() *Default[T] {
	translator, err := NewDefault[T]()
	if err != nil {
		panic(err)
	}
	return translator
}

// checkSupported validates that rt belongs to the default codec's
// support set
func checkSupported(rt reflect.Type) error {
	switch rt.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return nil
	case reflect.Slice, reflect.Array:
		return checkSupported(rt.Elem())
	default:
		return fmt.Errorf("%w : %v is not in the default codec's support set",
			ethercat.ErrTranslationFailed, rt)
	}
}

// scalarBitSize returns the image bit size of a scalar kind, not
// counting arrays or slices. ok is false for strings and aggregates.
func scalarBitSize(rt reflect.Type) (int, bool) {
	if rt == bitType {
		return 1, true
	}
	switch rt.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 8, true
	case reflect.Int16, reflect.Uint16:
		return 16, true
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 32, true
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return 64, true
	}
	return 0, false
}

// staticBitSize computes the image bit size of rt when it is knowable
// without a value. ok is false for dynamically sized types.
func staticBitSize(rt reflect.Type) (int, bool) {
	if size, ok := scalarBitSize(rt); ok {
		return size, ok
	}
	if rt.Kind() == reflect.Array {
		elem, ok := staticBitSize(rt.Elem())
		if !ok {
			return 0, false
		}
		return elem * rt.Len(), true
	}
	return 0, false
}

// valueBitSize computes the image bit size of a concrete value,
// consulting the string-array mode for []string shapes
func (t *Default[T]) valueBitSize(v reflect.Value) (int, error) {
	rt := v.Type()
	if size, ok := scalarBitSize(rt); ok {
		return size, nil
	}
	switch rt.Kind() {
	case reflect.String:
		return 8 * v.Len(), nil
	case reflect.Slice, reflect.Array:
		if rt.Elem().Kind() == reflect.String {
			return t.stringArrayBitSize(v)
		}
		if elem, ok := scalarBitSize(rt.Elem()); ok {
			return elem * v.Len(), nil
		}
		// Variable-length elements (strings handled above)
		total := 0
		for i := 0; i < v.Len(); i++ {
			size, err := t.valueBitSize(v.Index(i))
			if err != nil {
				return 0, err
			}
			total += size
		}
		return total, nil
	}
	return 0, fmt.Errorf("%w : cannot size %v", ethercat.ErrTranslationFailed, rt)
}

// stringArrayBitSize applies the configured layout mode to an array of
// variable-length strings
func (t *Default[T]) stringArrayBitSize(v reflect.Value) (int, error) {
	count := v.Len()
	if count == 0 {
		return 0, nil
	}
	first := v.Index(0).Len()
	switch t.mode {
	case AssumeEqualSize:
		return 8 * first * count, nil
	case RequireEqualSize:
		for i := 1; i < count; i++ {
			if v.Index(i).Len() != first {
				return 0, fmt.Errorf("%w : element %d has length %d, element 0 has %d",
					ethercat.ErrStringArrayShapeMismatch, i, v.Index(i).Len(), first)
			}
		}
		return 8 * first * count, nil
	default: // AllowVariableSize
		total := 0
		for i := 0; i < count; i++ {
			total += v.Index(i).Len()
		}
		return 8 * total, nil
	}
}

// encode serializes v into freshly allocated little-endian image bytes
func (t *Default[T]) encode(v reflect.Value) ([]byte, error) {
	rt := v.Type()
	if rt == bitType {
		if v.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	}
	switch rt.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case reflect.Int8:
		return []byte{byte(v.Int())}, nil
	case reflect.Uint8:
		return []byte{byte(v.Uint())}, nil
	case reflect.Int16, reflect.Uint16:
		data := make([]byte, 2)
		binary.LittleEndian.PutUint16(data, uint16(integerOf(v)))
		return data, nil
	case reflect.Int32, reflect.Uint32:
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(integerOf(v)))
		return data, nil
	case reflect.Int64, reflect.Uint64:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, integerOf(v))
		return data, nil
	case reflect.Float32:
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(v.Float())))
		return data, nil
	case reflect.Float64:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, math.Float64bits(v.Float()))
		return data, nil
	case reflect.String:
		return []byte(v.String()), nil
	case reflect.Slice, reflect.Array:
		return t.encodeSequence(v)
	}
	return nil, fmt.Errorf("%w : cannot encode %v", ethercat.ErrTranslationFailed, rt)
}

func integerOf(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(v.Int())
	default:
		return v.Uint()
	}
}

// encodeSequence serializes a slice or array. Bit elements are packed
// eight to a byte, LSB first; string elements follow the array mode;
// everything else is the concatenation of element images.
func (t *Default[T]) encodeSequence(v reflect.Value) ([]byte, error) {
	rt := v.Type()
	count := v.Len()
	if rt.Elem() == bitType {
		data := make([]byte, bits.BytesFor(count))
		for i := 0; i < count; i++ {
			if v.Index(i).Bool() {
				data[i/8] |= 1 << (i % 8)
			}
		}
		return data, nil
	}
	if rt.Elem().Kind() == reflect.String {
		return t.encodeStringArray(v)
	}
	var data []byte
	for i := 0; i < count; i++ {
		elem, err := t.encode(v.Index(i))
		if err != nil {
			return nil, err
		}
		data = append(data, elem...)
	}
	return data, nil
}

func (t *Default[T]) encodeStringArray(v reflect.Value) ([]byte, error) {
	size, err := t.stringArrayBitSize(v)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, size/8)
	count := v.Len()
	if count == 0 {
		return data, nil
	}
	if t.mode == AllowVariableSize {
		for i := 0; i < count; i++ {
			data = append(data, v.Index(i).String()...)
		}
		return data, nil
	}
	// Equal-size layouts use element 0's length for every slot,
	// truncating or zero-padding as needed
	width := v.Index(0).Len()
	for i := 0; i < count; i++ {
		slot := make([]byte, width)
		copy(slot, v.Index(i).String())
		data = append(data, slot...)
	}
	return data, nil
}

// decode deserializes image bytes into the addressable value out
func (t *Default[T]) decode(data []byte, out reflect.Value) error {
	rt := out.Type()
	if rt == bitType {
		out.SetBool(len(data) > 0 && data[0]&1 != 0)
		return nil
	}
	switch rt.Kind() {
	case reflect.Bool:
		if len(data) < 1 {
			return fmt.Errorf("%w : need 1 byte", ethercat.ErrBufferTooSmall)
		}
		out.SetBool(data[0] != 0)
		return nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		raw, err := readUint(data, out.Type().Bits()/8)
		if err != nil {
			return err
		}
		out.SetInt(signExtend(raw, out.Type().Bits()))
		return nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		raw, err := readUint(data, out.Type().Bits()/8)
		if err != nil {
			return err
		}
		out.SetUint(raw)
		return nil
	case reflect.Float32:
		raw, err := readUint(data, 4)
		if err != nil {
			return err
		}
		out.SetFloat(float64(math.Float32frombits(uint32(raw))))
		return nil
	case reflect.Float64:
		raw, err := readUint(data, 8)
		if err != nil {
			return err
		}
		out.SetFloat(math.Float64frombits(raw))
		return nil
	case reflect.String:
		out.SetString(trimNul(data))
		return nil
	case reflect.Slice, reflect.Array:
		return t.decodeSequence(data, out)
	}
	return fmt.Errorf("%w : cannot decode %v", ethercat.ErrTranslationFailed, rt)
}

// decodeSequence fills a slice or array element-wise. For slices the
// element count is the slice's current length; the codec never resizes
// the destination.
func (t *Default[T]) decodeSequence(data []byte, out reflect.Value) error {
	rt := out.Type()
	count := out.Len()
	if rt.Elem() == bitType {
		for i := 0; i < count; i++ {
			if i/8 >= len(data) {
				return fmt.Errorf("%w : need %d bits", ethercat.ErrBufferTooSmall, count)
			}
			out.Index(i).SetBool(data[i/8]&(1<<(i%8)) != 0)
		}
		return nil
	}
	if rt.Elem().Kind() == reflect.String {
		return t.decodeStringArray(data, out)
	}
	elemBits, ok := scalarBitSize(rt.Elem())
	if !ok {
		return fmt.Errorf("%w : cannot decode element type %v", ethercat.ErrTranslationFailed, rt.Elem())
	}
	width := elemBits / 8
	if len(data) < width*count {
		return fmt.Errorf("%w : need %d bytes, have %d", ethercat.ErrBufferTooSmall, width*count, len(data))
	}
	for i := 0; i < count; i++ {
		if err := t.decode(data[i*width:(i+1)*width], out.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// decodeStringArray reads per-slot string data; every slot is as wide as
// the destination's element 0 (equal-size modes) or as the destination
// element's own current length (variable mode)
func (t *Default[T]) decodeStringArray(data []byte, out reflect.Value) error {
	count := out.Len()
	if count == 0 {
		return nil
	}
	offset := 0
	for i := 0; i < count; i++ {
		width := out.Index(i).Len()
		if t.mode != AllowVariableSize {
			width = out.Index(0).Len()
		}
		if offset+width > len(data) {
			return fmt.Errorf("%w : string slot %d needs %d bytes", ethercat.ErrBufferTooSmall, i, width)
		}
		out.Index(i).SetString(trimNul(data[offset : offset+width]))
		offset += width
	}
	return nil
}

func readUint(data []byte, width int) (uint64, error) {
	if len(data) < width {
		return 0, fmt.Errorf("%w : need %d bytes, have %d", ethercat.ErrBufferTooSmall, width, len(data))
	}
	switch width {
	case 1:
		return uint64(data[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(data)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	default:
		return binary.LittleEndian.Uint64(data), nil
	}
}

func signExtend(raw uint64, width int) int64 {
	shift := 64 - width
	return int64(raw<<shift) >> shift
}

// trimNul drops the trailing NUL padding CoE strings carry on the wire
func trimNul(data []byte) string {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	return string(data[:end])
}

// TranslateTo implements [InputTranslator]
func (t *Default[T]) TranslateTo(data []byte, out *T) error {
	return t.decode(data, reflect.ValueOf(out).Elem())
}

// TranslateToAt implements [BitInputTranslator]
func (t *Default[T]) TranslateToAt(data []byte, out *T, bitOffset int) error {
	if bitOffset%8 == 0 {
		return t.TranslateTo(data[bitOffset/8:], out)
	}
	rv := reflect.ValueOf(out).Elem()
	size, err := t.valueBitSize(rv)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	aligned := make([]byte, bits.BytesFor(size))
	if len(data)*8-bitOffset < size {
		return fmt.Errorf("%w : need %d bits at offset %d", ethercat.ErrBufferTooSmall, size, bitOffset)
	}
	bits.GetBits(aligned, data, bitOffset, size)
	return t.decode(aligned, rv)
}

// TranslateFrom implements [OutputTranslator]
func (t *Default[T]) TranslateFrom(data []byte, obj *T) error {
	encoded, err := t.encode(reflect.ValueOf(obj).Elem())
	if err != nil {
		return err
	}
	if len(data) < len(encoded) {
		return fmt.Errorf("%w : need %d bytes, have %d", ethercat.ErrBufferTooSmall, len(encoded), len(data))
	}
	copy(data, encoded)
	return nil
}

// TranslateFromAt implements [BitOutputTranslator]. Bits outside the
// target window keep their prior content.
func (t *Default[T]) TranslateFromAt(data []byte, obj *T, bitOffset int) error {
	rv := reflect.ValueOf(obj).Elem()
	size, err := t.valueBitSize(rv)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	encoded, err := t.encode(rv)
	if err != nil {
		return err
	}
	if len(data)*8-bitOffset < size {
		return fmt.Errorf("%w : need %d bits at offset %d", ethercat.ErrBufferTooSmall, size, bitOffset)
	}
	bits.PutBits(data, encoded, bitOffset, size)
	return nil
}

// MakeBuffer implements [SizingTranslator] for statically sized targets
func (t *Default[T]) MakeBuffer() ([]byte, error) {
	var zero T
	size, ok := staticBitSize(reflect.TypeOf(&zero).Elem())
	if !ok {
		return nil, fmt.Errorf("%w : %T is dynamically sized", ethercat.ErrTranslationFailed, zero)
	}
	return make([]byte, bits.BytesFor(size)), nil
}

// MakeBufferFor implements [DynamicSizingTranslator], sizing the buffer
// after the concrete value
func (t *Default[T]) MakeBufferFor(obj *T) ([]byte, error) {
	size, err := t.valueBitSize(reflect.ValueOf(obj).Elem())
	if err != nil {
		return nil, err
	}
	return make([]byte, bits.BytesFor(size)), nil
}
