// Package translation defines the codec contract used to move values
// between application-domain types and the bit-packed binary images of
// the Process Data Image and SDO transfers, together with a default
// codec covering the builtin CoE types.
//
// A codec is any value implementing a subset of the capability
// interfaces below for a target type T. The [Wrapper] probes those
// capabilities once at construction and normalizes buffer verification
// and error reporting according to [Config].
package translation

import (
	"errors"
	"fmt"

	ethercat "github.com/samsamfire/goethercat"
)

// InputTranslator deserializes a byte-aligned binary image into T
type InputTranslator[T any] interface {
	TranslateTo(data []byte, out *T) error
}

// BitInputTranslator deserializes a binary image whose payload starts
// at an arbitrary bit offset
type BitInputTranslator[T any] interface {
	TranslateToAt(data []byte, out *T, bitOffset int) error
}

// OutputTranslator serializes T into a byte-aligned binary image
type OutputTranslator[T any] interface {
	TranslateFrom(data []byte, obj *T) error
}

// BitOutputTranslator serializes T into a binary image at an arbitrary
// bit offset, preserving bits outside the target window
type BitOutputTranslator[T any] interface {
	TranslateFromAt(data []byte, obj *T, bitOffset int) error
}

// SizingTranslator allocates a binary buffer for a statically-sized T
type SizingTranslator interface {
	MakeBuffer() ([]byte, error)
}

// DynamicSizingTranslator allocates a binary buffer sized after a
// concrete value of a dynamically-sized T
type DynamicSizingTranslator[T any] interface {
	MakeBufferFor(obj *T) ([]byte, error)
}

var (
	// Wrapper construction rejected: verification is enabled but both
	// report channels are off
	ErrUnreportable = errors.New("verification enabled with no report channel (error or boolean)")
	// The supplied codec has no capability usable for the request
	ErrNoTranslator = errors.New("codec provides no translation method for this direction")
)

// TranslationError tags a translation failure with its direction and
// the codec and target types involved
type TranslationError struct {
	Direction  ethercat.Direction
	Translator string
	Target     string
	Err        error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation (%v, %s -> %s): %v", e.Direction, e.Translator, e.Target, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Wrapper binds a codec to a target type T, resolving the codec's
// capability set once and normalizing verification and reporting
// behaviour. The zero value is not usable; construct with [NewWrapper].
type Wrapper[T any] struct {
	cfg      *Config
	name     string
	in       InputTranslator[T]
	bitIn    BitInputTranslator[T]
	out      OutputTranslator[T]
	bitOut   BitOutputTranslator[T]
	sizer    SizingTranslator
	dynSizer DynamicSizingTranslator[T]
}

// NewWrapper probes translator for the capability interfaces against T.
// A nil cfg selects [DefaultConfig]. Construction fails if the codec
// exposes no translation capability at all, or if the configuration
// enables verification without any report channel.
func NewWrapper[T any](translator any, cfg *Config) (*Wrapper[T], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.EnableVerification && !cfg.EnableErrorReturn && !cfg.EnableBooleanReturn {
		return nil, ErrUnreportable
	}
	w := &Wrapper[T]{
		cfg:  cfg,
		name: fmt.Sprintf("%T", translator),
	}
	w.in, _ = translator.(InputTranslator[T])
	w.bitIn, _ = translator.(BitInputTranslator[T])
	w.out, _ = translator.(OutputTranslator[T])
	w.bitOut, _ = translator.(BitOutputTranslator[T])
	w.sizer, _ = translator.(SizingTranslator)
	w.dynSizer, _ = translator.(DynamicSizingTranslator[T])
	if w.in == nil && w.bitIn == nil && w.out == nil && w.bitOut == nil {
		return nil, fmt.Errorf("%w : %s", ErrNoTranslator, w.name)
	}
	return w, nil
}

// CanInput reports whether the codec can deserialize
func (w *Wrapper[T]) CanInput() bool { return w.in != nil || w.bitIn != nil }

// CanOutput reports whether the codec can serialize
func (w *Wrapper[T]) CanOutput() bool { return w.out != nil || w.bitOut != nil }

// Config returns the wrapper's active configuration
func (w *Wrapper[T]) Config() *Config { return w.cfg }

func (w *Wrapper[T]) fail(dir ethercat.Direction, err error) error {
	return &TranslationError{
		Direction:  dir,
		Translator: w.name,
		Target:     fmt.Sprintf("%T", *new(T)),
		Err:        err,
	}
}

// requiredBytes derives the byte footprint of a value from the codec's
// sizing capabilities. ok is false when the codec cannot size itself.
func (w *Wrapper[T]) requiredBytes(obj *T) (int, bool) {
	if w.sizer != nil {
		if buf, err := w.sizer.MakeBuffer(); err == nil {
			return len(buf), true
		}
	}
	if w.dynSizer != nil && obj != nil {
		if buf, err := w.dynSizer.MakeBufferFor(obj); err == nil {
			return len(buf), true
		}
	}
	return 0, false
}

// verify performs the pre-translation buffer-size checks of the
// configuration. Mutation of data only ever happens after verify passes.
func (w *Wrapper[T]) verify(dir ethercat.Direction, data []byte, obj *T, bitOffset int) error {
	if !w.cfg.EnableVerification {
		return nil
	}
	need, ok := w.requiredBytes(obj)
	if !ok {
		return nil
	}
	avail := len(data)*8 - bitOffset
	if avail < need*8 {
		return w.fail(dir, ethercat.ErrBufferTooSmall)
	}
	if !w.cfg.AllowPartialTranslation {
		padded := bitOffset
		if rem := padded % 8; rem != 0 {
			padded += 8 - rem
		}
		if len(data)*8 != need*8+padded {
			return w.fail(dir, ethercat.ErrBufferSizeMismatch)
		}
	}
	return nil
}

// resolve the effective (data, offset) pair for a byte-only codec.
// Strict mode rejects any non-zero offset; otherwise whole bytes of the
// offset are sliced away and a sub-byte remainder is left to the
// caller's risk.
func (w *Wrapper[T]) resolveByteOnly(dir ethercat.Direction, data []byte, bitOffset int) ([]byte, error) {
	if bitOffset == 0 {
		return data, nil
	}
	if w.cfg.StrictBitAlignment {
		return nil, w.fail(dir, fmt.Errorf("%w : codec is byte-only but bit offset is %d",
			ethercat.ErrTranslationFailed, bitOffset))
	}
	return data[bitOffset/8:], nil
}

// TranslateTo deserializes data (payload starting at bitOffset) into out
func (w *Wrapper[T]) TranslateTo(data []byte, out *T, bitOffset int) error {
	if !w.CanInput() {
		return w.fail(ethercat.DirectionInput, ErrNoTranslator)
	}
	if err := w.verify(ethercat.DirectionInput, data, out, bitOffset); err != nil {
		return err
	}
	if w.cfg.BitAlignedSupport && w.bitIn != nil && bitOffset != 0 {
		if err := w.bitIn.TranslateToAt(data, out, bitOffset); err != nil {
			return w.fail(ethercat.DirectionInput, err)
		}
		return nil
	}
	if w.in == nil {
		// Bit-aware only codec, aligned call
		if err := w.bitIn.TranslateToAt(data, out, bitOffset); err != nil {
			return w.fail(ethercat.DirectionInput, err)
		}
		return nil
	}
	resolved, err := w.resolveByteOnly(ethercat.DirectionInput, data, bitOffset)
	if err != nil {
		return err
	}
	if err := w.in.TranslateTo(resolved, out); err != nil {
		return w.fail(ethercat.DirectionInput, err)
	}
	return nil
}

// TranslateFrom serializes obj into data at bitOffset
func (w *Wrapper[T]) TranslateFrom(data []byte, obj *T, bitOffset int) error {
	if !w.CanOutput() {
		return w.fail(ethercat.DirectionOutput, ErrNoTranslator)
	}
	if err := w.verify(ethercat.DirectionOutput, data, obj, bitOffset); err != nil {
		return err
	}
	if w.cfg.BitAlignedSupport && w.bitOut != nil && bitOffset != 0 {
		if err := w.bitOut.TranslateFromAt(data, obj, bitOffset); err != nil {
			return w.fail(ethercat.DirectionOutput, err)
		}
		return nil
	}
	if w.out == nil {
		if err := w.bitOut.TranslateFromAt(data, obj, bitOffset); err != nil {
			return w.fail(ethercat.DirectionOutput, err)
		}
		return nil
	}
	resolved, err := w.resolveByteOnly(ethercat.DirectionOutput, data, bitOffset)
	if err != nil {
		return err
	}
	if err := w.out.TranslateFrom(resolved, obj); err != nil {
		return w.fail(ethercat.DirectionOutput, err)
	}
	return nil
}

// MakeBuffer allocates a binary image buffer for T, preferring the
// static sizing form and falling back to sizing after obj
func (w *Wrapper[T]) MakeBuffer(obj *T) ([]byte, error) {
	if w.sizer != nil {
		if buf, err := w.sizer.MakeBuffer(); err == nil {
			return buf, nil
		}
	}
	if w.dynSizer != nil && obj != nil {
		return w.dynSizer.MakeBufferFor(obj)
	}
	return nil, fmt.Errorf("%w : codec cannot size %s", ethercat.ErrTranslationFailed,
		fmt.Sprintf("%T", *new(T)))
}

// TranslateToOk is the boolean facade of [Wrapper.TranslateTo]. It does
// not consult EnableBooleanReturn; it reports any failure as false.
func (w *Wrapper[T]) TranslateToOk(data []byte, out *T, bitOffset int) bool {
	return w.TranslateTo(data, out, bitOffset) == nil
}

// TranslateFromOk is the boolean facade of [Wrapper.TranslateFrom]
func (w *Wrapper[T]) TranslateFromOk(data []byte, obj *T, bitOffset int) bool {
	return w.TranslateFrom(data, obj, bitOffset) == nil
}
