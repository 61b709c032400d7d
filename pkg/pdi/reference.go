package pdi

import (
	"reflect"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
	"github.com/samsamfire/goethercat/pkg/translation"
)

// Reference pairs a codec with an entry buffer to expose process data
// in application units. It is a non-owning view: its lifetime is
// bounded by the slave that owns the entry.
//
// Two references to the same entry must not be used concurrently;
// references to different entries are safe to use from different
// goroutines.
type Reference[T any] struct {
	entry   *Entry
	wrapper *translation.Wrapper[T]
}

// NewReference binds translator to entry, verifying the codec's target
// shape against the entry's CoE type. A nil cfg selects the default
// translation configuration.
func NewReference[T any](entry *Entry, translator any, cfg *translation.Config) (*Reference[T], error) {
	wrapper, err := translation.NewWrapper[T](translator, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkShape[T](entry.Type()); err != nil {
		return nil, err
	}
	return &Reference[T]{entry: entry, wrapper: wrapper}, nil
}

// NewDefaultReference binds the default codec for T to entry
func NewDefaultReference[T any](entry *Entry, cfg *translation.Config) (*Reference[T], error) {
	mode := translation.AssumeEqualSize
	if cfg != nil {
		mode = cfg.StringArrayMode
	}
	translator, err := translation.NewDefaultWithMode[T](mode)
	if err != nil {
		return nil, err
	}
	return NewReference[T](entry, translator, cfg)
}

// checkShape verifies that T can structurally represent the entry's CoE
// type: scalar against scalar, string against string, sequence against
// array. Widths are the codec's business; shape classes are checked here.
func checkShape[T any](typ coe.Type) error {
	var zero T
	rt := reflect.TypeOf(&zero).Elem()
	shape := func(rt reflect.Type) string {
		switch rt.Kind() {
		case reflect.String:
			return "string"
		case reflect.Slice, reflect.Array:
			if rt.Elem().Kind() == reflect.Uint8 {
				// Byte sequences can image anything
				return "bytes"
			}
			return "array"
		default:
			return "scalar"
		}
	}
	mismatch := func() error {
		return &ethercat.TypeError{
			Expected: rt.String(),
			Actual:   typ.Name(),
		}
	}
	if typ.IsStructural() {
		// Structural records are not mapped into PDO entries
		return mismatch()
	}
	got := shape(rt)
	if got == "bytes" {
		return nil
	}
	switch {
	case typ.IsArray():
		if got != "array" {
			return mismatch()
		}
	case typ.IsString():
		if got != "string" {
			return mismatch()
		}
	default:
		if got != "scalar" {
			return mismatch()
		}
	}
	return nil
}

// Entry returns the referenced entry
func (r *Reference[T]) Entry() *Entry { return r.entry }

// Get translates the entry's current snapshot into a new value.
// Requires the codec to support the input direction.
func (r *Reference[T]) Get() (T, error) {
	var out T
	err := r.GetInto(&out)
	return out, err
}

// GetInto translates the entry's current snapshot into out, for target
// types whose zero value cannot size the translation (pre-sized slices)
func (r *Reference[T]) GetInto(out *T) error {
	return r.entry.WithBuffer(func(buffer []byte) error {
		return r.wrapper.TranslateTo(buffer, out, r.entry.IntraByteOffset())
	})
}

// Set translates obj into the entry buffer. The value reaches the bus
// at the next write cycle; until then [Reference.Get] observes it.
func (r *Reference[T]) Set(obj T) error {
	return r.entry.WithBuffer(func(buffer []byte) error {
		return r.wrapper.TranslateFrom(buffer, &obj, r.entry.IntraByteOffset())
	})
}
