package slave

import (
	"fmt"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
	"github.com/samsamfire/goethercat/pkg/translation"
)

// Sdo is a typed proxy for acyclic object-dictionary access on one
// slave. It is a weak view: it holds no resources and has no lifetime
// coupling to the bus cycle; create proxies on demand.
type Sdo[T any] struct {
	slave     *Slave
	direction ethercat.SdoDirection
	addr      ethercat.SdoAddress
	wrapper   *translation.Wrapper[T]
}

// NewSdo builds an SDO proxy around an explicit codec. The codec must
// support the capability matching the proxy direction.
func NewSdo[T any](s *Slave, direction ethercat.SdoDirection, index uint16, subindex uint8, translator any, cfg *translation.Config) (*Sdo[T], error) {
	wrapper, err := translation.NewWrapper[T](translator, cfg)
	if err != nil {
		return nil, err
	}
	needsInput := direction == ethercat.SdoUpload || direction == ethercat.SdoBidirectional
	needsOutput := direction == ethercat.SdoDownload || direction == ethercat.SdoBidirectional
	if needsInput && !wrapper.CanInput() {
		return nil, fmt.Errorf("%w : upload proxy needs an input-capable codec", translation.ErrNoTranslator)
	}
	if needsOutput && !wrapper.CanOutput() {
		return nil, fmt.Errorf("%w : download proxy needs an output-capable codec", translation.ErrNoTranslator)
	}
	return &Sdo[T]{
		slave:     s,
		direction: direction,
		addr:      ethercat.SdoAddress{Index: index, SubIndex: subindex},
		wrapper:   wrapper,
	}, nil
}

// NewDefaultSdo builds an SDO proxy using the default codec for T
func NewDefaultSdo[T any](s *Slave, direction ethercat.SdoDirection, index uint16, subindex uint8, cfg *translation.Config) (*Sdo[T], error) {
	mode := translation.AssumeEqualSize
	if cfg != nil {
		mode = cfg.StringArrayMode
	}
	translator, err := translation.NewDefaultWithMode[T](mode)
	if err != nil {
		return nil, err
	}
	return NewSdo[T](s, direction, index, subindex, translator, cfg)
}

// Address returns the object-dictionary address of the proxy
func (s *Sdo[T]) Address() ethercat.SdoAddress { return s.addr }

// Direction returns the proxy's direction tag
func (s *Sdo[T]) Direction() ethercat.SdoDirection { return s.direction }

func (s *Sdo[T]) checkDirection(needed ethercat.SdoDirection) error {
	if s.direction == ethercat.SdoBidirectional || s.direction == needed {
		return nil
	}
	return fmt.Errorf("%w : proxy direction does not allow the operation", ethercat.ErrTranslationFailed)
}

// Upload reads the object from the slave and translates it into a new
// value. The buffer is sized from the codec, preferring static sizing.
func (s *Sdo[T]) Upload(timeout time.Duration, access ethercat.SdoAccess) (T, error) {
	var out T
	err := s.UploadInto(&out, timeout, access)
	return out, err
}

// UploadInto reads the object into out; for dynamically sized targets
// the transfer buffer is sized after out's current value
func (s *Sdo[T]) UploadInto(out *T, timeout time.Duration, access ethercat.SdoAccess) error {
	if err := s.checkDirection(ethercat.SdoUpload); err != nil {
		return err
	}
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	buffer, err := s.wrapper.MakeBuffer(out)
	if err != nil {
		return err
	}
	read, err := s.slave.driver.SdoUpload(s.slave.GetFixedAddr(), s.addr, buffer, timeout, access)
	if err != nil {
		return err
	}
	return s.wrapper.TranslateTo(buffer[:read], out, 0)
}

// UploadBytes reads an object as its raw binary image, sized from the
// given CoE type descriptor. For callers that select the representation
// by type id and arity instead of a Go type.
func (s *Slave) UploadBytes(index uint16, subindex uint8, typ coe.Builtin, timeout time.Duration, access ethercat.SdoAccess) ([]byte, error) {
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	buffer := make([]byte, typ.ByteSize())
	addr := ethercat.SdoAddress{Index: index, SubIndex: subindex}
	read, err := s.driver.SdoUpload(s.GetFixedAddr(), addr, buffer, timeout, access)
	if err != nil {
		return nil, err
	}
	return buffer[:read], nil
}

// DownloadBytes writes an object from its raw binary image
func (s *Slave) DownloadBytes(index uint16, subindex uint8, data []byte, timeout time.Duration, access ethercat.SdoAccess) error {
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	addr := ethercat.SdoAddress{Index: index, SubIndex: subindex}
	return s.driver.SdoDownload(s.GetFixedAddr(), addr, data, timeout, access)
}

// Download translates obj into a codec-sized buffer and writes it to
// the slave
func (s *Sdo[T]) Download(obj T, timeout time.Duration, access ethercat.SdoAccess) error {
	if err := s.checkDirection(ethercat.SdoDownload); err != nil {
		return err
	}
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	buffer, err := s.wrapper.MakeBuffer(&obj)
	if err != nil {
		return err
	}
	if err := s.wrapper.TranslateFrom(buffer, &obj, 0); err != nil {
		return err
	}
	return s.slave.driver.SdoDownload(s.slave.GetFixedAddr(), s.addr, buffer, timeout, access)
}
