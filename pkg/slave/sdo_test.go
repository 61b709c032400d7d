package slave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
	"github.com/samsamfire/goethercat/pkg/driver/virtual"
	"github.com/samsamfire/goethercat/pkg/translation"
)

func TestSdoUpload(t *testing.T) {

	bus := virtual.NewDriver()
	s := newTestSlave(t, bus)
	bus.SetObject(s.GetFixedAddr(), ethercat.SdoAddress{Index: 0x6064, SubIndex: 0}, []byte{0x78, 0x56, 0x34, 0x12})

	sdo, err := NewDefaultSdo[int32](s, ethercat.SdoUpload, 0x6064, 0, nil)
	assert.Nil(t, err)
	value, err := sdo.Upload(0, ethercat.AccessLimited)
	assert.Nil(t, err)
	assert.EqualValues(t, 0x12345678, value)

	// Unknown object surfaces the hardware error
	missing, _ := NewDefaultSdo[int32](s, ethercat.SdoUpload, 0x7000, 0, nil)
	_, err = missing.Upload(0, ethercat.AccessLimited)
	assert.ErrorIs(t, err, ethercat.ErrIoFailed)
}

func TestSdoDownload(t *testing.T) {

	bus := virtual.NewDriver()
	s := newTestSlave(t, bus)

	sdo, err := NewDefaultSdo[uint16](s, ethercat.SdoDownload, 0x6040, 0, nil)
	assert.Nil(t, err)
	assert.Nil(t, sdo.Download(0x000F, 0, ethercat.AccessLimited))

	image, ok := bus.Object(s.GetFixedAddr(), ethercat.SdoAddress{Index: 0x6040, SubIndex: 0})
	assert.True(t, ok)
	assert.Equal(t, []byte{0x0F, 0x00}, image)
}

func TestSdoUploadIntoDynamic(t *testing.T) {

	bus := virtual.NewDriver()
	s := newTestSlave(t, bus)
	bus.SetObject(s.GetFixedAddr(), ethercat.SdoAddress{Index: 0x1008, SubIndex: 0}, []byte("Drive8x"))

	sdo, err := NewDefaultSdo[string](s, ethercat.SdoUpload, 0x1008, 0, nil)
	assert.Nil(t, err)
	// Dynamic sizing uses the destination's current value
	out := "0000000"
	assert.Nil(t, sdo.UploadInto(&out, 0, ethercat.AccessLimited))
	assert.Equal(t, "Drive8x", out)
}

func TestSdoDirectionEnforcement(t *testing.T) {

	s := newTestSlave(t, virtual.NewDriver())

	upload, _ := NewDefaultSdo[uint8](s, ethercat.SdoUpload, 0x6060, 0, nil)
	err := upload.Download(1, 0, ethercat.AccessLimited)
	assert.NotNil(t, err)

	download, _ := NewDefaultSdo[uint8](s, ethercat.SdoDownload, 0x6060, 0, nil)
	_, err = download.Upload(0, ethercat.AccessLimited)
	assert.NotNil(t, err)

	both, _ := NewDefaultSdo[uint8](s, ethercat.SdoBidirectional, 0x6060, 0, nil)
	assert.Nil(t, both.Download(8, 0, ethercat.AccessLimited))
	value, err := both.Upload(0, ethercat.AccessLimited)
	assert.Nil(t, err)
	assert.EqualValues(t, 8, value)
}

func TestSdoRawBytes(t *testing.T) {

	bus := virtual.NewDriver()
	s := newTestSlave(t, bus)
	bus.SetObject(s.GetFixedAddr(), ethercat.SdoAddress{Index: 0x6064, SubIndex: 0}, []byte{0x78, 0x56, 0x34, 0x12})

	dint, _ := coe.NewBuiltin(coe.DoubleInt)
	image, err := s.UploadBytes(0x6064, 0, dint, 0, ethercat.AccessLimited)
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, image)

	assert.Nil(t, s.DownloadBytes(0x607a, 0, []byte{0x01, 0x02, 0x03, 0x04}, 0, ethercat.AccessLimited))
	stored, ok := bus.Object(s.GetFixedAddr(), ethercat.SdoAddress{Index: 0x607a, SubIndex: 0})
	assert.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, stored)
}

func TestSdoCustomCodec(t *testing.T) {

	bus := virtual.NewDriver()
	s := newTestSlave(t, bus)
	bus.SetObject(s.GetFixedAddr(), ethercat.SdoAddress{Index: 0x2000, SubIndex: 1}, []byte{0x02, 0x00})

	// A user codec exposing values in quarter-units
	sdo, err := NewSdo[float64](s, ethercat.SdoUpload, 0x2000, 1, &quarterCodec{}, nil)
	assert.Nil(t, err)
	value, err := sdo.Upload(0, ethercat.AccessLimited)
	assert.Nil(t, err)
	assert.EqualValues(t, 0.5, value)
}

type quarterCodec struct{}

func (c *quarterCodec) TranslateTo(data []byte, out *float64) error {
	raw := uint16(data[0]) | uint16(data[1])<<8
	*out = float64(raw) / 4
	return nil
}

func (c *quarterCodec) MakeBuffer() ([]byte, error) {
	return make([]byte, 2), nil
}

var _ translation.InputTranslator[float64] = (*quarterCodec)(nil)
var _ translation.SizingTranslator = (*quarterCodec)(nil)
