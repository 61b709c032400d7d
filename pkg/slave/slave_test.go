package slave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/driver/virtual"
	"github.com/samsamfire/goethercat/pkg/eni"
)

const testEni = `
<EtherCATConfig>
  <Config>
    <Master><Name>Master</Name></Master>
    <Slave>
      <Info><Name>Drive</Name><PhysAddr>1001</PhysAddr><AutoIncAddr>0</AutoIncAddr></Info>
      <ProcessData>
        <TxPdo Sm="3" Fixed="1">
          <Index>#x1a00</Index><Name>Inputs</Name>
          <Entry><Index>#x6064</Index><SubIndex>0</SubIndex><BitLen>32</BitLen><Name>Position</Name><DataType>DINT</DataType></Entry>
          <Entry><Index>#x6041</Index><SubIndex>0</SubIndex><BitLen>16</BitLen><Name>Status</Name><DataType>UINT</DataType></Entry>
        </TxPdo>
        <RxPdo Sm="2" Fixed="1">
          <Index>#x1600</Index><Name>Outputs</Name>
          <Entry><Index>#x607a</Index><SubIndex>0</SubIndex><BitLen>32</BitLen><Name>Target</Name><DataType>DINT</DataType></Entry>
        </RxPdo>
      </ProcessData>
    </Slave>
    <Cyclic><CycleTime>10000</CycleTime></Cyclic>
    <ProcessImage>
      <Inputs>
        <ByteSize>6</ByteSize>
        <Variable><Name>Drive.Inputs.Position</Name><DataType>DINT</DataType><BitSize>32</BitSize><BitOffs>0</BitOffs></Variable>
        <Variable><Name>Drive.Inputs.Status</Name><DataType>UINT</DataType><BitSize>16</BitSize><BitOffs>32</BitOffs></Variable>
      </Inputs>
      <Outputs>
        <ByteSize>4</ByteSize>
        <Variable><Name>Drive.Outputs.Target</Name><DataType>DINT</DataType><BitSize>32</BitSize><BitOffs>0</BitOffs></Variable>
      </Outputs>
    </ProcessImage>
  </Config>
</EtherCATConfig>`

func newTestSlave(t *testing.T, bus *virtual.Driver) *Slave {
	config, err := eni.FromString(testEni, nil)
	assert.Nil(t, err)
	desc, err := config.GetSlave("Drive")
	assert.Nil(t, err)
	s, err := NewFromEni(bus, desc, config.GetProcessImage(), nil)
	assert.Nil(t, err)
	return s
}

func TestSlaveConstruction(t *testing.T) {

	s := newTestSlave(t, virtual.NewDriver())
	assert.Equal(t, "Drive", s.GetName())
	assert.EqualValues(t, 1001, s.GetFixedAddr())
	assert.Equal(t, 1, s.GetTopologicalAddr())
	assert.True(t, s.GetEni().IsAutonomous())

	assert.Len(t, s.GetEntries(ethercat.DirectionInput), 2)
	assert.Len(t, s.GetEntries(ethercat.DirectionOutput), 1)

	entry, err := s.GetEntry(ethercat.DirectionInput, "Status")
	assert.Nil(t, err)
	assert.Equal(t, 16, entry.BitSize())
	assert.Equal(t, 32, entry.BitOffset())

	_, err = s.GetEntry(ethercat.DirectionInput, "Target")
	assert.ErrorIs(t, err, ethercat.ErrEntryNotFound)
}

func TestSlavePdoAccessors(t *testing.T) {

	s := newTestSlave(t, virtual.NewDriver())
	assert.True(t, s.HasPdo("Inputs"))
	assert.False(t, s.HasPdo("Nothing"))

	pdo, err := s.GetPdo("Outputs")
	assert.Nil(t, err)
	assert.EqualValues(t, 0x1600, pdo.GetIndex())

	entry, err := s.GetPdoEntry("Status")
	assert.Nil(t, err)
	assert.EqualValues(t, 0x6041, entry.GetIndex())

	assert.Len(t, s.GetPdos(ethercat.DirectionInput), 1)
}

func TestSlaveUpdateInputsFiresHandler(t *testing.T) {

	s := newTestSlave(t, virtual.NewDriver())
	var observed int32
	position, err := s.GetEntry(ethercat.DirectionInput, "Position")
	assert.Nil(t, err)

	s.RegisterHandler(EventInputsUpdate, func() {
		// The handler observes the post-update snapshot
		_ = position.WithBuffer(func(buffer []byte) error {
			observed = int32(uint32(buffer[0]) | uint32(buffer[1])<<8 | uint32(buffer[2])<<16 | uint32(buffer[3])<<24)
			return nil
		})
	})
	assert.Nil(t, s.UpdateInputs([]byte{0x78, 0x56, 0x34, 0x12, 0xAA, 0xBB}))
	assert.EqualValues(t, 0x12345678, observed)

	s.UnregisterHandler(EventInputsUpdate)
	observed = 0
	assert.Nil(t, s.UpdateInputs([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}))
	assert.EqualValues(t, 0, observed)
}

func TestSlaveUpdateOutputsOrder(t *testing.T) {

	s := newTestSlave(t, virtual.NewDriver())
	target, err := s.GetEntry(ethercat.DirectionOutput, "Target")
	assert.Nil(t, err)

	// The handler runs before the harvest, so a value written inside it
	// reaches the PDI of the same cycle
	s.RegisterHandler(EventOutputsUpdate, func() {
		_ = target.WithBuffer(func(buffer []byte) error {
			copy(buffer, []byte{0x0D, 0xF0, 0xAD, 0x8B})
			return nil
		})
	})
	pdi := make([]byte, 4)
	assert.Nil(t, s.UpdateOutputs(pdi))
	assert.Equal(t, []byte{0x0D, 0xF0, 0xAD, 0x8B}, pdi)
}

func TestSlaveEsm(t *testing.T) {

	bus := virtual.NewDriver()
	s := newTestSlave(t, bus)

	state, err := s.GetState(0)
	assert.Nil(t, err)
	assert.Equal(t, ethercat.StateInit, state)

	assert.Nil(t, s.SetState(ethercat.StateOp, 0))
	state, err = s.GetState(0)
	assert.Nil(t, err)
	assert.Equal(t, ethercat.StateOp, state)

	err = s.SetState(ethercat.State(0x42), 0)
	assert.ErrorIs(t, err, ethercat.ErrInvalidState)
}
