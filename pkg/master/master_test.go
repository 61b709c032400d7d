package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/driver/virtual"
	"github.com/samsamfire/goethercat/pkg/eni"
	"github.com/samsamfire/goethercat/pkg/pdi"
	"github.com/samsamfire/goethercat/pkg/slave"
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
          <Entry><Index>#x6040</Index><SubIndex>0</SubIndex><BitLen>32</BitLen><Name>Label</Name><DataType>STRING(4)</DataType></Entry>
        </RxPdo>
      </ProcessData>
    </Slave>
    <Cyclic><CycleTime>10000</CycleTime></Cyclic>
    <ProcessImage>
      <Inputs>
        <ByteSize>8</ByteSize>
        <Variable><Name>Drive.Inputs.Position</Name><DataType>DINT</DataType><BitSize>32</BitSize><BitOffs>0</BitOffs></Variable>
        <Variable><Name>Drive.Inputs.Status</Name><DataType>UINT</DataType><BitSize>16</BitSize><BitOffs>36</BitOffs></Variable>
      </Inputs>
      <Outputs>
        <ByteSize>8</ByteSize>
        <Variable><Name>Drive.Outputs.Target</Name><DataType>DINT</DataType><BitSize>32</BitSize><BitOffs>0</BitOffs></Variable>
        <Variable><Name>Drive.Outputs.Label</Name><DataType>STRING(4)</DataType><BitSize>32</BitSize><BitOffs>32</BitOffs></Variable>
      </Outputs>
    </ProcessImage>
  </Config>
</EtherCATConfig>`

func newTestMaster(t *testing.T) (*Master, *virtual.Driver) {
	bus := virtual.NewDriver()
	m, err := NewFromString(bus, testEni, nil, nil)
	assert.Nil(t, err)
	return m, bus
}

func TestMasterConstruction(t *testing.T) {

	m, _ := newTestMaster(t)
	assert.Equal(t, []string{"Drive"}, m.ListSlaves())
	assert.Len(t, m.GetSlaves(), 1)
	assert.Equal(t, "10ms", m.GetBusCycle().String())
	assert.Len(t, m.DebugInputBuffer(), 8)
	assert.Len(t, m.DebugOutputBuffer(), 8)

	_, err := m.GetSlave("Nothing")
	assert.ErrorIs(t, err, ethercat.ErrEntryNotFound)
}

func TestMasterFactoryCallback(t *testing.T) {

	bus := virtual.NewDriver()
	factory := func(desc eni.Slave, layout EntryLayout) (*slave.Slave, error) {
		// Resolve placement through the layout proxy
		variable, err := layout(ethercat.DirectionInput, "Inputs", "Status")
		if err != nil {
			return nil, err
		}
		entry := pdi.NewEntry("Status", variable.GetDataType().AsType(), ethercat.DirectionInput,
			variable.GetBitSize(), variable.GetBitOffset())
		return slave.New(bus, desc, []*pdi.Entry{entry}, nil, nil), nil
	}
	m, err := NewFromString(bus, testEni, factory, nil)
	assert.Nil(t, err)
	s, _ := m.GetSlave("Drive")
	entry, err := s.GetEntry(ethercat.DirectionInput, "Status")
	assert.Nil(t, err)
	assert.Equal(t, 36, entry.BitOffset())
	assert.Equal(t, 16, entry.BitSize())
}

func TestReadBusDeliversHardwareBytes(t *testing.T) {

	m, bus := newTestMaster(t)
	// Position at bit 0, status at bit 36 (nibble shifted)
	bus.SetInputImage([]byte{0x78, 0x56, 0x34, 0x12, 0x0F, 0xBC, 0x0A, 0x00})
	assert.Nil(t, m.ReadBus(0))

	s, _ := m.GetSlave("Drive")
	positionEntry, _ := s.GetEntry(ethercat.DirectionInput, "Position")
	position, err := pdi.NewDefaultReference[int32](positionEntry, nil)
	assert.Nil(t, err)
	value, err := position.Get()
	assert.Nil(t, err)
	assert.EqualValues(t, 0x12345678, value)

	statusEntry, _ := s.GetEntry(ethercat.DirectionInput, "Status")
	status, err := pdi.NewDefaultReference[uint16](statusEntry, nil)
	assert.Nil(t, err)
	statusValue, err := status.Get()
	assert.Nil(t, err)
	assert.EqualValues(t, 0xABC0, statusValue)
}

func TestWriteBusHarvestsOutputs(t *testing.T) {

	m, bus := newTestMaster(t)
	s, _ := m.GetSlave("Drive")

	targetEntry, _ := s.GetEntry(ethercat.DirectionOutput, "Target")
	target, err := pdi.NewDefaultReference[int32](targetEntry, nil)
	assert.Nil(t, err)
	labelEntry, _ := s.GetEntry(ethercat.DirectionOutput, "Label")
	label, err := pdi.NewDefaultReference[string](labelEntry, nil)
	assert.Nil(t, err)

	assert.Nil(t, target.Set(0x12345678))
	assert.Nil(t, label.Set("abcd"))
	assert.Nil(t, m.WriteBus(0))

	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12, 0x61, 0x62, 0x63, 0x64}, bus.OutputImage())
}

func TestReadBusEventOrdering(t *testing.T) {

	m, bus := newTestMaster(t)
	bus.SetInputImage([]byte{0x2A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	s, _ := m.GetSlave("Drive")
	positionEntry, _ := s.GetEntry(ethercat.DirectionInput, "Position")
	position, _ := pdi.NewDefaultReference[int32](positionEntry, nil)

	var order []string
	var duringHandler int32
	m.RegisterHandler(EventReadBusStart, func() { order = append(order, "ReadBusStart") })
	m.RegisterHandler(EventReadBusComplete, func() { order = append(order, "ReadBusComplete") })
	m.RegisterHandler(EventReadBusSlavesUpdateComplete, func() { order = append(order, "ReadBusSlavesUpdateComplete") })
	s.RegisterHandler(slave.EventInputsUpdate, func() {
		order = append(order, "InputsUpdate(Drive)")
		// The new value is already observable during the handler
		duringHandler, _ = position.Get()
	})

	assert.Nil(t, m.ReadBus(0))
	assert.Equal(t, []string{
		"ReadBusStart",
		"ReadBusComplete",
		"InputsUpdate(Drive)",
		"ReadBusSlavesUpdateComplete",
	}, order)
	assert.EqualValues(t, 42, duringHandler)
}

func TestWriteBusEventOrdering(t *testing.T) {

	m, _ := newTestMaster(t)
	s, _ := m.GetSlave("Drive")

	var order []string
	m.RegisterHandler(EventWriteBusStart, func() { order = append(order, "WriteBusStart") })
	m.RegisterHandler(EventWriteBusSlavesUpdateComplete, func() { order = append(order, "WriteBusSlavesUpdateComplete") })
	m.RegisterHandler(EventWriteBusComplete, func() { order = append(order, "WriteBusComplete") })
	s.RegisterHandler(slave.EventOutputsUpdate, func() { order = append(order, "OutputsUpdate(Drive)") })

	assert.Nil(t, m.WriteBus(0))
	assert.Equal(t, []string{
		"WriteBusStart",
		"OutputsUpdate(Drive)",
		"WriteBusSlavesUpdateComplete",
		"WriteBusComplete",
	}, order)
}

func TestMasterEsm(t *testing.T) {

	m, _ := newTestMaster(t)
	state, err := m.GetState(0)
	assert.Nil(t, err)
	assert.Equal(t, ethercat.StateInit, state)

	assert.Nil(t, m.SetState(ethercat.StateOp, 0))
	state, _ = m.GetState(0)
	assert.Equal(t, ethercat.StateOp, state)

	// Boot is not a master state
	err = m.SetState(ethercat.StateBoot, 0)
	assert.ErrorIs(t, err, ethercat.ErrInvalidState)
}
