// Package master implements the bus-cycle owner: the two shared PDI
// buffers, the slave facades built from ENI, the read/write cycle
// orchestration and master-level ESM control.
package master

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/eni"
	"github.com/samsamfire/goethercat/pkg/slave"
)

// Event identifies the bus-cycle events user code can hook
type Event uint8

const (
	EventReadBusStart Event = iota
	EventReadBusComplete
	EventReadBusSlavesUpdateComplete
	EventWriteBusStart
	EventWriteBusSlavesUpdateComplete
	EventWriteBusComplete
)

// SlaveFactory produces the (possibly implementation-specific) slave
// facade for one ENI slave description. The layout lookup resolves a
// PDO entry to its mapped PDI variable, carrying bit offset and size.
type SlaveFactory func(desc eni.Slave, layout EntryLayout) (*slave.Slave, error)

// EntryLayout resolves the PDI placement of one PDO entry of the slave
// being constructed
type EntryLayout func(direction ethercat.Direction, pdoName string, entryName string) (eni.Variable, error)

// Master owns the input and output PDI buffers and all slave facades,
// and drives the bus cycle against the hardware layer. No internal
// goroutine is spawned; the caller's threads drive [Master.ReadBus]
// and [Master.WriteBus].
type Master struct {
	driver    ethercat.Driver
	config    *eni.Configuration
	image     *eni.ProcessImage
	logger    *slog.Logger
	inputMu   sync.RWMutex
	outputMu  sync.Mutex
	inputPdi  []byte
	outputPdi []byte
	slaves    []*slave.Slave
	slaveMap  map[string]*slave.Slave
	handlerMu sync.Mutex
	handlers  map[Event]func()
}

// New builds a master from a parsed ENI configuration. A nil factory
// selects [slave.NewFromEni]. PDI buffers are sized from the ENI
// process image and zero-initialized.
func New(driver ethercat.Driver, config *eni.Configuration, factory SlaveFactory, logger *slog.Logger) (*Master, error) {
	if logger == nil {
		logger = slog.Default()
	}
	image := config.GetProcessImage()
	m := &Master{
		driver:    driver,
		config:    config,
		image:     image,
		logger:    logger,
		inputPdi:  make([]byte, image.GetByteSize(ethercat.DirectionInput)),
		outputPdi: make([]byte, image.GetByteSize(ethercat.DirectionOutput)),
		slaveMap:  map[string]*slave.Slave{},
		handlers:  map[Event]func(){},
	}
	for _, desc := range config.GetSlaves() {
		layout := func(desc eni.Slave) EntryLayout {
			return func(direction ethercat.Direction, pdoName string, entryName string) (eni.Variable, error) {
				return image.GetEntryVariable(direction, desc.GetName(), pdoName, entryName)
			}
		}(desc)
		var s *slave.Slave
		var err error
		if factory != nil {
			s, err = factory(desc, layout)
		} else {
			s, err = slave.NewFromEni(driver, desc, image, logger)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build slave %v : %w", desc.GetName(), err)
		}
		m.slaves = append(m.slaves, s)
		m.slaveMap[s.GetName()] = s
	}
	m.logger.Debug("master ready",
		"slaves", len(m.slaves),
		"inputBytes", len(m.inputPdi),
		"outputBytes", len(m.outputPdi),
	)
	return m, nil
}

// NewFromFile builds a master from an ENI file on disk
func NewFromFile(driver ethercat.Driver, path string, factory SlaveFactory, logger *slog.Logger) (*Master, error) {
	config, err := eni.FromFile(path, logger)
	if err != nil {
		return nil, err
	}
	return New(driver, config, factory, logger)
}

// NewFromString builds a master from an in-memory ENI document
func NewFromString(driver ethercat.Driver, document string, factory SlaveFactory, logger *slog.Logger) (*Master, error) {
	config, err := eni.FromString(document, logger)
	if err != nil {
		return nil, err
	}
	return New(driver, config, factory, logger)
}

// NewFromReader builds a master from an ENI document stream
func NewFromReader(driver ethercat.Driver, r io.Reader, factory SlaveFactory, logger *slog.Logger) (*Master, error) {
	config, err := eni.FromReader(r, logger)
	if err != nil {
		return nil, err
	}
	return New(driver, config, factory, logger)
}

// ListSlaves returns the configured slave names in bus order
func (m *Master) ListSlaves() []string { return m.config.ListSlaves() }

// GetSlaves returns all slave facades in bus order
func (m *Master) GetSlaves() []*slave.Slave { return m.slaves }

// GetSlave returns the slave facade with the given name
func (m *Master) GetSlave(name string) (*slave.Slave, error) {
	s, ok := m.slaveMap[name]
	if !ok {
		return nil, fmt.Errorf("%w : slave %q", ethercat.ErrEntryNotFound, name)
	}
	return s, nil
}

// GetBusCycle returns the ENI cyclic exchange period
func (m *Master) GetBusCycle() time.Duration {
	return m.config.GetCyclic().CycleTime()
}

// GetProcessImage returns the ENI process image view
func (m *Master) GetProcessImage() *eni.ProcessImage { return m.image }

// GetState reads the master-level ESM state from the hardware layer
func (m *Master) GetState(timeout time.Duration) (ethercat.State, error) {
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	return m.driver.MasterState(timeout)
}

// SetState requests a master-level ESM transition
func (m *Master) SetState(state ethercat.State, timeout time.Duration) error {
	if !ethercat.IsValidMasterState(state) {
		return fmt.Errorf("%w : %d", ethercat.ErrInvalidState, uint8(state))
	}
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	m.logger.Debug("requesting master state", "state", state.String())
	return m.driver.SetMasterState(state, timeout)
}

// RegisterHandler installs the handler for the given bus event,
// replacing any previous one
func (m *Master) RegisterHandler(event Event, handler func()) {
	m.handlerMu.Lock()
	m.handlers[event] = handler
	m.handlerMu.Unlock()
}

// UnregisterHandler removes the handler for the given bus event
func (m *Master) UnregisterHandler(event Event) {
	m.handlerMu.Lock()
	delete(m.handlers, event)
	m.handlerMu.Unlock()
}

func (m *Master) fire(event Event) {
	m.handlerMu.Lock()
	handler := m.handlers[event]
	m.handlerMu.Unlock()
	if handler != nil {
		handler()
	}
}

// ReadBus performs one input cycle: raw-read the input PDI from the
// hardware layer, then refresh every slave's input entries. Event
// order: ReadBusStart, raw read, ReadBusComplete, per-slave entry
// updates + InputsUpdate, ReadBusSlavesUpdateComplete. An error aborts
// the cycle before the handlers that follow the failing phase.
func (m *Master) ReadBus(timeout time.Duration) error {
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	m.fire(EventReadBusStart)
	m.inputMu.Lock()
	err := m.driver.ReadPdi(m.inputPdi, timeout)
	m.inputMu.Unlock()
	if err != nil {
		return fmt.Errorf("bus read failed : %w", err)
	}
	m.fire(EventReadBusComplete)
	m.inputMu.RLock()
	for _, s := range m.slaves {
		if err := s.UpdateInputs(m.inputPdi); err != nil {
			m.inputMu.RUnlock()
			return fmt.Errorf("input update of %v failed : %w", s.GetName(), err)
		}
	}
	m.inputMu.RUnlock()
	m.fire(EventReadBusSlavesUpdateComplete)
	return nil
}

// WriteBus performs one output cycle: harvest every slave's output
// entries into the output PDI, then raw-write it to the hardware
// layer. Event order mirrors [Master.ReadBus] in reverse.
func (m *Master) WriteBus(timeout time.Duration) error {
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	m.fire(EventWriteBusStart)
	m.outputMu.Lock()
	for _, s := range m.slaves {
		if err := s.UpdateOutputs(m.outputPdi); err != nil {
			m.outputMu.Unlock()
			return fmt.Errorf("output update of %v failed : %w", s.GetName(), err)
		}
	}
	m.outputMu.Unlock()
	m.fire(EventWriteBusSlavesUpdateComplete)
	m.outputMu.Lock()
	err := m.driver.WritePdi(m.outputPdi, timeout)
	m.outputMu.Unlock()
	if err != nil {
		return fmt.Errorf("bus write failed : %w", err)
	}
	m.fire(EventWriteBusComplete)
	return nil
}

// DebugInputBuffer exposes the raw input PDI without synchronization.
// Debug use only.
func (m *Master) DebugInputBuffer() []byte { return m.inputPdi }

// DebugOutputBuffer exposes the raw output PDI without synchronization.
// Debug use only.
func (m *Master) DebugOutputBuffer() []byte { return m.outputPdi }
