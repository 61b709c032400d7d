// Package slave implements the per-slave facade: ownership of the
// slave's PDI entries, ESM state control, SDO factories and the
// per-cycle update driven by the master.
package slave

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
	"github.com/samsamfire/goethercat/pkg/eni"
	"github.com/samsamfire/goethercat/pkg/pdi"
)

// Event identifies the slave-level cycle events user code can hook
type Event uint8

const (
	// Fired after the slave's input entries have been refreshed
	EventInputsUpdate Event = iota
	// Fired before the slave's output entries are harvested
	EventOutputsUpdate
)

// Slave owns its ENI description (autonomized at construction so the
// slave outlives the root configuration), the vectors of input and
// output PDI entries, and the event handler slots.
type Slave struct {
	driver    ethercat.Driver
	desc      eni.Slave
	logger    *slog.Logger
	inputs    []*pdi.Entry
	outputs   []*pdi.Entry
	handlerMu sync.Mutex
	handlers  map[Event]func()
}

// New builds a slave facade from its ENI description and pre-built
// entry vectors. The description is autonomized.
func New(driver ethercat.Driver, desc eni.Slave, inputs []*pdi.Entry, outputs []*pdi.Entry, logger *slog.Logger) *Slave {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slave{
		driver:   driver,
		desc:     desc.Autonomize(),
		logger:   logger.With("slave", desc.GetName()),
		inputs:   inputs,
		outputs:  outputs,
		handlers: map[Event]func(){},
	}
}

// NewFromEni builds a slave facade with one PDI entry per entry of each
// SyncManager-assigned PDO, resolving layout through the process image.
// Entries without a mapped PDI variable (padding) are skipped.
func NewFromEni(driver ethercat.Driver, desc eni.Slave, image *eni.ProcessImage, logger *slog.Logger) (*Slave, error) {
	buildDir := func(pdos []eni.Pdo, direction ethercat.Direction) ([]*pdi.Entry, error) {
		var entries []*pdi.Entry
		for _, pdo := range pdos {
			for _, pdoEntry := range pdo.GetEntries() {
				variable, err := image.GetEntryVariable(direction, desc.GetName(), pdo.GetName(), pdoEntry.GetName())
				if err != nil {
					continue
				}
				entries = append(entries, pdi.NewEntry(
					pdoEntry.GetName(),
					coe.BuiltinType(variable.GetDataType()),
					direction,
					variable.GetBitSize(),
					variable.GetBitOffset(),
				))
			}
		}
		return entries, nil
	}
	assigned := desc.GetAssignedPdos()
	inputs, err := buildDir(assigned.Inputs, ethercat.DirectionInput)
	if err != nil {
		return nil, err
	}
	outputs, err := buildDir(assigned.Outputs, ethercat.DirectionOutput)
	if err != nil {
		return nil, err
	}
	return New(driver, desc, inputs, outputs, logger), nil
}

func (s *Slave) GetName() string          { return s.desc.GetName() }
func (s *Slave) GetFixedAddr() uint16     { return s.desc.GetFixedAddr() }
func (s *Slave) GetAutoIncrementAddr() int { return s.desc.GetAutoIncrementAddr() }
func (s *Slave) GetTopologicalAddr() int  { return s.desc.GetTopologicalAddr() }

// GetEni returns the autonomized ENI description
func (s *Slave) GetEni() eni.Slave { return s.desc }

// GetPdos returns the slave's PDO descriptions for the given direction
func (s *Slave) GetPdos(direction ethercat.Direction) []eni.Pdo {
	if direction == ethercat.DirectionInput {
		return s.desc.GetPdos().Inputs
	}
	return s.desc.GetPdos().Outputs
}

// HasPdo reports whether a PDO with the given name exists
func (s *Slave) HasPdo(name string) bool {
	_, err := s.desc.GetPdo(name)
	return err == nil
}

// GetPdo returns the PDO description with the given name
func (s *Slave) GetPdo(name string) (eni.Pdo, error) {
	return s.desc.GetPdo(name)
}

// GetPdoEntry returns the first PDO entry with the given name,
// searching both directions in declaration order
func (s *Slave) GetPdoEntry(name string) (eni.PdoEntry, error) {
	pdos := s.desc.GetPdos()
	for _, pdo := range append(append([]eni.Pdo{}, pdos.Inputs...), pdos.Outputs...) {
		if entry, err := pdo.GetEntry(name); err == nil {
			return entry, nil
		}
	}
	return eni.PdoEntry{}, fmt.Errorf("%w : pdo entry %q of slave %q", ethercat.ErrEntryNotFound, name, s.GetName())
}

// GetEntries returns the slave's PDI entries for the given direction
func (s *Slave) GetEntries(direction ethercat.Direction) []*pdi.Entry {
	if direction == ethercat.DirectionInput {
		return s.inputs
	}
	return s.outputs
}

// GetEntry returns the PDI entry with the given name
func (s *Slave) GetEntry(direction ethercat.Direction, name string) (*pdi.Entry, error) {
	for _, entry := range s.GetEntries(direction) {
		if entry.Name() == name {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w : entry %q of slave %q", ethercat.ErrEntryNotFound, name, s.GetName())
}

// GetState reads the slave's current ESM state from the hardware layer
func (s *Slave) GetState(timeout time.Duration) (ethercat.State, error) {
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	return s.driver.SlaveState(s.GetFixedAddr(), timeout)
}

// SetState requests an ESM transition. Transitions are requested, not
// commanded; the hardware layer is the authority and may refuse.
func (s *Slave) SetState(state ethercat.State, timeout time.Duration) error {
	if !ethercat.IsValidSlaveState(state) {
		return fmt.Errorf("%w : %d", ethercat.ErrInvalidState, uint8(state))
	}
	if timeout == 0 {
		timeout = ethercat.DefaultTimeout
	}
	s.logger.Debug("requesting state", "state", state.String())
	return s.driver.SetSlaveState(s.GetFixedAddr(), state, timeout)
}

// RegisterHandler installs the handler for the given event, replacing
// any previous one
func (s *Slave) RegisterHandler(event Event, handler func()) {
	s.handlerMu.Lock()
	s.handlers[event] = handler
	s.handlerMu.Unlock()
}

// UnregisterHandler removes the handler for the given event
func (s *Slave) UnregisterHandler(event Event) {
	s.handlerMu.Lock()
	delete(s.handlers, event)
	s.handlerMu.Unlock()
}

func (s *Slave) fire(event Event) {
	s.handlerMu.Lock()
	handler := s.handlers[event]
	s.handlerMu.Unlock()
	if handler != nil {
		handler()
	}
}

// UpdateInputs refreshes every input entry from the shared input PDI,
// then fires the InputsUpdate handler. Called by the master once per
// read cycle while it holds the input-PDI lock.
func (s *Slave) UpdateInputs(inputPdi []byte) error {
	for _, entry := range s.inputs {
		if err := entry.UpdateFromPdi(inputPdi); err != nil {
			return err
		}
	}
	s.fire(EventInputsUpdate)
	return nil
}

// UpdateOutputs fires the OutputsUpdate handler, then harvests every
// output entry into the shared output PDI. Called by the master once
// per write cycle while it holds the output-PDI lock.
func (s *Slave) UpdateOutputs(outputPdi []byte) error {
	s.fire(EventOutputsUpdate)
	for _, entry := range s.outputs {
		if err := entry.UpdateToPdi(outputPdi); err != nil {
			return err
		}
	}
	return nil
}
