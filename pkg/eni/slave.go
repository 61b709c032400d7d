package eni

import (
	"fmt"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
)

// Slave is the read-only view of one <Slave> element
type Slave struct {
	name        string
	physAddr    uint16
	autoIncAddr int
	pdos        PdoSet
	// Views produced by navigation share the parsed tree; an
	// autonomized view owns a private copy
	autonomous bool
}

// PdoSet groups PDO views by direction
type PdoSet struct {
	Inputs  []Pdo
	Outputs []Pdo
}

func newSlave(doc *xmlSlave) (Slave, error) {
	if doc.Info.Name == "" {
		return Slave{}, ethercat.NewEniError("Config.Slave.Info.Name", "missing mandatory element")
	}
	path := "Config.Slave(" + doc.Info.Name + ").Info"
	phys, err := parseNumber(doc.Info.PhysAddr)
	if err != nil {
		return Slave{}, ethercat.NewEniError(path+".PhysAddr", "malformed address %q", doc.Info.PhysAddr)
	}
	autoInc, err := parseNumber(doc.Info.AutoIncAddr)
	if err != nil {
		return Slave{}, ethercat.NewEniError(path+".AutoIncAddr", "malformed address %q", doc.Info.AutoIncAddr)
	}
	slave := Slave{
		name:        doc.Info.Name,
		physAddr:    uint16(phys),
		autoIncAddr: int(int16(autoInc)),
	}
	if doc.ProcessData != nil {
		for i := range doc.ProcessData.TxPdos {
			pdo, err := newPdo(&doc.ProcessData.TxPdos[i], ethercat.DirectionInput, slave.name)
			if err != nil {
				return Slave{}, err
			}
			slave.pdos.Inputs = append(slave.pdos.Inputs, pdo)
		}
		for i := range doc.ProcessData.RxPdos {
			pdo, err := newPdo(&doc.ProcessData.RxPdos[i], ethercat.DirectionOutput, slave.name)
			if err != nil {
				return Slave{}, err
			}
			slave.pdos.Outputs = append(slave.pdos.Outputs, pdo)
		}
	}
	return slave, nil
}

func (s Slave) GetName() string { return s.name }

// GetFixedAddr returns the fixed (physical) station address
func (s Slave) GetFixedAddr() uint16 { return s.physAddr }

// GetPhysicalAddr is an alias of [Slave.GetFixedAddr]
func (s Slave) GetPhysicalAddr() uint16 { return s.physAddr }

// GetAutoIncrementAddr returns the auto-increment address
func (s Slave) GetAutoIncrementAddr() int { return s.autoIncAddr }

// GetTopologicalAddr returns the 1-based position on the bus,
// derived from the auto-increment address
func (s Slave) GetTopologicalAddr() int { return 1 - s.autoIncAddr }

// GetPdos returns all PDOs declared by the slave
func (s Slave) GetPdos() PdoSet { return s.pdos }

// GetAssignedPdos returns only the PDOs mapped into a SyncManager
func (s Slave) GetAssignedPdos() PdoSet {
	var assigned PdoSet
	for _, pdo := range s.pdos.Inputs {
		if pdo.IsAssigned() {
			assigned.Inputs = append(assigned.Inputs, pdo)
		}
	}
	for _, pdo := range s.pdos.Outputs {
		if pdo.IsAssigned() {
			assigned.Outputs = append(assigned.Outputs, pdo)
		}
	}
	return assigned
}

// GetPdo returns the PDO with the given name, searching both directions
func (s Slave) GetPdo(name string) (Pdo, error) {
	for _, pdo := range append(append([]Pdo{}, s.pdos.Inputs...), s.pdos.Outputs...) {
		if pdo.name == name {
			return pdo, nil
		}
	}
	return Pdo{}, fmt.Errorf("%w : pdo %q of slave %q", ethercat.ErrEntryNotFound, name, s.name)
}

// Autonomize returns a deep copy of the view that is independent of the
// parent Configuration's lifetime. Queries against the copy are
// equivalent to queries against the original.
func (s Slave) Autonomize() Slave {
	clone := s
	clone.pdos = PdoSet{
		Inputs:  clonePdos(s.pdos.Inputs),
		Outputs: clonePdos(s.pdos.Outputs),
	}
	clone.autonomous = true
	return clone
}

// IsAutonomous reports whether the view owns its sub-tree
func (s Slave) IsAutonomous() bool { return s.autonomous }

func clonePdos(pdos []Pdo) []Pdo {
	cloned := make([]Pdo, len(pdos))
	for i, pdo := range pdos {
		cloned[i] = pdo
		cloned[i].excludes = append([]uint16{}, pdo.excludes...)
		cloned[i].entries = append([]PdoEntry{}, pdo.entries...)
	}
	return cloned
}

// Pdo is the read-only view of one <TxPdo> or <RxPdo> element
type Pdo struct {
	direction ethercat.Direction
	index     uint16
	name      string
	sm        int
	assigned  bool
	fixed     bool
	excludes  []uint16
	entries   []PdoEntry
}

func newPdo(doc *xmlPdo, direction ethercat.Direction, slaveName string) (Pdo, error) {
	path := fmt.Sprintf("Config.Slave(%s).ProcessData.Pdo(%s)", slaveName, doc.Name)
	index, err := parseNumber(doc.Index)
	if err != nil {
		return Pdo{}, ethercat.NewEniError(path+".Index", "malformed index %q", doc.Index)
	}
	pdo := Pdo{
		direction: direction,
		index:     uint16(index),
		name:      doc.Name,
		fixed:     parseBool(doc.Fixed) || parseBool(doc.FixedAttr),
	}
	smRaw := doc.SmAttr
	if smRaw == nil {
		smRaw = doc.SmNo
	}
	if smRaw != nil {
		sm, err := parseNumber(*smRaw)
		if err != nil {
			return Pdo{}, ethercat.NewEniError(path+".SmNo", "malformed sync-manager number %q", *smRaw)
		}
		pdo.sm = int(sm)
		pdo.assigned = true
	}
	for _, exclude := range doc.Exclude {
		value, err := parseNumber(exclude)
		if err != nil {
			return Pdo{}, ethercat.NewEniError(path+".Exclude", "malformed index %q", exclude)
		}
		pdo.excludes = append(pdo.excludes, uint16(value))
	}
	for i := range doc.Entries {
		entry, err := newPdoEntry(&doc.Entries[i], path)
		if err != nil {
			return Pdo{}, err
		}
		pdo.entries = append(pdo.entries, entry)
	}
	return pdo, nil
}

func (p Pdo) GetDirection() ethercat.Direction { return p.direction }
func (p Pdo) GetIndex() uint16                 { return p.index }
func (p Pdo) GetName() string                  { return p.name }
func (p Pdo) IsFixed() bool                    { return p.fixed }
func (p Pdo) IsAssigned() bool                 { return p.assigned }

// GetSyncManager returns the assigned SyncManager number; ok is false
// for unassigned PDOs
func (p Pdo) GetSyncManager() (int, bool) { return p.sm, p.assigned }

// GetExcludes returns indices of PDOs mutually exclusive with this one
func (p Pdo) GetExcludes() []uint16 { return p.excludes }

// GetEntries returns the mapped entries in declaration order
func (p Pdo) GetEntries() []PdoEntry { return p.entries }

// GetEntry returns the first entry with the given name
func (p Pdo) GetEntry(name string) (PdoEntry, error) {
	for _, entry := range p.entries {
		if entry.name == name {
			return entry, nil
		}
	}
	return PdoEntry{}, fmt.Errorf("%w : entry %q of pdo %q", ethercat.ErrEntryNotFound, name, p.name)
}

// PdoEntry is the read-only view of one <Entry> element
type PdoEntry struct {
	index    uint16
	subIndex uint8
	bitLen   int
	name     string
	dataType coe.Builtin
}

func newPdoEntry(doc *xmlPdoEntry, pdoPath string) (PdoEntry, error) {
	path := pdoPath + ".Entry(" + doc.Name + ")"
	index, err := parseNumber(doc.Index)
	if err != nil {
		return PdoEntry{}, ethercat.NewEniError(path+".Index", "malformed index %q", doc.Index)
	}
	subIndex := int64(0)
	if doc.SubIndex != "" {
		subIndex, err = parseNumber(doc.SubIndex)
		if err != nil {
			return PdoEntry{}, ethercat.NewEniError(path+".SubIndex", "malformed subindex %q", doc.SubIndex)
		}
	}
	bitLen, err := parseNumber(doc.BitLen)
	if err != nil {
		return PdoEntry{}, ethercat.NewEniError(path+".BitLen", "malformed bit length %q", doc.BitLen)
	}
	dataType, err := parseDataType(doc.DataType, int(bitLen), path+".DataType")
	if err != nil {
		return PdoEntry{}, err
	}
	return PdoEntry{
		index:    uint16(index),
		subIndex: uint8(subIndex),
		bitLen:   int(bitLen),
		name:     doc.Name,
		dataType: dataType,
	}, nil
}

func (e PdoEntry) GetIndex() uint16          { return e.index }
func (e PdoEntry) GetSubIndex() uint8        { return e.subIndex }
func (e PdoEntry) GetBitLen() int            { return e.bitLen }
func (e PdoEntry) GetByteLen() int           { return (e.bitLen + 7) / 8 }
func (e PdoEntry) GetName() string           { return e.name }
func (e PdoEntry) GetDataType() coe.Builtin  { return e.dataType }
