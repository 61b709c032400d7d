// Package ethercat is a host-side runtime for driving an EtherCAT fieldbus.
// It provides typed, synchronized access to the cyclic Process Data Image
// exchanged with slave devices and to the acyclic SDO services used for
// configuration and diagnostics. The wire-level datagram exchange is
// delegated to a hardware-specific driver implementing [Driver].
package ethercat

import (
	"time"
)

// Direction of a cyclic exchange, seen from the master.
type Direction uint8

const (
	// Input data travels slave -> master (TxPdo in ENI terms)
	DirectionInput Direction = iota
	// Output data travels master -> slave (RxPdo in ENI terms)
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionInput {
		return "Input"
	}
	return "Output"
}

// Direction of an SDO proxy
type SdoDirection uint8

const (
	SdoUpload SdoDirection = iota
	SdoDownload
	SdoBidirectional
)

// Access mode of an SDO transfer
type SdoAccess uint8

const (
	// Transfer a single (index, subindex) object
	AccessLimited SdoAccess = iota
	// Transfer all subindices starting from the given one
	AccessComplete
)

// State of the EtherCAT State Machine (ESM), for both slaves and
// the master. Values are the wire encoding of the AL state.
type State uint8

const (
	StateInit   State = 0x01
	StatePreop  State = 0x02
	StateBoot   State = 0x03
	StateSafeop State = 0x04
	StateOp     State = 0x08
)

var stateMap = map[State]string{
	StateInit:   "INIT",
	StatePreop:  "PREOP",
	StateBoot:   "BOOT",
	StateSafeop: "SAFEOP",
	StateOp:     "OP",
}

func (s State) String() string {
	name, ok := stateMap[s]
	if !ok {
		return "UNKNOWN"
	}
	return name
}

// IsValidSlaveState returns true if state belongs to the slave ESM set
func IsValidSlaveState(state State) bool {
	_, ok := stateMap[state]
	return ok
}

// IsValidMasterState returns true if state belongs to the master ESM set.
// Masters have no Boot state.
func IsValidMasterState(state State) bool {
	return IsValidSlaveState(state) && state != StateBoot
}

// SdoAddress identifies an object in a slave's object dictionary
type SdoAddress struct {
	Index    uint16
	SubIndex uint8
}

// Driver is the contract required of the hardware-specific master layer.
// The runtime never constructs datagrams itself; it hands raw PDI images
// and SDO buffers to the driver and forwards ESM state requests verbatim.
//
// Implementations should honour the timeout as a hard deadline and map
// deadline misses to [ErrIoTimeout] and any other bus failure to
// [ErrIoFailed] (wrapping is fine, errors.Is is used throughout).
type Driver interface {
	// Read the current input PDI into buf (len(buf) bytes)
	ReadPdi(buf []byte, timeout time.Duration) error
	// Write the output PDI from buf (len(buf) bytes)
	WritePdi(buf []byte, timeout time.Duration) error
	// Upload an SDO object from the slave with the given fixed address.
	// Returns the number of bytes read into buf.
	SdoUpload(slaveAddr uint16, addr SdoAddress, buf []byte, timeout time.Duration, access SdoAccess) (int, error)
	// Download an SDO object to the slave with the given fixed address
	SdoDownload(slaveAddr uint16, addr SdoAddress, buf []byte, timeout time.Duration, access SdoAccess) error
	// Master-level ESM access
	MasterState(timeout time.Duration) (State, error)
	SetMasterState(state State, timeout time.Duration) error
	// Slave-level ESM access, by fixed address
	SlaveState(slaveAddr uint16, timeout time.Duration) (State, error)
	SetSlaveState(slaveAddr uint16, state State, timeout time.Duration) error
}

// Default timeout applied by facades when the caller passes 0
const DefaultTimeout = 100 * time.Millisecond
