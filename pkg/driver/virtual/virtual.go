// Package virtual implements an in-memory hardware layer. It keeps the
// two PDI images and a per-slave SDO object store in process memory,
// which makes it the backend of the test suite and CLI dry runs.
package virtual

import (
	"fmt"
	"sync"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/driver"
)

func init() {
	driver.RegisterDriver("virtual", func(channel string) (ethercat.Driver, error) {
		return NewDriver(), nil
	})
}

type sdoKey struct {
	slave uint16
	index uint16
	sub   uint8
}

// Driver is an in-memory implementation of [ethercat.Driver]. The
// zero-size images grow on first use; tests preload them with
// [Driver.SetInputImage] and inspect [Driver.OutputImage].
type Driver struct {
	mu          sync.Mutex
	input       []byte
	output      []byte
	objects     map[sdoKey][]byte
	masterState ethercat.State
	slaveStates map[uint16]ethercat.State
}

// NewDriver creates an empty virtual bus
func NewDriver() *Driver {
	return &Driver{
		objects:     map[sdoKey][]byte{},
		masterState: ethercat.StateInit,
		slaveStates: map[uint16]ethercat.State{},
	}
}

// SetInputImage replaces the bytes the next ReadPdi will deliver
func (d *Driver) SetInputImage(image []byte) {
	d.mu.Lock()
	d.input = append([]byte{}, image...)
	d.mu.Unlock()
}

// OutputImage returns a copy of the last written output PDI
func (d *Driver) OutputImage() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte{}, d.output...)
}

// SetObject preloads an SDO object for upload
func (d *Driver) SetObject(slaveAddr uint16, addr ethercat.SdoAddress, data []byte) {
	d.mu.Lock()
	d.objects[sdoKey{slaveAddr, addr.Index, addr.SubIndex}] = append([]byte{}, data...)
	d.mu.Unlock()
}

// Object returns the last downloaded image of an SDO object
func (d *Driver) Object(slaveAddr uint16, addr ethercat.SdoAddress) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.objects[sdoKey{slaveAddr, addr.Index, addr.SubIndex}]
	if !ok {
		return nil, false
	}
	return append([]byte{}, data...), true
}

// ReadPdi implements [ethercat.Driver]
func (d *Driver) ReadPdi(buf []byte, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.input) < len(buf) {
		grown := make([]byte, len(buf))
		copy(grown, d.input)
		d.input = grown
	}
	copy(buf, d.input)
	return nil
}

// WritePdi implements [ethercat.Driver]
func (d *Driver) WritePdi(buf []byte, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output = append(d.output[:0], buf...)
	return nil
}

// SdoUpload implements [ethercat.Driver]
func (d *Driver) SdoUpload(slaveAddr uint16, addr ethercat.SdoAddress, buf []byte, timeout time.Duration, access ethercat.SdoAccess) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.objects[sdoKey{slaveAddr, addr.Index, addr.SubIndex}]
	if !ok {
		return 0, fmt.Errorf("%w : no object x%x:x%x on slave %d",
			ethercat.ErrIoFailed, addr.Index, addr.SubIndex, slaveAddr)
	}
	if len(buf) < len(data) {
		return 0, fmt.Errorf("%w : upload buffer too small for x%x:x%x",
			ethercat.ErrIoFailed, addr.Index, addr.SubIndex)
	}
	copy(buf, data)
	return len(data), nil
}

// SdoDownload implements [ethercat.Driver]
func (d *Driver) SdoDownload(slaveAddr uint16, addr ethercat.SdoAddress, buf []byte, timeout time.Duration, access ethercat.SdoAccess) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[sdoKey{slaveAddr, addr.Index, addr.SubIndex}] = append([]byte{}, buf...)
	return nil
}

// MasterState implements [ethercat.Driver]
func (d *Driver) MasterState(timeout time.Duration) (ethercat.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.masterState, nil
}

// SetMasterState implements [ethercat.Driver]
func (d *Driver) SetMasterState(state ethercat.State, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.masterState = state
	return nil
}

// SlaveState implements [ethercat.Driver]
func (d *Driver) SlaveState(slaveAddr uint16, timeout time.Duration) (ethercat.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.slaveStates[slaveAddr]
	if !ok {
		return ethercat.StateInit, nil
	}
	return state, nil
}

// SetSlaveState implements [ethercat.Driver]
func (d *Driver) SetSlaveState(slaveAddr uint16, state ethercat.State, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slaveStates[slaveAddr] = state
	return nil
}
