// Package driver keeps the registry of hardware-layer implementations.
// Concrete drivers register themselves from an init() function of their
// package; embedders select one by name.
package driver

import (
	"fmt"

	ethercat "github.com/samsamfire/goethercat"
)

// NewDriverFunc constructs a driver bound to the given channel
// (device node, interface name, ... driver specific)
type NewDriverFunc func(channel string) (ethercat.Driver, error)

// AvailableDrivers maps registered driver names to their constructors
var AvailableDrivers = make(map[string]NewDriverFunc)

// ImplementedDrivers lists the driver names shipped with this module,
// whether or not their build flags enabled them
var ImplementedDrivers = []string{
	"virtual",
}

// RegisterDriver adds a driver type to the registry.
// This should be called inside an init() function of the plugin.
func RegisterDriver(driverType string, newDriver NewDriverFunc) {
	AvailableDrivers[driverType] = newDriver
}

// NewDriver creates a driver of the given registered type
func NewDriver(driverType string, channel string) (ethercat.Driver, error) {
	createDriver, ok := AvailableDrivers[driverType]
	if !ok {
		return nil, fmt.Errorf("unsupported driver : %v", driverType)
	}
	return createDriver(channel)
}
