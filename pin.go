package pwmio

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// A logical pin number. Drivers map these to whatever the hardware calls the output.
type Pin int

type PinDef struct {
	pin          Pin           // the pin, also in the map key of PinMap
	names        []string      // hardware names of the pin, backend specific
	capabilities CapabilitySet // set of capabilities of the pin
}

// Create a pin definition. The first name is treated as the canonical hardware name.
func NewPinDef(pin Pin, names []string, caps CapabilitySet) *PinDef {
	return &PinDef{pin: pin, names: names, capabilities: caps}
}

type PinMap map[Pin]*PinDef

// Add a pin to the map
func (m PinMap) Add(pin Pin, names []string, caps CapabilitySet) {
	m[pin] = NewPinDef(pin, names, caps)
}

// Given a pin number, return it's PinDef, or nil if that pin is not defined in the map
func (m PinMap) GetDef(pin Pin) *PinDef {
	return m[pin]
}

// Returns a Pin given any of the names of the pin. Search is case sensitive.
func (m PinMap) GetPin(name string) (Pin, error) {
	for pin, pd := range m {
		for _, n := range pd.names {
			if n == name {
				return pin, nil
			}
		}
	}
	return Pin(0), errors.Wrapf(ErrUnknownPin, "could not find a pin called %s", name)
}

// Pins returns the defined pins in ascending order.
func (m PinMap) Pins() []Pin {
	pins := make([]Pin, 0, len(m))
	for p := range m {
		pins = append(pins, p)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}

// Return the canonical hardware name of the pin, or "" if it has none.
func (pd *PinDef) Name() string {
	if len(pd.names) == 0 {
		return ""
	}
	return pd.names[0]
}

// Provide a string representation of a logic pin and the capabilties it
// supports.
func (pd *PinDef) String() string {
	return fmt.Sprintf("%d (%s)  cap:%s", pd.pin, pd.Name(), pd.capabilities.String())
}

// Determine if a pin has a particular capability.
func (pd *PinDef) HasCapability(cap Capability) bool {
	for _, v := range pd.capabilities {
		if v == cap {
			return true
		}
	}
	return false
}
