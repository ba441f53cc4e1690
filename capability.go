package pwmio

// Definitions for capabilities.
import (
	"strings"
)

// Define a generic way to represent pin capabilities.
type Capability int

const (
	CAP_OUTPUT Capability = iota // digital output
	CAP_PWM                      // pulse width modulated output
)

// This represents a set of capabilities that a pin may have. There may be multiple pins on a device that have identical
// capability set.
type CapabilitySet []Capability

func (c Capability) String() string {
	switch c {
	case CAP_OUTPUT:
		return "output"
	case CAP_PWM:
		return "pwm"
	}
	return ""
}

func (cs CapabilitySet) String() string {
	s := []string{}
	for _, c := range cs {
		s = append(s, c.String())
	}
	return strings.Join(s, ",")
}
