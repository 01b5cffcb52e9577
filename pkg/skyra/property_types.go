package skyra

import (
	"fmt"
	"math"
	"strconv"
)

// PropertyName identifies a settable channel property.
type PropertyName string

const (
	// PropertyPower is the output power in mW
	PropertyPower PropertyName = "power_mw"

	// PropertyOn is the laser on/off state
	PropertyOn PropertyName = "on"

	// PropertyActive is the active (modulation gate) state
	PropertyActive PropertyName = "active"
)

// ChannelPropertyValue is a typed value for one channel property.
type ChannelPropertyValue interface {
	// PropertyName returns the name of the property this value is for
	PropertyName() PropertyName

	// Value returns the raw value
	Value() any

	// Validate checks the value independently of any channel limits
	Validate() error
}

// PowerValue is a requested output power in mW.
type PowerValue float64

// PropertyName returns the name of the property
func (v PowerValue) PropertyName() PropertyName { return PropertyPower }

// Value returns the underlying float64 value
func (v PowerValue) Value() any { return float64(v) }

// Validate rejects negative and non-finite power. The upper bound is per
// channel and is enforced by the controller.
func (v PowerValue) Validate() error {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fmt.Errorf("%w: power must be a finite value >= 0, got %v", ErrOutOfRange, f)
	}
	return nil
}

// OnValue is a laser on/off state.
type OnValue bool

// PropertyName returns the name of the property
func (v OnValue) PropertyName() PropertyName { return PropertyOn }

// Value returns the underlying bool value
func (v OnValue) Value() any { return bool(v) }

// Validate always returns nil for OnValue as any bool is valid
func (v OnValue) Validate() error { return nil }

// ActiveValue is a laser active state.
type ActiveValue bool

// PropertyName returns the name of the property
func (v ActiveValue) PropertyName() PropertyName { return PropertyActive }

// Value returns the underlying bool value
func (v ActiveValue) Value() any { return bool(v) }

// Validate always returns nil for ActiveValue as any bool is valid
func (v ActiveValue) Validate() error { return nil }

// ValidateProperty validates if the provided property name is valid
func ValidateProperty(property PropertyName) error {
	switch property {
	case PropertyPower, PropertyOn, PropertyActive:
		return nil
	default:
		return fmt.Errorf("unknown property: %s", property)
	}
}

// ParsePropertyValue converts a loosely typed value, as decoded from JSON or
// a command line, into a ChannelPropertyValue.
func ParsePropertyValue(property PropertyName, raw any) (ChannelPropertyValue, error) {
	switch property {
	case PropertyPower:
		var f float64
		switch v := raw.(type) {
		case float64:
			f = v
		case float32:
			f = float64(v)
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s: %q", property, v)
			}
			f = parsed
		default:
			return nil, fmt.Errorf("invalid value type for %s: %T", property, raw)
		}
		return PowerValue(f), nil
	case PropertyOn, PropertyActive:
		var b bool
		switch v := raw.(type) {
		case bool:
			b = v
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s: %q", property, v)
			}
			b = parsed
		default:
			return nil, fmt.Errorf("invalid value type for %s: %T", property, raw)
		}
		if property == PropertyOn {
			return OnValue(b), nil
		}
		return ActiveValue(b), nil
	default:
		return nil, ValidateProperty(property)
	}
}
