// Package policy is the pure mapping from an API key tier to its capability
// set and default quota limits. Unrecognized tiers are rejected outright so
// that bad values never make it past admin key creation.
package policy

import (
	"errors"
	"fmt"
)

// Tier is an API key's capability/quota class, 1 lowest to 4 highest.
type Tier int16

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
	Tier4 Tier = 4
)

var ErrUnknownTier = errors.New("unknown tier")

// Capabilities is the feature set a tier grants.
type Capabilities struct {
	CustomCode      bool
	SetExpiration   bool
	PasswordProtect bool
	BulkCreate      bool
}

// Limits holds default quota limits for a tier; nil means unlimited.
type Limits struct {
	Daily   *int
	Monthly *int
}

// CapabilitiesFor returns the capability set for a tier.
func CapabilitiesFor(t Tier) (Capabilities, error) {
	switch t {
	case Tier1:
		return Capabilities{}, nil
	case Tier2:
		return Capabilities{CustomCode: true}, nil
	case Tier3, Tier4:
		return Capabilities{
			CustomCode:      true,
			SetExpiration:   true,
			PasswordProtect: true,
			BulkCreate:      true,
		}, nil
	default:
		return Capabilities{}, fmt.Errorf("%w: %d", ErrUnknownTier, t)
	}
}

// DefaultLimits returns the default daily/monthly quota for a tier. Explicit
// limits supplied at key creation override these.
func DefaultLimits(t Tier) (Limits, error) {
	switch t {
	case Tier1:
		return Limits{Daily: intPtr(50), Monthly: intPtr(500)}, nil
	case Tier2:
		return Limits{Daily: intPtr(500), Monthly: intPtr(5000)}, nil
	case Tier3:
		return Limits{Daily: intPtr(5000), Monthly: intPtr(50000)}, nil
	case Tier4:
		return Limits{}, nil // unlimited
	default:
		return Limits{}, fmt.Errorf("%w: %d", ErrUnknownTier, t)
	}
}

func intPtr(v int) *int {
	return &v
}
