package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/geoeco/tracker/internal/domain"
)

// ErrInvalidTargets marks an unusable targets override.
var ErrInvalidTargets = errors.New("invalid calibration targets")

// Targets holds the expected latest-period aggregate per mineral, in the
// mineral's own unit (tonnes, kilograms for gold).
type Targets map[domain.Category]float64

// DefaultTargets returns the built-in national annual targets.
func DefaultTargets() Targets {
	return Targets{
		domain.Limestone: 25_000_000,
		domain.Gypsum:    10_000_000,
		domain.Silica:    1_000_000,
		domain.Dolomite:  800_000,
		domain.Manganese: 150_000,
		domain.Chromite:  900_000,
		domain.Copper:    200_000,
		domain.Gold:      1_500,
	}
}

// Clone returns an independent copy.
func (t Targets) Clone() Targets {
	out := make(Targets, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

type targetsOverride struct {
	Tonnes map[string]float64 `json:"tonnes"`
	Kg     map[string]float64 `json:"kg"`
}

// ParseTargetsOverride merges a JSON override of the form
// {"tonnes": {"Limestone": 2e7}, "kg": {"Gold": 1200}} into the defaults.
//
// An empty string yields the defaults. On malformed input the defaults are
// returned together with an error wrapping ErrInvalidTargets; callers log it
// and carry on.
func ParseTargetsOverride(raw string) (Targets, error) {
	targets := DefaultTargets()
	if strings.TrimSpace(raw) == "" {
		return targets, nil
	}

	var o targetsOverride
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return DefaultTargets(), fmt.Errorf("%w: %v", ErrInvalidTargets, err)
	}

	for _, group := range []map[string]float64{o.Tonnes, o.Kg} {
		for name, v := range group {
			if v < 0 {
				return DefaultTargets(), fmt.Errorf("%w: negative target %v for %s", ErrInvalidTargets, v, name)
			}
			c, err := domain.ParseCategory(name)
			if err != nil {
				c = domain.Category(name)
			}
			targets[c] = v
		}
	}
	return targets, nil
}
