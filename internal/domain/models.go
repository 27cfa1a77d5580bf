// Package domain provides the shared vocabulary of the tracker: mineral
// categories, production units, operational statuses and sustainability bands.
package domain

import (
	"fmt"
	"strings"
)

// Category identifies a mineral. Regions, calibration ranges and targets are all
// keyed by it.
type Category string

const (
	Copper    Category = "Copper"
	Chromite  Category = "Chromite"
	Gypsum    Category = "Gypsum"
	Limestone Category = "Limestone"
	Gold      Category = "Gold"
	Manganese Category = "Manganese"
	Silica    Category = "Silica"
	Dolomite  Category = "Dolomite"
)

// Categories lists every known mineral in definition order.
var Categories = []Category{Copper, Chromite, Gypsum, Limestone, Gold, Manganese, Silica, Dolomite}

// Unit is the unit production quantities are recorded in
type Unit string

const (
	UnitTonne    Unit = "ton"
	UnitKilogram Unit = "kg"
)

// Group clusters minerals that share production and environmental profiles.
type Group string

const (
	// GroupIndustrial covers bulk industrial minerals (limestone, gypsum, silica, dolomite)
	GroupIndustrial Group = "industrial"
	// GroupMetallic covers base metal and ferroalloy ores (copper, chromite, manganese)
	GroupMetallic Group = "metallic"
	// GroupPrecious covers gold
	GroupPrecious Group = "precious"
)

var categoryGroups = map[Category]Group{
	Limestone: GroupIndustrial,
	Gypsum:    GroupIndustrial,
	Silica:    GroupIndustrial,
	Dolomite:  GroupIndustrial,
	Copper:    GroupMetallic,
	Chromite:  GroupMetallic,
	Manganese: GroupMetallic,
	Gold:      GroupPrecious,
}

// Unit returns the production unit for the mineral. Gold is tracked in kilograms.
func (c Category) Unit() Unit {
	if c == Gold {
		return UnitKilogram
	}
	return UnitTonne
}

// Group returns the mineral group. Unknown minerals are treated as precious.
func (c Category) Group() Group {
	if g, ok := categoryGroups[c]; ok {
		return g
	}
	return GroupPrecious
}

// Valid reports whether c is a known mineral
func (c Category) Valid() bool {
	_, ok := categoryGroups[c]
	return ok
}

// ParseCategory matches a mineral name case-insensitively.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown mineral %q", name)
}

// CategorySet is an ordered set of minerals associated with a region.
type CategorySet []Category

// Has reports whether the set contains c.
func (s CategorySet) Has(c Category) bool {
	for _, v := range s {
		if v == c {
			return true
		}
	}
	return false
}

// Status is the operational status of a site
type Status string

const (
	StatusActive   Status = "active"
	StatusProposed Status = "proposed"
	StatusClosed   Status = "closed"
)

// Statuses lists every status in draw order.
var Statuses = []Status{StatusActive, StatusProposed, StatusClosed}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusProposed || s == StatusClosed
}

// Band is a sustainability tier, ordered green > yellow > red.
type Band string

const (
	BandGreen  Band = "green"
	BandYellow Band = "yellow"
	BandRed    Band = "red"
)

// Bands lists every band from best to worst.
var Bands = []Band{BandGreen, BandYellow, BandRed}

// Valid reports whether b is a known band
func (b Band) Valid() bool {
	return b == BandGreen || b == BandYellow || b == BandRed
}

// AlertLevel is the severity of a site alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarn     AlertLevel = "warn"
	AlertCritical AlertLevel = "critical"
)

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"
