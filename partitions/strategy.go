package partitions

import (
	"github.com/notargets/aclkernel/hardware"
)

// MaxUnitsPerGroup bounds the reduction units of one GPU work group
const MaxUnitsPerGroup = 8

// Strategy decides how reduction units are laid out over work groups
type Strategy interface {
	Name() string
	UnitsPerGroup(length, groups int) int
	// Serial reports whether one item per group walks the group's chunk
	Serial() bool
}

// SerialChunks gives every work group one unit walked by its first item (CPU devices)
type SerialChunks struct{}

func (SerialChunks) Name() string                         { return "serial-chunks" }
func (SerialChunks) UnitsPerGroup(length, groups int) int { return 1 }
func (SerialChunks) Serial() bool                         { return true }

// GroupUnits spreads up to MaxUnits units over the items of each work group (GPU devices)
type GroupUnits struct {
	MaxUnits int
}

func (g GroupUnits) Name() string { return "group-units" }
func (g GroupUnits) Serial() bool { return false }

func (g GroupUnits) UnitsPerGroup(length, groups int) int {
	limit := g.MaxUnits
	if limit < 1 {
		limit = MaxUnitsPerGroup
	}
	if groups < 1 {
		groups = 1
	}
	units := length / groups
	if units > limit {
		units = limit
	}
	if units < 1 {
		units = 1
	}
	return units
}

// StrategyFor selects the partition strategy of a device type
func StrategyFor(t hardware.DeviceType) Strategy {
	if t == hardware.CPU {
		return SerialChunks{}
	}
	return GroupUnits{MaxUnits: MaxUnitsPerGroup}
}

// UnitsPerGroup is the unit count per work group the default strategy of t picks
func UnitsPerGroup(t hardware.DeviceType, length, groups int) int {
	return StrategyFor(t).UnitsPerGroup(length, groups)
}

// LayoutFor decomposes length entries over groups using strategy s
func LayoutFor(s Strategy, length, groups int) Layout {
	return NewLayout(length, groups, s.UnitsPerGroup(length, groups))
}
