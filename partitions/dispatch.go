package partitions

// Padding is the number of items appended so size divides evenly into vectors of width
func Padding(size, width int) int {
	if width < 1 {
		width = 1
	}
	return (width - size%width) % width
}

// ItemCount is the number of work items covering size entries at the given vector width
func ItemCount(size, width int) int {
	if width < 1 {
		width = 1
	}
	return (size + Padding(size, width)) / width
}

// ChunkSize splits length entries over units, rounding up
func ChunkSize(length, units int) int {
	if units < 1 {
		return length
	}
	return (length + units - 1) / units
}

// RemainderSize is the length of the last, partial chunk
func RemainderSize(length, chunk int) int {
	if chunk < 1 {
		return 0
	}
	return length % chunk
}

// SaturatedUnits is the number of units that own a full chunk
func SaturatedUnits(length, chunk int) int {
	if chunk < 1 {
		return 0
	}
	return length / chunk
}

// FoldCount is the number of partial results the host folds after a reduction
func FoldCount(length, units int) int {
	if units < 1 {
		return 0
	}
	folds := SaturatedUnits(length, ChunkSize(length, units)) + 1
	if folds > units {
		folds = units
	}
	return folds
}

// Partition is the contiguous range of entries one reduction unit owns
type Partition struct {
	ID    int
	Start int
	Count int
}

// Layout is the complete decomposition of a reduction over a device
type Layout struct {
	Length        int
	Groups        int
	UnitsPerGroup int
	Units         int
	Chunk         int
	Saturated     int
	Remainder     int
	Folds         int
	Partitions    []Partition
}

// NewLayout decomposes length entries over groups × unitsPerGroup units
func NewLayout(length, groups, unitsPerGroup int) Layout {
	if groups < 1 {
		groups = 1
	}
	if unitsPerGroup < 1 {
		unitsPerGroup = 1
	}
	units := groups * unitsPerGroup
	chunk := ChunkSize(length, units)
	l := Layout{
		Length:        length,
		Groups:        groups,
		UnitsPerGroup: unitsPerGroup,
		Units:         units,
		Chunk:         chunk,
		Saturated:     SaturatedUnits(length, chunk),
		Remainder:     RemainderSize(length, chunk),
		Folds:         FoldCount(length, units),
		Partitions:    make([]Partition, units),
	}
	for u := range l.Partitions {
		start := u * chunk
		count := chunk
		if start+count > length {
			count = length - start
		}
		if count < 0 {
			start, count = length, 0
		}
		l.Partitions[u] = Partition{ID: u, Start: start, Count: count}
	}
	return l
}
