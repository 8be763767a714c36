package partitions

import (
	"fmt"
	"testing"

	"github.com/notargets/aclkernel/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddingProperties(t *testing.T) {
	for _, width := range []int{1, 2, 3, 4, 8, 16} {
		for size := 0; size <= 100; size++ {
			p := Padding(size, width)
			if (size+p)%width != 0 {
				t.Fatalf("size %d width %d: (size+padding) %% width = %d", size, width, (size+p)%width)
			}
			if p >= width {
				t.Fatalf("size %d width %d: padding %d not below width", size, width, p)
			}
			if size%width == 0 && p != 0 {
				t.Fatalf("size %d width %d: padding %d for an exact multiple", size, width, p)
			}
			assert.Equal(t, (size+width-1)/width, ItemCount(size, width))
		}
	}
}

func TestChunkMath(t *testing.T) {
	tests := []struct {
		length, units, chunk, remainder, saturated, folds int
	}{
		{101, 8, 13, 10, 7, 8},
		{100, 4, 25, 0, 4, 4},
		{100001, 32, 3126, 3095, 31, 32},
		{3, 8, 1, 0, 3, 4},
		{0, 4, 0, 0, 0, 1},
		{7, 1, 7, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.length, tt.units), func(t *testing.T) {
			chunk := ChunkSize(tt.length, tt.units)
			assert.Equal(t, tt.chunk, chunk)
			assert.Equal(t, tt.remainder, RemainderSize(tt.length, chunk))
			assert.Equal(t, tt.saturated, SaturatedUnits(tt.length, chunk))
			assert.Equal(t, tt.folds, FoldCount(tt.length, tt.units))
		})
	}
}

func TestLayoutCoversLength(t *testing.T) {
	for _, length := range []int{0, 1, 5, 64, 101, 1000, 100001} {
		for _, groups := range []int{1, 3, 8} {
			for _, s := range []Strategy{SerialChunks{}, GroupUnits{}} {
				l := LayoutFor(s, length, groups)
				require.Len(t, l.Partitions, l.Units)
				covered := 0
				for i, p := range l.Partitions {
					if p.Count > 0 {
						assert.Equal(t, covered, p.Start, "partition %d", i)
					}
					covered += p.Count
					assert.LessOrEqual(t, p.Count, l.Chunk)
				}
				assert.Equal(t, length, covered, "%s length %d groups %d", s.Name(), length, groups)
				used := 0
				for _, p := range l.Partitions {
					if p.Count > 0 {
						used++
					}
				}
				assert.LessOrEqual(t, used, l.Folds)
			}
		}
	}
}

func TestUnitsPerGroup(t *testing.T) {
	assert.Equal(t, 1, UnitsPerGroup(hardware.CPU, 1000, 4))
	assert.Equal(t, 8, UnitsPerGroup(hardware.GPU, 1000, 4))
	assert.Equal(t, 2, UnitsPerGroup(hardware.GPU, 10, 4))
	assert.Equal(t, 1, UnitsPerGroup(hardware.GPU, 3, 4))
	assert.Equal(t, 1, UnitsPerGroup(hardware.GPU, 0, 0))
	assert.True(t, StrategyFor(hardware.CPU).Serial())
	assert.False(t, StrategyFor(hardware.Accelerator).Serial())
}
