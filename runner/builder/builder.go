package builder

import (
	"fmt"
	"strings"

	"github.com/notargets/aclkernel/element"
)

// KernelConfiguration is the index-space and SIMD policy of a kernel
type KernelConfiguration struct {
	// VectorWidth forces the SIMD width; 0 detects it from the device
	VectorWidth int
	// Unaligned permits SIMD accesses at arbitrary element offsets (vloadN/vstoreN)
	Unaligned bool
	// Local runs the kernel as work groups with a local index and group ID
	Local bool
	// Extensions are enabled with a pragma in the generated source
	Extensions []string
}

// Preset configurations
var (
	KernelBasic      = KernelConfiguration{VectorWidth: 1}
	KernelSIMD       = KernelConfiguration{}
	KernelSIMDUA     = KernelConfiguration{Unaligned: true}
	KernelBasicLocal = KernelConfiguration{VectorWidth: 1, Local: true}
)

// Compatible reports whether kernels of both configurations can share one body
func (c KernelConfiguration) Compatible(o KernelConfiguration) bool {
	if c.VectorWidth != o.VectorWidth || c.Unaligned != o.Unaligned || c.Local != o.Local {
		return false
	}
	if len(c.Extensions) != len(o.Extensions) {
		return false
	}
	for i := range c.Extensions {
		if c.Extensions[i] != o.Extensions[i] {
			return false
		}
	}
	return true
}

func (c KernelConfiguration) String() string {
	width := "auto"
	if c.VectorWidth > 0 {
		width = fmt.Sprintf("%d", c.VectorWidth)
	}
	return fmt.Sprintf("width=%s unaligned=%t local=%t extensions=[%s]",
		width, c.Unaligned, c.Local, strings.Join(c.Extensions, " "))
}

// Capabilities is what source generation needs to know about the target device
type Capabilities interface {
	NativeVectorWidths() map[element.TypeID]int
	ExtensionAvailable(ext string) bool
}

// Builder generates kernel source for one configuration and device
type Builder struct {
	Config KernelConfiguration
	Caps   Capabilities
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg KernelConfiguration, caps Capabilities) *Builder {
	if caps == nil {
		panic("device capabilities cannot be nil")
	}
	return &Builder{Config: cfg, Caps: caps}
}

// DetectVectorWidth picks the native SIMD width for the kinds a kernel references.
// The minimum over all kinds is a floor, a 0 width is clamped to 1.
func DetectVectorWidth(widths map[element.TypeID]int, referenced []element.TypeID) int {
	floor, width := -1, 0
	for _, t := range element.AllTypes {
		w := widths[t]
		if floor < 0 || w < floor {
			floor = w
		}
		if w > width {
			width = w
		}
	}
	for _, t := range referenced {
		if w := widths[t]; w < width {
			width = w
		}
	}
	if width < floor {
		width = floor
	}
	if width < 1 {
		width = 1
	}
	return width
}

// VectorWidth finalizes the SIMD width for kernel p
func (kb *Builder) VectorWidth(p *element.Program) int {
	switch {
	case kb.Config.Local:
		return 1
	case kb.Config.VectorWidth > 0:
		return kb.Config.VectorWidth
	}
	return DetectVectorWidth(kb.Caps.NativeVectorWidths(), p.Types())
}
