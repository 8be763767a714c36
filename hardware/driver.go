package hardware

import (
	"unsafe"

	"github.com/notargets/aclkernel/element"
)

// DeviceType classifies compute devices
type DeviceType uint8

const (
	CPU DeviceType = iota + 1
	GPU
	Accelerator
)

func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	case Accelerator:
		return "Accelerator"
	default:
		return "Unknown"
	}
}

// LocalMemoryType tells whether __local memory is dedicated or emulated in global memory
type LocalMemoryType uint8

const (
	LocalMemDedicated LocalMemoryType = iota + 1
	LocalMemGlobal
)

func (t LocalMemoryType) String() string {
	if t == LocalMemDedicated {
		return "local"
	}
	return "global"
}

// DeviceInfo holds the capabilities a driver reports for one device
type DeviceInfo struct {
	Platform         string
	Vendor           string
	Name             string
	Version          string
	Type             DeviceType
	ComputeUnits     int
	Alignment        int // base address alignment in bytes
	LocalMemType     LocalMemoryType
	LocalMemSize     int64
	MaxItemSizes     [3]int
	MaxWorkGroupSize int
	VectorWidths     map[element.TypeID]int
	Extensions       string
}

// PlatformInfo lists one platform and its devices
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// Driver is the compute API a Hardware context runs on
type Driver interface {
	Name() string
	// Platforms enumerates every platform and every device on it
	Platforms() ([]PlatformInfo, error)
	// Open creates a context and one in-order queue for a device
	Open(platform, device int) (Device, error)
}

// BuildRequest is the input of a program build
type BuildRequest struct {
	Name    string
	Source  string
	Program *element.Program
}

// Device is one in-order command queue on a device
type Device interface {
	Info() DeviceInfo
	Build(req BuildRequest) (CompiledKernel, error)
	Malloc(bytes int64) (DeviceMemory, error)
	// Finish blocks until every enqueued command completed
	Finish() error
	Free()
}

// CompiledKernel is a built kernel object
type CompiledKernel interface {
	Name() string
	// SetArgs binds the positional arguments
	SetArgs(args ...interface{}) error
	// Run enqueues the kernel over global items; local 0 lets the driver choose
	Run(global, local int) error
	// Resources reports the local and private memory footprint in bytes
	Resources() (local, private int64)
	Free()
}

// DeviceMemory is a device allocation
type DeviceMemory interface {
	Bytes() int64
	// Write copies bytes from host memory at src to the device
	Write(src unsafe.Pointer, bytes int64) error
	// Read copies bytes from the device to host memory at dst
	Read(dst unsafe.Pointer, bytes int64) error
	// Handle is the value bound as a kernel argument
	Handle() interface{}
	Free()
}
