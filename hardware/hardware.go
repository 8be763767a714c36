package hardware

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/utils"
	"github.com/pkg/errors"
)

// Hardware is the registry of every queue a driver exposes. It owns the
// default queue selection and the kernel ID sequence.
type Hardware struct {
	driver    Driver
	queues    []*Queue
	def       *Queue
	inventory string
	nextID    atomic.Int64
	logger    *log.Logger
}

// Option configures a Hardware context
type Option func(*Hardware)

// WithLogger sends warnings and build diagnostics to l instead of the package logger
func WithLogger(l *log.Logger) Option {
	return func(hw *Hardware) {
		hw.logger = l
	}
}

// New enumerates all platforms and devices of drv once and opens one queue per device
func New(drv Driver, opts ...Option) (*Hardware, error) {
	if drv == nil {
		panic("driver cannot be nil")
	}
	hw := &Hardware{driver: drv}
	for _, opt := range opts {
		opt(hw)
	}

	platforms, err := drv.Platforms()
	if err != nil {
		return nil, errors.Wrapf(err, "enumerating %s platforms", drv.Name())
	}

	var sb strings.Builder
	for p, pl := range platforms {
		sb.WriteString(fmt.Sprintf("Platform %d: %s (%s, %s)\n", p, pl.Name, pl.Vendor, pl.Version))
		for d := range pl.Devices {
			dev, err := drv.Open(p, d)
			if err != nil {
				hw.Close()
				return nil, errors.Wrapf(err, "opening device %d of platform %q", d, pl.Name)
			}
			info := dev.Info()
			q := &Queue{
				hw:       hw,
				dev:      dev,
				info:     info,
				platform: pl.Name,
				name:     fmt.Sprintf("%d.%d:%s", p, d, info.Name),
			}
			hw.queues = append(hw.queues, q)
			sb.WriteString(fmt.Sprintf("  Device %d: %s [%s, %s] %d compute units, %s local memory %d bytes, max work group %d\n",
				d, info.Name, info.Type, info.Version, info.ComputeUnits, info.LocalMemType, info.LocalMemSize,
				info.MaxWorkGroupSize))
		}
	}
	if len(hw.queues) == 0 {
		return nil, Fail("Hardware.New", DeviceNotFound, "driver %s reports no devices", drv.Name())
	}
	hw.def = hw.queues[0]
	hw.inventory = sb.String()
	return hw, nil
}

// Logger returns the diagnostic stream of the context
func (hw *Hardware) Logger() *log.Logger {
	if hw.logger != nil {
		return hw.logger
	}
	return utils.Logger()
}

func (hw *Hardware) warnf(format string, args ...interface{}) {
	hw.Logger().Printf("WARNING: "+format, args...)
}

func (hw *Hardware) Driver() Driver    { return hw.driver }
func (hw *Hardware) Inventory() string { return hw.inventory }

// Queues returns every queue in enumeration order
func (hw *Hardware) Queues() []*Queue {
	out := make([]*Queue, len(hw.queues))
	copy(out, hw.queues)
	return out
}

// DefaultQueue is the queue kernels use unless told otherwise
func (hw *Hardware) DefaultQueue() *Queue {
	return hw.def
}

// SetDefaultQueue selects the queue of an exactly named platform and device.
// Without a match it warns and falls back to the first queue.
func (hw *Hardware) SetDefaultQueue(platform, device string) *Queue {
	for _, q := range hw.queues {
		if q.platform == platform && q.info.Name == device {
			hw.def = q
			return q
		}
	}
	hw.def = hw.queues[0]
	hw.warnf("no device %q on platform %q, using %s on %s", device, platform, hw.def.info.Name, hw.def.platform)
	return hw.def
}

// NextKernelID returns a new kernel ID, unique and increasing within the context
func (hw *Hardware) NextKernelID() int64 {
	return hw.nextID.Add(1)
}

// Close releases every queue
func (hw *Hardware) Close() {
	for _, q := range hw.queues {
		q.dev.Free()
	}
	hw.queues = nil
}

// Queue is one in-order command queue on a device
type Queue struct {
	hw       *Hardware
	dev      Device
	info     DeviceInfo
	platform string
	name     string
}

// Name identifies the queue; buffers record it to catch cross-queue use
func (q *Queue) Name() string           { return q.name }
func (q *Queue) Hardware() *Hardware    { return q.hw }
func (q *Queue) Device() Device         { return q.dev }
func (q *Queue) Info() DeviceInfo       { return q.info }
func (q *Queue) Platform() string       { return q.platform }
func (q *Queue) Vendor() string         { return q.info.Vendor }
func (q *Queue) DeviceName() string     { return q.info.Name }
func (q *Queue) DeviceVersion() string  { return q.info.Version }
func (q *Queue) DeviceType() DeviceType { return q.info.Type }
func (q *Queue) ComputeUnits() int      { return q.info.ComputeUnits }
func (q *Queue) Alignment() int         { return q.info.Alignment }
func (q *Queue) MaxWorkGroupSize() int  { return q.info.MaxWorkGroupSize }

func (q *Queue) LocalMemoryType() LocalMemoryType { return q.info.LocalMemType }
func (q *Queue) LocalMemorySize() int64           { return q.info.LocalMemSize }

// MaxItemSize is the largest work-group extent along dim
func (q *Queue) MaxItemSize(dim int) int {
	if dim < 0 || dim >= len(q.info.MaxItemSizes) {
		return 0
	}
	return q.info.MaxItemSizes[dim]
}

// NativeVectorWidth is the preferred SIMD width for kind t, 0 when unsupported
func (q *Queue) NativeVectorWidth(t element.TypeID) int {
	return q.info.VectorWidths[t]
}

// NativeVectorWidths returns the preferred SIMD width of every kind
func (q *Queue) NativeVectorWidths() map[element.TypeID]int {
	out := make(map[element.TypeID]int, len(element.AllTypes))
	for _, t := range element.AllTypes {
		out[t] = q.info.VectorWidths[t]
	}
	return out
}

// ExtensionAvailable matches ext against the device extension string
func (q *Queue) ExtensionAvailable(ext string) bool {
	return ext != "" && strings.Contains(q.info.Extensions, ext)
}

// DoublePrecision reports whether the device advertises an fp64 extension
func (q *Queue) DoublePrecision() bool {
	return q.ExtensionAvailable("cl_khr_fp64") || q.ExtensionAvailable("cl_amd_fp64")
}

// KernelLocalMemory is the local memory a built kernel uses
func (q *Queue) KernelLocalMemory(k CompiledKernel) int64 {
	local, _ := k.Resources()
	return local
}

// KernelPrivateMemory is the private memory a built kernel uses per item
func (q *Queue) KernelPrivateMemory(k CompiledKernel) int64 {
	_, private := k.Resources()
	return private
}

// Build compiles a kernel on the queue device
func (q *Queue) Build(req BuildRequest) (CompiledKernel, error) {
	return q.dev.Build(req)
}

// Finish blocks until the queue drained
func (q *Queue) Finish() error {
	return q.dev.Finish()
}

func (q *Queue) String() string {
	return fmt.Sprintf("%s (%s %s)", q.name, q.info.Vendor, q.info.Type)
}
