package hardware

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/utils"
)

// SimulatedPlatform is one platform of the simulated driver
type SimulatedPlatform struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// Simulated is a host driver. Build keeps the structured program of a kernel
// and Run interprets it with element.Execute, so kernels run without a device.
type Simulated struct {
	platforms []SimulatedPlatform
	// BuildFailure, when set, is asked before every build; returning true fails
	// the build with the returned log
	BuildFailure func(req BuildRequest) (buildLog string, fail bool)
}

// NewSimulated returns a simulated driver exposing the given platforms
func NewSimulated(platforms ...SimulatedPlatform) *Simulated {
	return &Simulated{platforms: platforms}
}

// DefaultSimulated exposes one platform with a CPU and a GPU device
func DefaultSimulated() *Simulated {
	return NewSimulated(SimulatedPlatform{
		Name:    "Simulated",
		Vendor:  "aclkernel",
		Version: "OpenCL 1.2 simulated",
		Devices: []DeviceInfo{CPUProfile(), GPUProfile()},
	})
}

// CPUProfile describes a multicore CPU device: wide vectors, emulated local memory
func CPUProfile() DeviceInfo {
	return DeviceInfo{
		Platform:         "Simulated",
		Vendor:           "aclkernel",
		Name:             "Simulated CPU",
		Version:          "OpenCL 1.2 simulated",
		Type:             CPU,
		ComputeUnits:     8,
		Alignment:        128,
		LocalMemType:     LocalMemGlobal,
		LocalMemSize:     32 * 1024,
		MaxItemSizes:     [3]int{1024, 1024, 1024},
		MaxWorkGroupSize: 1024,
		VectorWidths: map[element.TypeID]int{
			element.INT32:   4,
			element.UINT32:  4,
			element.Float32: 8,
			element.Float64: 4,
			element.INT64:   4,
		},
		Extensions: "cl_khr_fp64 cl_khr_global_int32_base_atomics cl_khr_local_int32_base_atomics",
	}
}

// GPUProfile describes a discrete GPU: scalar lanes, dedicated local memory
func GPUProfile() DeviceInfo {
	return DeviceInfo{
		Platform:         "Simulated",
		Vendor:           "aclkernel",
		Name:             "Simulated GPU",
		Version:          "OpenCL 1.2 simulated",
		Type:             GPU,
		ComputeUnits:     16,
		Alignment:        256,
		LocalMemType:     LocalMemDedicated,
		LocalMemSize:     48 * 1024,
		MaxItemSizes:     [3]int{256, 256, 64},
		MaxWorkGroupSize: 256,
		VectorWidths: map[element.TypeID]int{
			element.INT32:   1,
			element.UINT32:  1,
			element.Float32: 1,
			element.Float64: 1,
			element.INT64:   1,
		},
		Extensions: "cl_khr_fp64 cl_khr_global_int32_base_atomics cl_khr_local_int32_base_atomics",
	}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Platforms() ([]PlatformInfo, error) {
	out := make([]PlatformInfo, len(s.platforms))
	for i, p := range s.platforms {
		out[i] = PlatformInfo{
			Name:    p.Name,
			Vendor:  p.Vendor,
			Version: p.Version,
			Devices: append([]DeviceInfo(nil), p.Devices...),
		}
	}
	return out, nil
}

func (s *Simulated) Open(platform, device int) (Device, error) {
	if platform < 0 || platform >= len(s.platforms) {
		return nil, Fail("clGetPlatformIDs", InvalidPlatform, "no platform %d", platform)
	}
	p := s.platforms[platform]
	if device < 0 || device >= len(p.Devices) {
		return nil, Fail("clGetDeviceIDs", InvalidDevice, "no device %d on platform %q", device, p.Name)
	}
	info := p.Devices[device]
	if info.Platform == "" {
		info.Platform = p.Name
	}
	return &simDevice{drv: s, info: info}, nil
}

type simDevice struct {
	drv   *Simulated
	info  DeviceInfo
	freed bool
}

func (d *simDevice) Info() DeviceInfo { return d.info }

func (d *simDevice) Build(req BuildRequest) (CompiledKernel, error) {
	if d.freed {
		return nil, Fail("clBuildProgram", InvalidDevice, "device %s was released", d.info.Name)
	}
	if req.Source == "" {
		return nil, Fail("clCreateProgramWithSource", InvalidValue, "empty source for %s", req.Name)
	}
	if req.Program == nil {
		return nil, Fail("clBuildProgram", InvalidOperation, "the simulated driver needs the program of %s", req.Name)
	}
	if d.drv.BuildFailure != nil {
		if buildLog, fail := d.drv.BuildFailure(req); fail {
			return nil, utils.BuildFailure("clBuildProgram", int(BuildProgramFailure), buildLog, req.Source)
		}
	}
	if req.Program.UsesType(element.Float64) &&
		!containsAny(d.info.Extensions, "cl_khr_fp64", "cl_amd_fp64") {
		return nil, utils.BuildFailure("clBuildProgram", int(BuildProgramFailure),
			"error: use of type 'double' requires cl_khr_fp64 support", req.Source)
	}
	if local := int64(req.Program.LocalMemBytes()); local > d.info.LocalMemSize {
		return nil, utils.BuildFailure("clBuildProgram", int(BuildProgramFailure),
			fmt.Sprintf("error: kernel uses %d bytes of local memory, device has %d", local, d.info.LocalMemSize),
			req.Source)
	}
	return &simKernel{dev: d, name: req.Name, p: req.Program}, nil
}

func (d *simDevice) Malloc(bytes int64) (DeviceMemory, error) {
	if bytes < 0 {
		return nil, Fail("clCreateBuffer", InvalidBufferSize, "%d bytes", bytes)
	}
	if d.freed {
		return nil, Fail("clCreateBuffer", InvalidDevice, "device %s was released", d.info.Name)
	}
	return &simMemory{dev: d, data: make([]byte, bytes)}, nil
}

func (d *simDevice) Finish() error { return nil }
func (d *simDevice) Free()         { d.freed = true }

type simMemory struct {
	dev  *simDevice
	data []byte
}

func (m *simMemory) Bytes() int64        { return int64(len(m.data)) }
func (m *simMemory) Handle() interface{} { return m }
func (m *simMemory) Free()               { m.data = nil }

func (m *simMemory) Write(src unsafe.Pointer, bytes int64) error {
	if bytes < 0 || bytes > int64(len(m.data)) {
		return Fail("clEnqueueWriteBuffer", InvalidValue, "%d bytes into %d", bytes, len(m.data))
	}
	copy(m.data, unsafe.Slice((*byte)(src), bytes))
	return nil
}

func (m *simMemory) Read(dst unsafe.Pointer, bytes int64) error {
	if bytes < 0 || bytes > int64(len(m.data)) {
		return Fail("clEnqueueReadBuffer", InvalidValue, "%d bytes from %d", bytes, len(m.data))
	}
	copy(unsafe.Slice((*byte)(dst), bytes), m.data)
	return nil
}

// simView is element storage of type t over a simulated allocation
type simView struct {
	m *simMemory
	t element.TypeID
}

func (v simView) Len() int { return len(v.m.data) / v.t.Size() }

func (v simView) Load(i int) float64 {
	b := v.m.data[i*v.t.Size():]
	switch v.t {
	case element.INT32:
		return float64(int32(binary.NativeEndian.Uint32(b)))
	case element.UINT32:
		return float64(binary.NativeEndian.Uint32(b))
	case element.Float32:
		return float64(math.Float32frombits(binary.NativeEndian.Uint32(b)))
	case element.Float64:
		return math.Float64frombits(binary.NativeEndian.Uint64(b))
	case element.INT64:
		return float64(int64(binary.NativeEndian.Uint64(b)))
	}
	return 0
}

func (v simView) Store(i int, x float64) {
	b := v.m.data[i*v.t.Size():]
	x = v.t.Coerce(x)
	switch v.t {
	case element.INT32:
		binary.NativeEndian.PutUint32(b, uint32(int32(x)))
	case element.UINT32:
		binary.NativeEndian.PutUint32(b, uint32(x))
	case element.Float32:
		binary.NativeEndian.PutUint32(b, math.Float32bits(float32(x)))
	case element.Float64:
		binary.NativeEndian.PutUint64(b, math.Float64bits(x))
	case element.INT64:
		binary.NativeEndian.PutUint64(b, uint64(int64(x)))
	}
}

type simKernel struct {
	dev  *simDevice
	name string
	p    *element.Program
	args []interface{}
}

func (k *simKernel) Name() string { return k.name }
func (k *simKernel) Free()        { k.args = nil }

func (k *simKernel) Resources() (local, private int64) {
	return int64(k.p.LocalMemBytes()), int64(k.p.PrivateMemBytes())
}

func (k *simKernel) SetArgs(args ...interface{}) error {
	if len(args) != len(k.p.Params) {
		return Fail("clSetKernelArg", InvalidArgIndex, "%s takes %d arguments, got %d", k.name, len(k.p.Params), len(args))
	}
	bound := make([]interface{}, len(args))
	for i, e := range k.p.Params {
		if e.Kind() == element.KindBuffer {
			m, ok := args[i].(*simMemory)
			if !ok || m == nil || m.data == nil {
				return Fail("clSetKernelArg", InvalidArgValue, "argument %d of %s is %T, not a live buffer", i, k.name, args[i])
			}
			if m.dev != k.dev {
				return Fail("clSetKernelArg", InvalidArgValue, "argument %d of %s lives on another device", i, k.name)
			}
			bound[i] = simView{m: m, t: e.Type()}
			continue
		}
		if _, ok := element.ToFloat64(args[i]); !ok {
			return Fail("clSetKernelArg", InvalidArgValue, "argument %d of %s is %T, not a scalar", i, k.name, args[i])
		}
		bound[i] = args[i]
	}
	k.args = bound
	return nil
}

func (k *simKernel) Run(global, local int) error {
	if k.args == nil && len(k.p.Params) > 0 {
		return Fail("clEnqueueNDRangeKernel", InvalidKernelArgs, "arguments of %s are not set", k.name)
	}
	if global < 0 {
		return Fail("clEnqueueNDRangeKernel", InvalidGlobalWorkSize, "%d items", global)
	}
	if k.p.Local {
		if local < 1 || local > k.dev.info.MaxWorkGroupSize || local > k.dev.info.MaxItemSizes[0] {
			return Fail("clEnqueueNDRangeKernel", InvalidWorkGroupSize, "work group of %d items on %s", local, k.dev.info.Name)
		}
		if global%local != 0 {
			return Fail("clEnqueueNDRangeKernel", InvalidWorkGroupSize, "%d items do not divide into groups of %d", global, local)
		}
	}
	if err := element.Execute(k.p, k.args, global, local); err != nil {
		return Fail("clEnqueueNDRangeKernel", OutOfResources, "%s: %v", k.name, err)
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
