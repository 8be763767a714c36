package occa

import (
	"fmt"
	"unsafe"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/utils"
	"github.com/notargets/gocca"
)

const (
	// nativeProps builds plain OpenCL C, bypassing the OKL translator
	nativeProps = `{"okl": {"enabled": false}}`
	maxGroup    = 256
)

// Driver runs kernels on OpenCL devices through OCCA. OCCA does not expose
// device capabilities, so they come from Profile.
type Driver struct {
	MaxPlatforms int
	MaxDevices   int
	// Profile returns the capabilities of the device at (platform, device)
	Profile func(platform, device int) hardware.DeviceInfo
}

// New returns a driver probing up to 4 platforms of up to 8 devices each
func New() *Driver {
	return &Driver{
		MaxPlatforms: 4,
		MaxDevices:   8,
		Profile:      DefaultProfile,
	}
}

// DeviceProps is the OCCA property string selecting an OpenCL device
func DeviceProps(platform, device int) string {
	return fmt.Sprintf(`{"mode": "OpenCL", "platform_id": %d, "device_id": %d}`, platform, device)
}

// DefaultProfile describes a conservative discrete GPU
func DefaultProfile(platform, device int) hardware.DeviceInfo {
	widths := make(map[element.TypeID]int, len(element.AllTypes))
	for _, t := range element.AllTypes {
		widths[t] = 1
	}
	return hardware.DeviceInfo{
		Platform:         fmt.Sprintf("OpenCL %d", platform),
		Vendor:           "OpenCL",
		Name:             fmt.Sprintf("OpenCL device %d.%d", platform, device),
		Version:          "OpenCL 1.2",
		Type:             hardware.GPU,
		ComputeUnits:     16,
		Alignment:        256,
		LocalMemType:     hardware.LocalMemDedicated,
		LocalMemSize:     32 * 1024,
		MaxItemSizes:     [3]int{maxGroup, maxGroup, 64},
		MaxWorkGroupSize: maxGroup,
		VectorWidths:     widths,
		Extensions:       "cl_khr_fp64 cl_khr_global_int32_base_atomics cl_khr_local_int32_base_atomics",
	}
}

func (d *Driver) Name() string { return "occa-opencl" }

// Platforms probes platform and device ids in order until OCCA refuses one
func (d *Driver) Platforms() ([]hardware.PlatformInfo, error) {
	var out []hardware.PlatformInfo
	for p := 0; p < d.MaxPlatforms; p++ {
		var devices []hardware.DeviceInfo
		for dev := 0; dev < d.MaxDevices; dev++ {
			device, err := gocca.NewDevice(DeviceProps(p, dev))
			if err != nil {
				break
			}
			if device.Mode() != "OpenCL" {
				device.Free()
				break
			}
			device.Free()
			devices = append(devices, d.Profile(p, dev))
		}
		if len(devices) == 0 {
			break
		}
		out = append(out, hardware.PlatformInfo{
			Name:    devices[0].Platform,
			Vendor:  devices[0].Vendor,
			Version: devices[0].Version,
			Devices: devices,
		})
	}
	if len(out) == 0 {
		return nil, hardware.Fail("occaCreateDevice", hardware.DeviceNotFound, "no OpenCL device reachable through OCCA")
	}
	return out, nil
}

func (d *Driver) Open(platform, device int) (hardware.Device, error) {
	dev, err := gocca.NewDevice(DeviceProps(platform, device))
	if err != nil {
		return nil, hardware.Fail("occaCreateDevice", hardware.InvalidDevice, "platform %d device %d: %v", platform, device, err)
	}
	return &occaDevice{dev: dev, info: d.Profile(platform, device)}, nil
}

type occaDevice struct {
	dev  *gocca.OCCADevice
	info hardware.DeviceInfo
}

func (d *occaDevice) Info() hardware.DeviceInfo { return d.info }

func (d *occaDevice) Build(req hardware.BuildRequest) (hardware.CompiledKernel, error) {
	if req.Source == "" {
		return nil, hardware.Fail("occaDeviceBuildKernelFromString", hardware.InvalidValue, "empty source for %s", req.Name)
	}
	props := gocca.JsonParse(nativeProps)
	defer props.Free()
	kernel, err := d.dev.BuildKernelFromString(req.Source, req.Name, props)
	if err != nil {
		return nil, utils.BuildFailure("occaDeviceBuildKernelFromString", int(hardware.BuildProgramFailure), err.Error(), req.Source)
	}
	if kernel == nil {
		return nil, hardware.Fail("occaDeviceBuildKernelFromString", hardware.InvalidKernelName, "build returned no kernel for %s", req.Name)
	}
	k := &occaKernel{kernel: kernel, name: req.Name}
	if req.Program != nil {
		k.local = int64(req.Program.LocalMemBytes())
		k.private = int64(req.Program.PrivateMemBytes())
	}
	return k, nil
}

func (d *occaDevice) Malloc(bytes int64) (hardware.DeviceMemory, error) {
	if bytes <= 0 {
		return nil, hardware.Fail("occaDeviceMalloc", hardware.InvalidBufferSize, "%d bytes", bytes)
	}
	mem := d.dev.Malloc(bytes, nil, nil)
	if mem == nil {
		return nil, hardware.Fail("occaDeviceMalloc", hardware.MemObjectAllocFailure, "%d bytes on %s", bytes, d.info.Name)
	}
	return &occaMemory{mem: mem, bytes: bytes}, nil
}

func (d *occaDevice) Finish() error {
	d.dev.Finish()
	return nil
}

func (d *occaDevice) Free() {
	d.dev.Free()
}

type occaMemory struct {
	mem   *gocca.OCCAMemory
	bytes int64
}

func (m *occaMemory) Bytes() int64        { return m.bytes }
func (m *occaMemory) Handle() interface{} { return m.mem }

func (m *occaMemory) Write(src unsafe.Pointer, bytes int64) error {
	if bytes < 0 || bytes > m.bytes {
		return hardware.Fail("occaCopyPtrToMem", hardware.InvalidValue, "%d bytes into %d", bytes, m.bytes)
	}
	m.mem.CopyFrom(src, bytes)
	return nil
}

func (m *occaMemory) Read(dst unsafe.Pointer, bytes int64) error {
	if bytes < 0 || bytes > m.bytes {
		return hardware.Fail("occaCopyMemToPtr", hardware.InvalidValue, "%d bytes from %d", bytes, m.bytes)
	}
	m.mem.CopyTo(dst, bytes)
	return nil
}

func (m *occaMemory) Free() {
	if m.mem != nil {
		m.mem.Free()
		m.mem = nil
	}
}

type occaKernel struct {
	kernel         *gocca.OCCAKernel
	name           string
	local, private int64
}

func (k *occaKernel) Name() string                      { return k.name }
func (k *occaKernel) Resources() (local, private int64) { return k.local, k.private }
func (k *occaKernel) Free()                             { k.kernel.Free() }

func (k *occaKernel) SetArgs(args ...interface{}) error {
	k.kernel.ClearArgs()
	for i, arg := range args {
		if arg == nil {
			return hardware.Fail("occaKernelPushArg", hardware.InvalidArgValue, "argument %d of %s is nil", i, k.name)
		}
		if err := k.kernel.PushArg(arg); err != nil {
			return hardware.Fail("occaKernelPushArg", hardware.InvalidArgValue, "argument %d of %s: %v", i, k.name, err)
		}
	}
	return nil
}

// Run launches global items in groups of local; local 0 picks the largest
// power of two up to 256 that divides global.
func (k *occaKernel) Run(global, local int) error {
	if global < 0 {
		return hardware.Fail("occaKernelRun", hardware.InvalidGlobalWorkSize, "%d items", global)
	}
	if global == 0 {
		return nil
	}
	if local <= 0 {
		local = GroupSize(global)
	}
	if global%local != 0 {
		return hardware.Fail("occaKernelRun", hardware.InvalidWorkGroupSize, "%d items do not divide into groups of %d", global, local)
	}
	k.kernel.SetRunDims(
		gocca.OCCADim{X: uint64(global / local), Y: 1, Z: 1},
		gocca.OCCADim{X: uint64(local), Y: 1, Z: 1},
	)
	k.kernel.RunFromArgs()
	return nil
}

// GroupSize is the largest power of two up to 256 dividing global
func GroupSize(global int) int {
	local := maxGroup
	for local > 1 && global%local != 0 {
		local /= 2
	}
	return local
}
