package hardware

import (
	"fmt"

	"github.com/notargets/aclkernel/utils"
)

// Status mirrors the driver status enumeration
type Status int

const (
	Success               Status = 0
	DeviceNotFound        Status = -1
	DeviceNotAvailable    Status = -2
	MemObjectAllocFailure Status = -4
	OutOfResources        Status = -5
	OutOfHostMemory       Status = -6
	BuildProgramFailure   Status = -11
	InvalidValue          Status = -30
	InvalidPlatform       Status = -32
	InvalidDevice         Status = -33
	InvalidBuildOptions   Status = -43
	InvalidKernelName     Status = -46
	InvalidArgIndex       Status = -49
	InvalidArgValue       Status = -50
	InvalidKernelArgs     Status = -52
	InvalidWorkDimension  Status = -53
	InvalidWorkGroupSize  Status = -54
	InvalidGlobalWorkSize Status = -63
	InvalidOperation      Status = -59
	InvalidBufferSize     Status = -61
)

var statusNames = map[Status]string{
	Success:               "SUCCESS",
	DeviceNotFound:        "DEVICE_NOT_FOUND",
	DeviceNotAvailable:    "DEVICE_NOT_AVAILABLE",
	MemObjectAllocFailure: "MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:        "OUT_OF_RESOURCES",
	OutOfHostMemory:       "OUT_OF_HOST_MEMORY",
	BuildProgramFailure:   "BUILD_PROGRAM_FAILURE",
	InvalidValue:          "INVALID_VALUE",
	InvalidPlatform:       "INVALID_PLATFORM",
	InvalidDevice:         "INVALID_DEVICE",
	InvalidBuildOptions:   "INVALID_BUILD_OPTIONS",
	InvalidKernelName:     "INVALID_KERNEL_NAME",
	InvalidArgIndex:       "INVALID_ARG_INDEX",
	InvalidArgValue:       "INVALID_ARG_VALUE",
	InvalidKernelArgs:     "INVALID_KERNEL_ARGS",
	InvalidWorkDimension:  "INVALID_WORK_DIMENSION",
	InvalidWorkGroupSize:  "INVALID_WORK_GROUP_SIZE",
	InvalidGlobalWorkSize: "INVALID_GLOBAL_WORK_SIZE",
	InvalidOperation:      "INVALID_OPERATION",
	InvalidBufferSize:     "INVALID_BUFFER_SIZE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// Fail returns the DriverFailure of a non-success status at call site op
func Fail(op string, s Status, format string, args ...interface{}) error {
	return utils.Driver(op, int(s), "%s: %s", s, fmt.Sprintf(format, args...))
}

// StatusOf extracts the driver status carried by err, Success for nil
func StatusOf(err error) Status {
	return Status(utils.StatusOf(err))
}
