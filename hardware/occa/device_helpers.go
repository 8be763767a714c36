package occa

import (
	"fmt"

	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/utils"
)

// CreateTestHardware opens every OpenCL device OCCA reaches, falling back to
// the simulated CPU and GPU when there is none
func CreateTestHardware(opts ...hardware.Option) *hardware.Hardware {
	hw, err := hardware.New(New(), opts...)
	if err == nil {
		fmt.Printf("Created OpenCL hardware with %d queues\n", len(hw.Queues()))
		return hw
	}
	utils.Warnf("%v", utils.Fallback("CreateTestHardware", "OpenCL unavailable, using the simulated driver: %v", err))

	hw, err = hardware.New(hardware.DefaultSimulated(), opts...)
	if err != nil {
		// Should not reach here
		panic(err)
	}
	fmt.Printf("Created simulated hardware with %d queues\n", len(hw.Queues()))
	return hw
}
