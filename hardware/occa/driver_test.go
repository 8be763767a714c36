package occa

import (
	"testing"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/stretchr/testify/assert"
)

func TestGroupSize(t *testing.T) {
	tests := []struct {
		global, want int
	}{
		{1, 1},
		{7, 1},
		{12, 4},
		{256, 256},
		{1024, 256},
		{100001, 1},
		{100000, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GroupSize(tt.global), "global %d", tt.global)
	}
}

func TestDefaultProfile(t *testing.T) {
	info := DefaultProfile(1, 2)
	assert.Equal(t, "OpenCL device 1.2", info.Name)
	assert.Equal(t, hardware.GPU, info.Type)
	for _, typ := range element.AllTypes {
		assert.Equal(t, 1, info.VectorWidths[typ], typ.String())
	}
	assert.Contains(t, info.Extensions, "cl_khr_fp64")
	assert.Equal(t, `{"mode": "OpenCL", "platform_id": 1, "device_id": 2}`, DeviceProps(1, 2))
}

func TestCreateTestHardware(t *testing.T) {
	hw := CreateTestHardware()
	defer hw.Close()
	if len(hw.Queues()) == 0 {
		t.Fatalf("no queues")
	}
	assert.NotEmpty(t, hw.Inventory())
}
