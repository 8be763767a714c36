package runner

import (
	"bytes"
	"fmt"
	"log"
	"testing"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/runner/builder"
	"github.com/notargets/aclkernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHardware(t *testing.T, opts ...hardware.Option) *hardware.Hardware {
	t.Helper()
	hw, err := hardware.New(hardware.DefaultSimulated(), opts...)
	require.NoError(t, err)
	t.Cleanup(hw.Close)
	return hw
}

func cpuQueue(hw *hardware.Hardware) *hardware.Queue { return hw.Queues()[0] }
func gpuQueue(hw *hardware.Hardware) *hardware.Queue { return hw.Queues()[1] }

func ramp(n int, f func(i int) float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func mustBuffer[T element.Scalar](t *testing.T, q *hardware.Queue, src []T) *hardware.Buffer {
	t.Helper()
	b, err := NewBufferFrom(q, src)
	require.NoError(t, err)
	t.Cleanup(b.Free)
	return b
}

func readBack[T element.Scalar](t *testing.T, b *hardware.Buffer) []T {
	t.Helper()
	out, err := ReadBuffer[T](b)
	require.NoError(t, err)
	return out
}

func TestKernelLifecycle(t *testing.T) {
	hw := newTestHardware(t)
	q := cpuQueue(hw)
	const n = 10
	bufA := mustBuffer(t, q, ramp(n, func(i int) float32 { return float32(i) }))
	bufB := mustBuffer(t, q, ramp(n, func(i int) float32 { return 1 }))

	a := element.NewArena()
	k := NewKernel(q, builder.KernelBasic)
	assert.Equal(t, fmt.Sprintf("kernel_%d", k.ID()), k.Name())
	assert.True(t, k.IsDirty())

	k.AddStatements(element.AddAssign(a.Buffers("a", bufA), a.Buffers("b", bufB)))
	assert.Equal(t, n, k.Size())
	require.NoError(t, k.Setup())
	assert.False(t, k.IsDirty())
	assert.Equal(t, 1, k.VectorWidth())
	want := fmt.Sprintf("__kernel void %s(__global float *a0, __global float *b1)\n"+
		"{\n"+
		"\tint index = get_global_id(0);\n"+
		"\ta0[index] += b1[index];\n"+
		"}\n", k.Name())
	assert.Equal(t, want, k.Source())

	require.NoError(t, k.Compute())
	require.NoError(t, k.Compute())
	assert.Equal(t, ramp(n, func(i int) float32 { return float32(i + 2) }), readBack[float32](t, bufA))

	k.AddStatements(element.Assign(a.Buffers("b", bufB), a.Constant(element.Float32, 0)))
	assert.True(t, k.IsDirty())
	assert.Empty(t, k.Source())
	require.NoError(t, k.Compute())
	assert.Equal(t, ramp(n, func(i int) float32 { return float32(i + 3) }), readBack[float32](t, bufA))
	assert.Equal(t, make([]float32, n), readBack[float32](t, bufB))

	id := k.ID()
	k.Clear()
	assert.Equal(t, 0, k.Size())
	assert.Empty(t, k.Statements())
	assert.Equal(t, id, k.ID())
}

func TestKernelIDsIncrease(t *testing.T) {
	hw := newTestHardware(t)
	k1 := NewKernel(cpuQueue(hw), builder.KernelBasic)
	k2 := NewKernel(gpuQueue(hw), builder.KernelBasic)
	assert.Greater(t, k2.ID(), k1.ID())
	assert.NotEqual(t, k1.Name(), k2.Name())
	assert.Panics(t, func() { NewKernel(nil, builder.KernelBasic) })
}

func TestKernelSIMD(t *testing.T) {
	hw := newTestHardware(t)
	q := cpuQueue(hw)
	const n = 13
	in := mustBuffer(t, q, ramp(n, func(i int) float32 { return float32(i) }))
	out := mustBuffer(t, q, make([]float32, n))

	a := element.NewArena()
	k := NewKernel(q, builder.KernelSIMD)
	k.AddStatements(element.Assign(a.Buffers("out", out), element.Mul(a.Constant(element.Float32, 2), a.Buffers("in", in))))
	require.NoError(t, k.Setup())
	assert.Equal(t, 8, k.VectorWidth())
	assert.Contains(t, k.Source(), "__global float8 *")
	global, local := k.Dispatch()
	assert.Equal(t, 2, global)
	assert.Equal(t, 0, local)

	require.NoError(t, k.Compute())
	assert.Equal(t, ramp(n, func(i int) float32 { return float32(2 * i) }), readBack[float32](t, out))
}

func TestKernelUnalignedShift(t *testing.T) {
	hw := newTestHardware(t)
	q := cpuQueue(hw)
	const n = 20
	in := mustBuffer(t, q, ramp(n+1, func(i int) float32 { return float32(i) }))
	out := mustBuffer(t, q, make([]float32, n))

	a := element.NewArena()
	x := a.Buffers("in", in)
	k := NewKernel(q, builder.KernelSIMDUA)
	k.AddStatements(element.Assign(a.Buffers("out", out), element.Add(element.Shifted(x, 1), x)))
	k.SetSize(n)
	require.NoError(t, k.Compute())
	assert.Contains(t, k.Source(), "vstore8(")
	assert.Contains(t, k.Source(), "vload8(0, in1 + (index + 1))")
	assert.Equal(t, ramp(n, func(i int) float32 { return float32(2*i + 1) }), readBack[float32](t, out))

	// the same shift in an aligned SIMD kernel cannot be rendered
	k2 := NewKernel(q, builder.KernelSIMD)
	k2.AddStatements(element.Assign(a.Buffers("out", out), element.Shifted(x, 1)))
	err := k2.Setup()
	require.Error(t, err)
	assert.Equal(t, utils.ContractViolation, utils.KindOf(err))
}

func TestKernelSIMDExcerpt(t *testing.T) {
	hw := newTestHardware(t)
	q := cpuQueue(hw)
	in := mustBuffer(t, q, ramp(24, func(i int) float32 { return float32(i) }))
	out := mustBuffer(t, q, make([]float32, 16))

	a := element.NewArena()
	x, y := a.Buffers("in", in), a.Buffers("out", out)

	// offsets on a vector boundary move whole vectors
	k := NewKernel(q, builder.KernelSIMD)
	k.AddStatements(element.Assign(y, element.Excerpt(x, 8, 16)))
	require.NoError(t, k.Compute())
	assert.Equal(t, 16, k.Size())
	assert.Contains(t, k.Source(), "out0[index] = in1[(index + 1)];")
	assert.Equal(t, ramp(16, func(i int) float32 { return float32(i + 8) }), readBack[float32](t, out))

	tests := []struct {
		name string
		stmt element.Vector
	}{
		{"source", element.Assign(y, element.Excerpt(x, 3, 16))},
		{"target", element.Assign(element.Excerpt(y, 5, 8), element.Excerpt(x, 0, 8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKernel(q, builder.KernelSIMD)
			k.AddStatements(tt.stmt)
			err := k.Setup()
			require.Error(t, err)
			assert.Equal(t, utils.ContractViolation, utils.KindOf(err))
			assert.Empty(t, k.Source())
		})
	}

	// the same offset is fine once items step over single elements
	ua := NewKernel(q, builder.KernelSIMDUA)
	ua.AddStatements(element.Assign(y, element.Excerpt(x, 3, 16)))
	require.NoError(t, ua.Compute())
	assert.Equal(t, ramp(16, func(i int) float32 { return float32(i + 3) }), readBack[float32](t, out))
}

func TestKernelVariableRebinding(t *testing.T) {
	hw := newTestHardware(t)
	q := gpuQueue(hw)
	const n = 4
	buf := mustBuffer(t, q, []float64{1, 2, 3, 4})

	alpha := 2.0
	a := element.NewArena()
	k := NewKernel(q, builder.KernelBasic)
	k.AddStatements(element.MulAssign(a.Buffers("x", buf), element.NewVector(element.Variable(a, "alpha", &alpha))))
	require.NoError(t, k.Compute())
	assert.Equal(t, []float64{2, 4, 6, 8}, readBack[float64](t, buf))
	assert.Contains(t, k.Source(), "#pragma OPENCL EXTENSION cl_khr_fp64 : enable")

	alpha = 0.5
	require.NoError(t, k.Compute())
	assert.Equal(t, []float64{1, 2, 3, 4}, readBack[float64](t, buf))
	assert.Equal(t, n, k.Size())
}

func TestKernelSetupPreconditions(t *testing.T) {
	hw := newTestHardware(t)
	cpu, gpu := cpuQueue(hw), gpuQueue(hw)
	cpuBuf := mustBuffer(t, cpu, []float32{1, 2, 3})
	gpuBuf := mustBuffer(t, gpu, []float32{1, 2, 3})

	tests := []struct {
		name  string
		build func() *Kernel
	}{
		{"empty kernel", func() *Kernel {
			return NewKernel(cpu, builder.KernelBasic)
		}},
		{"work group without group count", func() *Kernel {
			a := element.NewArena()
			k := NewKernel(gpu, builder.KernelBasicLocal)
			k.AddStatements(element.Assign(a.Buffers("x", gpuBuf), a.Constant(element.Float32, 1)))
			k.SetSize(4)
			return k
		}},
		{"work group larger than the device allows", func() *Kernel {
			a := element.NewArena()
			k := NewKernel(gpu, builder.KernelBasicLocal)
			k.AddStatements(element.Assign(a.Buffers("x", gpuBuf), a.Constant(element.Float32, 1)))
			k.SetSize(gpu.MaxItemSize(0) + 1)
			k.SetGroupCount(1)
			return k
		}},
		{"buffer of another queue", func() *Kernel {
			a := element.NewArena()
			k := NewKernel(gpu, builder.KernelBasic)
			k.AddStatements(element.Assign(a.Buffers("x", cpuBuf), a.Constant(element.Float32, 1)))
			return k
		}},
		{"length mismatch", func() *Kernel {
			a := element.NewArena()
			k := NewKernel(cpu, builder.KernelBasic)
			k.AddStatements(
				element.Assign(a.Buffers("x", cpuBuf), a.Constant(element.Float32, 1)),
				element.Add(a.Buffers("x", cpuBuf, cpuBuf), a.Buffers("y", cpuBuf, cpuBuf, cpuBuf)),
			)
			return k
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Setup()
			require.Error(t, err)
			assert.Equal(t, utils.ContractViolation, utils.KindOf(err), err.Error())
		})
	}
}

func TestKernelWithoutDoublePrecision(t *testing.T) {
	info := hardware.GPUProfile()
	info.Extensions = ""
	hw, err := hardware.New(hardware.NewSimulated(hardware.SimulatedPlatform{Name: "P", Devices: []hardware.DeviceInfo{info}}))
	require.NoError(t, err)
	defer hw.Close()
	q := hw.DefaultQueue()
	buf := mustBuffer(t, q, []float64{1, 2})

	a := element.NewArena()
	k := NewKernel(q, builder.KernelBasic)
	k.AddStatements(element.Assign(a.Buffers("x", buf), a.Constant(element.Float64, 1)))
	err = k.Setup()
	require.Error(t, err)
	assert.Equal(t, utils.ContractViolation, utils.KindOf(err))
}

func TestBuildFailureDiagnostics(t *testing.T) {
	var logBuf bytes.Buffer
	drv := hardware.DefaultSimulated()
	drv.BuildFailure = func(req hardware.BuildRequest) (string, bool) {
		return "<kernel>:3:2: error: use of undeclared identifier", true
	}
	hw, err := hardware.New(drv, hardware.WithLogger(log.New(&logBuf, "", 0)))
	require.NoError(t, err)
	defer hw.Close()
	q := hw.DefaultQueue()
	buf := mustBuffer(t, q, []int32{1, 2, 3})

	a := element.NewArena()
	k := NewKernel(q, builder.KernelBasic)
	k.AddStatements(element.AddAssign(a.Buffers("x", buf), a.Constant(element.INT32, 1)))
	err = k.Compute()
	require.Error(t, err)
	assert.Equal(t, utils.DriverFailure, utils.KindOf(err))
	assert.Equal(t, hardware.BuildProgramFailure, hardware.StatusOf(err))
	e, ok := utils.AsError(err)
	require.True(t, ok)
	assert.Contains(t, e.Source, "__kernel void "+k.Name())

	out := logBuf.String()
	assert.Contains(t, out, "use of undeclared identifier")
	assert.Contains(t, out, "__kernel void "+k.Name())
	assert.True(t, k.IsDirty())
}

func TestDefaultQueueFallback(t *testing.T) {
	var logBuf bytes.Buffer
	hw := newTestHardware(t, hardware.WithLogger(log.New(&logBuf, "", 0)))
	q := hw.SetDefaultQueue("NoVendor", "NoDevice")
	require.Equal(t, hw.Queues()[0], q)
	assert.Contains(t, logBuf.String(), "WARNING:")

	buf := mustBuffer(t, q, []uint32{1, 2, 3})
	a := element.NewArena()
	k := NewKernel(hw.DefaultQueue(), builder.KernelBasic)
	k.AddStatements(element.MulAssign(a.Buffers("x", buf), a.Constant(element.UINT32, 3)))
	require.NoError(t, k.Compute())
	assert.Equal(t, []uint32{3, 6, 9}, readBack[uint32](t, buf))
}
