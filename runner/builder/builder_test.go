package builder

import (
	"strings"
	"testing"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCaps struct {
	widths     map[element.TypeID]int
	extensions string
}

func (c testCaps) NativeVectorWidths() map[element.TypeID]int { return c.widths }
func (c testCaps) ExtensionAvailable(ext string) bool         { return strings.Contains(c.extensions, ext) }

var cpuCaps = testCaps{
	widths: map[element.TypeID]int{
		element.INT32: 4, element.UINT32: 4, element.Float32: 8, element.Float64: 4, element.INT64: 4,
	},
	extensions: "cl_khr_global_int32_base_atomics cl_khr_fp64",
}

// testMem satisfies element.Memory for source generation
type testMem struct {
	t element.TypeID
	n int
}

func (m *testMem) Type() element.TypeID { return m.t }
func (m *testMem) Len() int             { return m.n }
func (m *testMem) QueueName() string    { return "test" }
func (m *testMem) Arg() interface{}     { return m }

func TestDetectVectorWidth(t *testing.T) {
	tests := []struct {
		name       string
		widths     map[element.TypeID]int
		referenced []element.TypeID
		want       int
	}{
		{"single only", cpuCaps.widths, []element.TypeID{element.Float32}, 8},
		{"single and double", cpuCaps.widths, []element.TypeID{element.Float32, element.Float64}, 4},
		{"nothing referenced", cpuCaps.widths, nil, 8},
		{
			"double width zero",
			map[element.TypeID]int{element.INT32: 4, element.UINT32: 4, element.Float32: 4, element.INT64: 2},
			[]element.TypeID{element.Float32, element.Float64},
			1,
		},
		{
			"double width zero, single only",
			map[element.TypeID]int{element.INT32: 1, element.UINT32: 1, element.Float32: 1, element.INT64: 1},
			[]element.TypeID{element.Float32},
			1,
		},
		{"empty table", map[element.TypeID]int{}, []element.TypeID{element.Float32}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectVectorWidth(tt.widths, tt.referenced))
		})
	}
}

func TestGenerateKernel(t *testing.T) {
	ar := element.NewArena()
	a := element.Vector{ar.Buffer(&testMem{element.Float32, 16}, "a")}
	b := element.Vector{ar.Buffer(&testMem{element.Float32, 16}, "b")}
	scale := float32(2)
	s := element.Vector{element.Variable(ar, "s", &scale)}
	stmts := element.Assign(a, element.Add(a, element.Mul(s, b)))
	require.NoError(t, ar.Err())

	t.Run("basic", func(t *testing.T) {
		kb := NewBuilder(KernelBasic, cpuCaps)
		p, src, err := kb.GenerateKernel("kernel_1", stmts)
		require.NoError(t, err)
		assert.Equal(t, 1, p.VectorWidth)
		want := "__kernel void kernel_1(__global float *a0, float s1, __global float *b2)\n" +
			"{\n" +
			"\tint index = get_global_id(0);\n" +
			"\ta0[index] = (a0[index] + (s1 * b2[index]));\n" +
			"}\n"
		assert.Equal(t, want, src)

		info := kb.GetKernelSignatureInfo(p)
		require.Len(t, info, 3)
		assert.Equal(t, "__global float *", info[0].Type)
		assert.Equal(t, "a0", info[0].Name)
		assert.Equal(t, "__global float *a0", info[0].Decl)
		assert.Equal(t, "buffer", info[0].Category)
		assert.Equal(t, "float", info[1].Type)
		assert.Equal(t, "float s1", info[1].Decl)
		assert.Equal(t, "scalar", info[1].Category)
	})

	t.Run("auto SIMD", func(t *testing.T) {
		kb := NewBuilder(KernelSIMD, cpuCaps)
		p, src, err := kb.GenerateKernel("kernel_2", stmts)
		require.NoError(t, err)
		assert.Equal(t, 8, p.VectorWidth)
		assert.Contains(t, src, "__global float8 *a0")
		assert.Contains(t, src, "float s1")
		assert.Contains(t, src, "\tint index = get_global_id(0);\n")
	})

	t.Run("unaligned SIMD", func(t *testing.T) {
		kb := NewBuilder(KernelSIMDUA, cpuCaps)
		_, src, err := kb.GenerateKernel("kernel_3", stmts)
		require.NoError(t, err)
		assert.Contains(t, src, "__global float *a0")
		assert.Contains(t, src, "\tint index = get_global_id(0) * 8;\n")
		assert.Contains(t, src, "vstore8(")
	})
}

func TestGenerateLocalKernel(t *testing.T) {
	ar := element.NewArena()
	out := ar.Buffer(&testMem{element.Float64, 4}, "out")
	scratch := ar.LocalArray(element.Float64, 64)
	stmts := []element.Element{
		element.Binary("=", element.At(scratch, ar.Index()), ar.Const(1, element.Float64)),
		ar.Barrier(),
		element.Binary("=", element.At(out, ar.GroupID()), element.At(scratch, ar.Const(0, element.INT32))),
	}
	require.NoError(t, ar.Err())

	kb := NewBuilder(KernelConfiguration{VectorWidth: 4, Local: true}, cpuCaps)
	p, src, err := kb.GenerateKernel("kernel_4", stmts)
	require.NoError(t, err)
	assert.Equal(t, 1, p.VectorWidth)
	want := "#pragma OPENCL EXTENSION cl_khr_fp64 : enable\n" +
		"__kernel void kernel_4(__global double *out0)\n" +
		"{\n" +
		"\tint index = get_local_id(0);\n" +
		"\tint groupID = get_group_id(0);\n" +
		"\t__local double l0[64];\n" +
		"\tl0[index] = 1.0;\n" +
		"\tbarrier(CLK_LOCAL_MEM_FENCE);\n" +
		"\tout0[groupID] = l0[0];\n" +
		"}\n"
	assert.Equal(t, want, src)
}

func TestGenerateExtensions(t *testing.T) {
	ar := element.NewArena()
	d := element.Vector{ar.Buffer(&testMem{element.Float64, 8}, "d")}
	stmts := element.Assign(d, element.Sqrt(d))

	t.Run("vendor fp64", func(t *testing.T) {
		caps := testCaps{widths: cpuCaps.widths, extensions: "cl_amd_fp64 cl_khr_fp64"}
		_, src, err := NewBuilder(KernelBasic, caps).GenerateKernel("kernel_5", stmts)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(src, "#pragma OPENCL EXTENSION cl_amd_fp64 : enable\n"))
	})

	t.Run("no fp64", func(t *testing.T) {
		caps := testCaps{widths: cpuCaps.widths}
		_, _, err := NewBuilder(KernelBasic, caps).GenerateKernel("kernel_6", stmts)
		require.Error(t, err)
		assert.Equal(t, utils.ContractViolation, utils.KindOf(err))
	})

	t.Run("configured", func(t *testing.T) {
		cfg := KernelConfiguration{VectorWidth: 1, Extensions: []string{"cl_khr_global_int32_base_atomics"}}
		_, src, err := NewBuilder(cfg, cpuCaps).GenerateKernel("kernel_7", stmts)
		require.NoError(t, err)
		assert.Contains(t, src, "#pragma OPENCL EXTENSION cl_khr_fp64 : enable\n"+
			"#pragma OPENCL EXTENSION cl_khr_global_int32_base_atomics : enable\n__kernel")
	})

	t.Run("single precision", func(t *testing.T) {
		f := element.Vector{ar.Buffer(&testMem{element.Float32, 8}, "f")}
		_, src, err := NewBuilder(KernelBasic, testCaps{widths: cpuCaps.widths}).
			GenerateKernel("kernel_8", element.Assign(f, element.Abs(f)))
		require.NoError(t, err)
		assert.False(t, UsesDouble(src))
		assert.NotContains(t, src, "#pragma")
	})
}

func TestConfigurationCompatible(t *testing.T) {
	assert.True(t, KernelBasic.Compatible(KernelConfiguration{VectorWidth: 1}))
	assert.False(t, KernelBasic.Compatible(KernelBasicLocal))
	assert.False(t, KernelSIMD.Compatible(KernelSIMDUA))
	assert.False(t, KernelBasic.Compatible(KernelConfiguration{VectorWidth: 1, Extensions: []string{"x"}}))
}
