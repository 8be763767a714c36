package runner

import (
	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/partitions"
	"github.com/notargets/aclkernel/runner/builder"
	"github.com/notargets/aclkernel/utils"
	"github.com/pkg/errors"
)

// KernelMerger fuses kernels of one queue into a single launch. Every input
// keeps its own index range: input i sees index - offset_i.
type KernelMerger struct {
	q       *hardware.Queue
	kernels []*Kernel
	kernel  *Kernel
	offsets []int
	revs    []int
	dirty   bool
}

// NewKernelMerger creates an empty merger on queue q
func NewKernelMerger(q *hardware.Queue) *KernelMerger {
	if q == nil {
		panic("queue cannot be nil")
	}
	return &KernelMerger{q: q, dirty: true}
}

// AddKernel appends k as the next index range
func (m *KernelMerger) AddKernel(k *Kernel) error {
	if k == nil {
		return utils.Contract("KernelMerger.AddKernel", "nil kernel")
	}
	if k.Queue() != m.q {
		return utils.Contract("KernelMerger.AddKernel", "%s runs on %s, the merger on %s",
			k.Name(), k.Queue().Name(), m.q.Name())
	}
	m.kernels = append(m.kernels, k)
	m.dirty = true
	return nil
}

// AddMerger appends the inputs of another merger
func (m *KernelMerger) AddMerger(o *KernelMerger) error {
	for _, k := range o.kernels {
		if err := m.AddKernel(k); err != nil {
			return err
		}
	}
	return nil
}

// Kernels returns the inputs in order
func (m *KernelMerger) Kernels() []*Kernel {
	out := make([]*Kernel, len(m.kernels))
	copy(out, m.kernels)
	return out
}

// Kernel is the fused kernel of the last Setup
func (m *KernelMerger) Kernel() *Kernel { return m.kernel }

// Offsets are the start indices of the inputs in the fused index space
func (m *KernelMerger) Offsets() []int {
	out := make([]int, len(m.offsets))
	copy(out, m.offsets)
	return out
}

// Size is the total element count of the inputs
func (m *KernelMerger) Size() int {
	total := 0
	for _, k := range m.kernels {
		total += k.Size()
	}
	return total
}

// Clear drops all inputs and the fused kernel
func (m *KernelMerger) Clear() {
	if m.kernel != nil {
		m.kernel.Free()
	}
	m.kernels, m.kernel, m.offsets, m.revs = nil, nil, nil, nil
	m.dirty = true
}

// stale reports whether an input changed since the fused kernel was built
func (m *KernelMerger) stale() bool {
	if m.dirty || m.kernel == nil || len(m.revs) != len(m.kernels) {
		return true
	}
	for i, k := range m.kernels {
		if k.rev != m.revs[i] {
			return true
		}
	}
	return false
}

func (m *KernelMerger) vectorWidth(cfg builder.KernelConfiguration, stmts []element.Element) (int, error) {
	if cfg.VectorWidth > 0 {
		return cfg.VectorWidth, nil
	}
	p, err := element.NewProgram("merged", stmts)
	if err != nil {
		return 0, err
	}
	return builder.NewBuilder(cfg, m.q).VectorWidth(p), nil
}

// Setup fuses the inputs into one kernel: a cascade of index range tests
// with each input's statements rendered at index - offset
func (m *KernelMerger) Setup() error {
	const op = "KernelMerger.Setup"
	if !m.stale() {
		return nil
	}
	if len(m.kernels) == 0 {
		return utils.Contract(op, "no kernels to merge")
	}
	cfg := m.kernels[0].Configuration()
	if cfg.Local {
		return utils.Contract(op, "work-group kernels cannot be merged")
	}
	for _, k := range m.kernels[1:] {
		if !cfg.Compatible(k.Configuration()) {
			return utils.Contract(op, "%s (%s) is not compatible with %s (%s)",
				k.Name(), k.Configuration(), m.kernels[0].Name(), cfg)
		}
	}

	if m.kernel != nil {
		m.kernel.Free()
	}
	merged := NewKernel(m.q, cfg)
	a := merged.Arena()
	inputs := make([][]element.Element, len(m.kernels))
	var all []element.Element
	for i, k := range m.kernels {
		if err := k.arenaErr(); err != nil {
			return errors.Wrapf(err, "merging %s", k.Name())
		}
		for _, s := range k.stmts {
			s = a.Import(s)
			inputs[i] = append(inputs[i], s)
			all = append(all, s)
		}
	}
	width, err := m.vectorWidth(cfg, all)
	if err != nil {
		return utils.Contract(op, "%v", err)
	}
	// index units: one per item, or one per element when items step over vectors
	scale := 1
	if cfg.Unaligned && width > 1 {
		scale = width
	}

	m.offsets = make([]int, len(m.kernels))
	ends := make([]int, len(m.kernels))
	items := 0
	for i, k := range m.kernels {
		m.offsets[i] = items * scale
		items += partitions.ItemCount(k.Size(), width)
		ends[i] = items * scale
	}

	index := a.Index()
	view := func(i int) []element.Element {
		if m.offsets[i] == 0 {
			return inputs[i]
		}
		idx := element.Binary("-", index, a.Const(float64(m.offsets[i]), element.INT32))
		out := make([]element.Element, len(inputs[i]))
		for j, s := range inputs[i] {
			out[j] = element.SubElementOf(s, idx, m.kernels[i].Size())
		}
		return out
	}
	last := len(m.kernels) - 1
	body := view(last)
	for i := last - 1; i >= 0; i-- {
		cond := element.Binary("<", index, a.Const(float64(ends[i]), element.INT32))
		body = []element.Element{element.If(cond, view(i), body)}
	}

	cfg.VectorWidth = width
	merged.cfg = cfg
	merged.AddStatement(body...)
	merged.SetSize(items * width)
	if err := merged.Setup(); err != nil {
		return errors.Wrapf(err, "%s", op)
	}
	m.kernel = merged
	m.revs = make([]int, len(m.kernels))
	for i, k := range m.kernels {
		m.revs[i] = k.rev
	}
	m.dirty = false
	return nil
}

// Compute runs the fused kernel, setting it up first when inputs changed
func (m *KernelMerger) Compute() error {
	if err := m.Setup(); err != nil {
		return err
	}
	return m.kernel.Compute()
}
