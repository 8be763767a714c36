package runner

import (
	"fmt"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/runner/builder"
	"github.com/notargets/aclkernel/utils"
	"github.com/pkg/errors"
)

// Kernel collects statements, generates their source on Setup and dispatches
// the built program on Compute. Adding statements marks it dirty; Setup
// moves it to built.
type Kernel struct {
	q      *hardware.Queue
	cfg    builder.KernelConfiguration
	id     int64
	name   string
	arena  *element.Arena
	stmts  []element.Element
	size   int
	groups int
	dirty  bool
	// rev counts changes to statements and size, so a merger can tell its inputs changed
	rev int
	// sources are the arenas statements were imported from; their
	// contract errors surface on Setup
	sources map[*element.Arena]bool

	program  *element.Program
	source   string
	compiled hardware.CompiledKernel
}

// NewKernel creates an empty kernel on queue q
func NewKernel(q *hardware.Queue, cfg builder.KernelConfiguration) *Kernel {
	if q == nil {
		panic("queue cannot be nil")
	}
	id := q.Hardware().NextKernelID()
	return &Kernel{
		q:       q,
		cfg:     cfg,
		id:      id,
		name:    fmt.Sprintf("kernel_%d", id),
		arena:   element.NewArena(),
		dirty:   true,
		sources: make(map[*element.Arena]bool),
	}
}

func (k *Kernel) ID() int64                                  { return k.id }
func (k *Kernel) Name() string                               { return k.name }
func (k *Kernel) Queue() *hardware.Queue                     { return k.q }
func (k *Kernel) Configuration() builder.KernelConfiguration { return k.cfg }
func (k *Kernel) IsDirty() bool                              { return k.dirty }
func (k *Kernel) GroupCount() int                            { return k.groups }

// Arena is the session statements are rendered from; building directly in it avoids an import
func (k *Kernel) Arena() *element.Arena { return k.arena }

// Size is the element count of a kernel, the items per work group of a work-group kernel
func (k *Kernel) Size() int { return k.size }

// Statements returns the statements in the kernel arena
func (k *Kernel) Statements() []element.Element {
	out := make([]element.Element, len(k.stmts))
	copy(out, k.stmts)
	return out
}

// Program is the structured form built by the last Setup
func (k *Kernel) Program() *element.Program { return k.program }

// Source is the text of the built kernel, empty while the kernel is dirty
func (k *Kernel) Source() string {
	if k.dirty {
		return ""
	}
	return k.source
}

// VectorWidth is the SIMD width of the last Setup, or the width Setup would pick
func (k *Kernel) VectorWidth() int {
	if k.program != nil && !k.dirty {
		return k.program.VectorWidth
	}
	b := builder.NewBuilder(k.cfg, k.q)
	p, err := element.NewProgram(k.name, k.stmts)
	if err != nil {
		return 1
	}
	return b.VectorWidth(p)
}

// AddStatement appends statements, importing elements of other arenas.
// Kernels other than work-group kernels grow to the largest element size.
func (k *Kernel) AddStatement(stmts ...element.Element) {
	for _, s := range stmts {
		if a := s.Arena(); a != nil && a != k.arena {
			k.sources[a] = true
		}
		if !s.IsValid() {
			continue
		}
		s = k.arena.Import(s)
		k.stmts = append(k.stmts, s)
		k.rev++
		if !k.cfg.Local && s.Size() > k.size {
			k.size = s.Size()
		}
		k.dirty = true
	}
}

// AddStatements appends every component of every vector
func (k *Kernel) AddStatements(vs ...element.Vector) {
	for _, v := range vs {
		if a := v.Arena(); a != nil && a != k.arena {
			k.sources[a] = true
		}
		k.AddStatement(v...)
	}
}

// SetSize sets the element count, or the work-group size of a work-group kernel
func (k *Kernel) SetSize(n int) {
	if n != k.size {
		k.size = n
		k.rev++
	}
}

// SetGroupCount sets the number of work groups of a work-group kernel
func (k *Kernel) SetGroupCount(n int) {
	k.groups = n
}

// Clear drops all statements and the built program; the kernel keeps its ID and queue
func (k *Kernel) Clear() {
	k.free()
	k.arena = element.NewArena()
	k.stmts = nil
	k.sources = make(map[*element.Arena]bool)
	k.size, k.groups = 0, 0
	k.program, k.source = nil, ""
	k.dirty = true
	k.rev++
}

// Free releases the built program
func (k *Kernel) Free() {
	k.free()
	k.dirty = true
}

func (k *Kernel) free() {
	if k.compiled != nil {
		k.compiled.Free()
		k.compiled = nil
	}
}

func (k *Kernel) arenaErr() error {
	if err := k.arena.Err(); err != nil {
		return err
	}
	for a := range k.sources {
		if err := a.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Setup checks the kernel, generates its source and builds it. A built kernel is left as is.
func (k *Kernel) Setup() error {
	if !k.dirty {
		return nil
	}
	const op = "Kernel.Setup"
	if k.size == 0 {
		return utils.Contract(op, "%s has size 0", k.name)
	}
	if k.cfg.Local {
		if limit := k.q.MaxItemSize(0); k.size > limit {
			return utils.Contract(op, "%s work group of %d items exceeds the device limit %d", k.name, k.size, limit)
		}
		if k.groups == 0 {
			return utils.Contract(op, "%s is a work-group kernel without a group count", k.name)
		}
	}
	if err := k.arenaErr(); err != nil {
		return errors.Wrapf(err, "%s", k.name)
	}

	b := builder.NewBuilder(k.cfg, k.q)
	p, source, err := b.GenerateKernel(k.name, k.stmts)
	if err != nil {
		return errors.Wrapf(err, "generating %s", k.name)
	}
	for _, e := range p.Params {
		if mem := e.Memory(); mem != nil && mem.QueueName() != k.q.Name() {
			return utils.Contract(op, "%s: buffer %s belongs to queue %s, not %s",
				k.name, p.Names[e.Handle()], mem.QueueName(), k.q.Name())
		}
	}
	if p.UsesType(element.Float64) && !k.q.DoublePrecision() {
		return utils.Contract(op, "%s uses double precision, %s has no fp64 support", k.name, k.q.DeviceName())
	}

	k.free()
	compiled, err := k.q.Build(hardware.BuildRequest{Name: k.name, Source: source, Program: p})
	if err != nil {
		if e, ok := utils.AsError(err); ok && (e.BuildLog != "" || e.Source != "") {
			l := k.q.Hardware().Logger()
			l.Printf("build of %s failed on %s\n", k.name, k.q.DeviceName())
			l.Printf("build log:\n%s\n", e.BuildLog)
			l.Printf("source:\n%s", e.Source)
		}
		return errors.Wrapf(err, "building %s", k.name)
	}
	k.program, k.source, k.compiled = p, source, compiled
	k.dirty = false
	return nil
}
