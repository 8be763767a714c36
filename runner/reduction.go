package runner

import (
	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/partitions"
	"github.com/notargets/aclkernel/runner/builder"
	"github.com/notargets/aclkernel/utils"
	"github.com/pkg/errors"
)

// Reduction folds every entry of each component of a field with an
// associative operator. Each reduction unit walks one chunk of every component
// into private accumulators and stores them in a partial buffer laid out
// component-major; the host folds the partials that can hold data.
type Reduction[T element.Scalar] struct {
	q        *hardware.Queue
	op       Operator
	field    element.Vector
	t        element.TypeID
	strategy partitions.Strategy
	layout   partitions.Layout
	partials *hardware.Buffer
	kernel   *Kernel
}

// NewReduction prepares a reduction of every component of field on queue q,
// partitioned by the default strategy of the device type
func NewReduction[T element.Scalar](q *hardware.Queue, op Operator, field element.Vector) (*Reduction[T], error) {
	if q == nil {
		panic("queue cannot be nil")
	}
	if !op.Valid() {
		return nil, utils.Contract("NewReduction", "invalid operator %d", op)
	}
	if len(field) == 0 {
		return nil, utils.Contract("NewReduction", "empty field")
	}
	for c, e := range field {
		if !e.IsValid() {
			return nil, utils.Contract("NewReduction", "invalid field component %d", c)
		}
	}
	return &Reduction[T]{
		q:        q,
		op:       op,
		field:    append(element.Vector(nil), field...),
		t:        element.TypeOf[T](),
		strategy: partitions.StrategyFor(q.DeviceType()),
	}, nil
}

func (r *Reduction[T]) Operator() Operator            { return r.op }
func (r *Reduction[T]) Layout() partitions.Layout     { return r.layout }
func (r *Reduction[T]) Kernel() *Kernel               { return r.kernel }
func (r *Reduction[T]) Partials() *hardware.Buffer    { return r.partials }
func (r *Reduction[T]) Strategy() partitions.Strategy { return r.strategy }

// SetStrategy replaces the partition strategy for the next generated algorithm
func (r *Reduction[T]) SetStrategy(s partitions.Strategy) {
	if s != nil {
		r.strategy = s
	}
}

// GenerateAlg builds a fresh work-group kernel with one group per compute unit
func (r *Reduction[T]) GenerateAlg() (*Kernel, error) {
	if r.kernel != nil {
		r.kernel.Free()
	}
	k := NewKernel(r.q, builder.KernelBasicLocal)
	if err := r.generate(k, r.q.ComputeUnits()); err != nil {
		return nil, err
	}
	r.kernel = k
	return k, nil
}

// GenerateAlgInto appends the reduction to a work-group kernel the caller runs.
// The kernel's group count is kept when set.
func (r *Reduction[T]) GenerateAlgInto(k *Kernel) error {
	const op = "Reduction.GenerateAlgInto"
	if k == nil {
		return utils.Contract(op, "nil kernel")
	}
	if !k.Configuration().Local {
		return utils.Contract(op, "%s is not a work-group kernel", k.Name())
	}
	if k.Queue() != r.q {
		return utils.Contract(op, "%s runs on %s, the reduction on %s", k.Name(), k.Queue().Name(), r.q.Name())
	}
	groups := k.GroupCount()
	if groups == 0 {
		groups = r.q.ComputeUnits()
	}
	return r.generate(k, groups)
}

func (r *Reduction[T]) generate(k *Kernel, groups int) error {
	if groups < 1 {
		groups = 1
	}
	r.layout = partitions.LayoutFor(r.strategy, r.field.Size(), groups)
	units, chunk := r.layout.UnitsPerGroup, r.layout.Chunk
	if limit := r.q.MaxItemSize(0); units > limit {
		return utils.Contract("Reduction.generate", "%d units per group exceed the work group limit %d", units, limit)
	}

	total := len(r.field) * r.layout.Units
	if r.partials == nil {
		b, err := hardware.NewBuffer(r.q, r.t, total)
		if err != nil {
			return errors.Wrap(err, "allocating reduction partials")
		}
		r.partials = b
	} else if err := r.partials.Resize(total); err != nil {
		return errors.Wrap(err, "resizing reduction partials")
	}

	a := k.Arena()
	i32 := func(v int) element.Element { return a.Const(float64(v), element.INT32) }
	partial := a.Buffer(r.partials, "partial")
	index := a.Index()

	// serial strategies run one unit per group on its first item
	serial := r.strategy.Serial() && units == 1
	unit := element.Binary("+", element.Binary("*", a.GroupID(), i32(units)), index)
	if serial {
		unit = a.GroupID()
	}
	start := element.Binary("*", unit, i32(chunk))
	var body []element.Element
	for c, f := range r.field {
		field := a.Import(f)
		acc := a.Private(r.t)
		end := element.Min(
			element.NewVector(element.Binary("+", start, i32(chunk))),
			element.NewVector(i32(field.Size())),
		)[0]
		slot := unit
		if c > 0 {
			slot = element.Binary("+", unit, i32(c*r.layout.Units))
		}
		body = append(body,
			element.Binary("=", acc, a.Const(r.op.Identity(r.t), r.t)),
			element.For(start, end, i32(1), func(i element.Element) []element.Element {
				return []element.Element{r.op.Statement(acc, element.SubElementOf(field, i, 1))}
			}),
			element.Binary("=", element.At(partial, slot), acc),
		)
	}

	switch {
	case !serial:
		k.AddStatement(element.If(element.Binary("<", index, i32(units)), body, nil))
	case k.Size() > 1:
		k.AddStatement(element.If(element.Binary("==", index, i32(0)), body, nil))
	default:
		k.AddStatement(body...)
	}
	if k.Size() < units {
		k.SetSize(units)
	}
	k.SetGroupCount(groups)
	return a.Err()
}

// Compute runs the generated kernel, generating it first, and folds one
// result per field component
func (r *Reduction[T]) Compute() ([]T, error) {
	if r.kernel == nil {
		if _, err := r.GenerateAlg(); err != nil {
			return nil, err
		}
	}
	if err := r.kernel.Compute(); err != nil {
		return nil, errors.Wrapf(err, "%s reduction", r.op)
	}
	return r.Result()
}

// Result folds the partials written by the last run on the host, one value
// per field component
func (r *Reduction[T]) Result() ([]T, error) {
	if r.partials == nil {
		return nil, utils.Contract("Reduction.Result", "no algorithm generated")
	}
	partials, err := ReadBuffer[T](r.partials)
	if err != nil {
		return nil, errors.Wrap(err, "reading reduction partials")
	}
	units := r.layout.Units
	folds := r.layout.Folds
	if folds > units {
		folds = units
	}
	out := make([]T, len(r.field))
	for c := range out {
		acc := IdentityOf[T](r.op)
		for _, x := range partials[c*units : c*units+folds] {
			acc = Apply(r.op, acc, x)
		}
		out[c] = acc
	}
	return out, nil
}
