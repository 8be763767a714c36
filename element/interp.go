package element

import (
	"fmt"
	"sync"
)

// Storage is host-visible element storage of a buffer argument
type Storage interface {
	Len() int
	Load(i int) float64
	Store(i int, v float64)
}

// Execute interprets p over global work items. args follow p.Params: a
// Storage for every buffer and a Go scalar for every variable. local > 0 runs
// work groups of local items concurrently so barriers and __local arrays behave
// as on a device.
func Execute(p *Program, args []interface{}, global, local int) error {
	if len(args) != len(p.Params) {
		return fmt.Errorf("execute %s: %d arguments for %d parameters", p.Name, len(args), len(p.Params))
	}
	m := &machine{p: p, width: p.VectorWidth, values: make(map[string]interface{})}
	if m.width < 1 {
		m.width = 1
	}
	for i, e := range p.Params {
		name := p.Names[e.h]
		switch e.Kind() {
		case KindBuffer:
			s, ok := args[i].(Storage)
			if !ok {
				return fmt.Errorf("execute %s: argument %d (%s) is %T, not storage", p.Name, i, name, args[i])
			}
			m.values[name] = s
		default:
			v, ok := ToFloat64(args[i])
			if !ok {
				return fmt.Errorf("execute %s: argument %d (%s) is %T, not a scalar", p.Name, i, name, args[i])
			}
			m.values[name] = v
		}
	}
	if len(p.Statements) == 0 {
		return nil
	}
	m.a = p.Statements[0].arena
	if local <= 0 || !p.Local {
		for id := 0; id < global; id++ {
			it := m.item(id, 0, nil, nil)
			if err := it.run(); err != nil {
				return err
			}
		}
		return nil
	}
	if global%local != 0 {
		return fmt.Errorf("execute %s: global size %d is not a multiple of the group size %d", p.Name, global, local)
	}
	for g := 0; g < global/local; g++ {
		if err := m.group(g, local); err != nil {
			return err
		}
	}
	return nil
}

type machine struct {
	p      *Program
	a      *Arena
	width  int
	values map[string]interface{}
}

func (m *machine) group(g, local int) error {
	shared := make(map[Handle][]float64)
	for _, e := range m.p.Locals {
		if e.Space() == Local {
			shared[e.h] = make([]float64, e.Length())
		}
	}
	bar := newBarrier(local)
	errs := make([]error, local)
	var wg sync.WaitGroup
	for id := 0; id < local; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			defer bar.leave()
			errs[id] = m.item(id, g, shared, bar).run()
		}(id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) item(id, group int, shared map[Handle][]float64, bar *barrier) *item {
	index := id
	if m.width > 1 && m.p.Unaligned {
		index = id * m.width
	}
	return &item{
		m:       m,
		index:   index,
		group:   group,
		private: make(map[Handle][]float64),
		loops:   make(map[Handle]float64),
		shared:  shared,
		bar:     bar,
	}
}

type item struct {
	m       *machine
	index   int
	group   int
	private map[Handle][]float64
	loops   map[Handle]float64
	shared  map[Handle][]float64
	bar     *barrier
}

type flow int

const (
	next flow = iota
	stop
)

func (it *item) run() error {
	_, err := it.block(handles(it.m.p.Statements), it.index)
	return err
}

func (it *item) block(hs []Handle, index int) (flow, error) {
	for _, h := range hs {
		f, err := it.exec(h, index)
		if err != nil || f == stop {
			return f, err
		}
	}
	return next, nil
}

func (it *item) exec(h Handle, index int) (flow, error) {
	a := it.m.a
	n := a.node(h)
	switch n.kind {
	case KindReturn:
		return stop, nil
	case KindBarrier:
		if it.bar == nil {
			return stop, fmt.Errorf("barrier outside of a work-group kernel")
		}
		it.bar.wait()
		return next, nil
	case KindIf:
		c, err := it.eval(n.args[0], index)
		if err != nil {
			return stop, err
		}
		if len(c) != 1 {
			return stop, fmt.Errorf("if condition %s is not scalar", Element{arena: a, h: n.args[0]})
		}
		if c[0] != 0 {
			return it.block(n.body, index)
		}
		return it.block(n.other, index)
	case KindFor:
		v := n.args[0]
		start, err := it.scalar(n.args[1], index)
		if err != nil {
			return stop, err
		}
		it.loops[v] = start
		for {
			end, err := it.scalar(n.args[2], index)
			if err != nil {
				return stop, err
			}
			if it.loops[v] >= end {
				return next, nil
			}
			f, err := it.block(n.body, index)
			if err != nil || f == stop {
				return f, err
			}
			step, err := it.scalar(n.args[3], index)
			if err != nil {
				return stop, err
			}
			it.loops[v] += step
		}
	case KindSubView:
		idx, err := it.scalar(n.args[1], index)
		if err != nil {
			return stop, err
		}
		return it.exec(n.args[0], int(idx))
	case KindShifted:
		idx, err := it.shift(n, index)
		if err != nil {
			return stop, err
		}
		return it.exec(n.args[0], idx)
	case KindBinary:
		switch n.op {
		case "=", "+=", "-=", "*=", "/=":
			return next, it.assign(n, index)
		}
	}
	_, err := it.eval(h, index)
	return next, err
}

func (it *item) scalar(h Handle, index int) (float64, error) {
	v, err := it.eval(h, index)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("%s is not scalar", Element{arena: it.m.a, h: h})
	}
	return v[0], nil
}

// lanes broadcasts a scalar to the kernel vector width
func (it *item) lanes(v []float64) []float64 {
	if len(v) == it.m.width {
		return v
	}
	out := make([]float64, it.m.width)
	for i := range out {
		out[i] = v[0]
	}
	return out
}

// shift moves index by the element offset of a shifted view, in index units
func (it *item) shift(n *node, index int) (int, error) {
	units, ok := shiftUnits(int(n.value), it.m.width, it.m.p.Unaligned)
	if !ok {
		return 0, fmt.Errorf("offset %d is not a multiple of vector width %d", int(n.value), it.m.width)
	}
	return index + units, nil
}

func (it *item) address(index, lane int) int {
	if it.m.width > 1 && !it.m.p.Unaligned {
		return index*it.m.width + lane
	}
	return index + lane
}

func (it *item) storage(h Handle) (Storage, error) {
	name := it.m.p.Names[h]
	s, ok := it.m.values[name].(Storage)
	if !ok {
		return nil, fmt.Errorf("buffer %q is not bound", name)
	}
	return s, nil
}

func (it *item) array(h Handle) ([]float64, error) {
	n := it.m.a.node(h)
	if n.kind != KindLocal || n.length == 0 {
		return nil, fmt.Errorf("%s is not an array", Element{arena: it.m.a, h: h})
	}
	if n.space == Local {
		arr, ok := it.shared[h]
		if !ok {
			return nil, fmt.Errorf("__local array outside of a work-group kernel")
		}
		return arr, nil
	}
	arr, ok := it.private[h]
	if !ok {
		arr = make([]float64, n.length)
		it.private[h] = arr
	}
	return arr, nil
}

func (it *item) eval(h Handle, index int) ([]float64, error) {
	a := it.m.a
	n := a.node(h)
	switch n.kind {
	case KindConstant:
		return []float64{n.value}, nil

	case KindVariable:
		return []float64{it.m.values[it.m.p.Names[h]].(float64)}, nil

	case KindBuffer:
		s, err := it.storage(h)
		if err != nil {
			return nil, err
		}
		out := make([]float64, it.m.width)
		for lane := range out {
			addr := it.address(index, lane)
			if addr < 0 || addr >= s.Len() {
				return nil, fmt.Errorf("buffer %q read at %d out of range [0, %d)", it.m.p.Names[h], addr, s.Len())
			}
			out[lane] = s.Load(addr)
		}
		return out, nil

	case KindLocal:
		if n.loop {
			return []float64{it.loops[h]}, nil
		}
		if n.length > 0 {
			return nil, fmt.Errorf("array %s used as a value", Element{arena: a, h: h})
		}
		v, ok := it.private[h]
		if !ok {
			v = make([]float64, it.m.width)
			it.private[h] = v
		}
		return append([]float64(nil), v...), nil

	case KindIndex:
		if n.op == GroupIDName {
			return []float64{float64(it.group)}, nil
		}
		return []float64{float64(index)}, nil

	case KindSubView:
		idx, err := it.scalar(n.args[1], index)
		if err != nil {
			return nil, err
		}
		return it.eval(n.args[0], int(idx))

	case KindShifted:
		idx, err := it.shift(n, index)
		if err != nil {
			return nil, err
		}
		return it.eval(n.args[0], idx)

	case KindBinary:
		if n.op == "[]" {
			arr, err := it.array(n.args[0])
			if err != nil {
				return nil, err
			}
			i, err := it.scalar(n.args[1], index)
			if err != nil {
				return nil, err
			}
			if int(i) < 0 || int(i) >= len(arr) {
				return nil, fmt.Errorf("array index %d out of range [0, %d)", int(i), len(arr))
			}
			return []float64{arr[int(i)]}, nil
		}
		l, err := it.eval(n.args[0], index)
		if err != nil {
			return nil, err
		}
		r, err := it.eval(n.args[1], index)
		if err != nil {
			return nil, err
		}
		t := Promote(a.node(n.args[0]).typ, a.node(n.args[1]).typ)
		return it.zip(l, r, func(x, y float64, vector bool) (float64, error) {
			return applyBinary(n.op, t, x, y, vector)
		})

	case KindUnary:
		x, err := it.eval(n.args[0], index)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(x))
		for i := range x {
			if out[i], err = applyUnary(n.op, n.typ, x[i], len(x) > 1); err != nil {
				return nil, err
			}
		}
		return out, nil

	case KindCall:
		args := make([][]float64, len(n.args))
		width := 1
		for i, c := range n.args {
			v, err := it.eval(c, index)
			if err != nil {
				return nil, err
			}
			args[i] = v
			if len(v) > width {
				width = len(v)
			}
		}
		vectorCond := n.op == "select" && len(args[2]) > 1
		out := make([]float64, width)
		lane := make([]float64, len(args))
		for l := range out {
			for i, v := range args {
				lane[i] = v[0]
				if len(v) > 1 {
					lane[i] = v[l]
				}
			}
			x, err := applyCall(n.op, n.typ, lane, vectorCond)
			if err != nil {
				return nil, err
			}
			out[l] = x
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot evaluate %s", Element{arena: a, h: h})
}

func (it *item) zip(l, r []float64, f func(x, y float64, vector bool) (float64, error)) ([]float64, error) {
	width := len(l)
	if len(r) > width {
		width = len(r)
	}
	out := make([]float64, width)
	for i := range out {
		x, y := l[0], r[0]
		if len(l) > 1 {
			x = l[i]
		}
		if len(r) > 1 {
			y = r[i]
		}
		v, err := f(x, y, width > 1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (it *item) assign(n *node, index int) error {
	a := it.m.a
	lt := a.node(n.args[0]).typ
	rhs, err := it.eval(n.args[1], index)
	if err != nil {
		return err
	}
	combine := func(old, v []float64) ([]float64, error) {
		if n.op == "=" {
			out := make([]float64, len(v))
			for i := range v {
				out[i] = lt.Coerce(v[i])
			}
			return out, nil
		}
		return it.zip(old, v, func(x, y float64, _ bool) (float64, error) {
			return applyBinary(n.op[:1], lt, x, y, false)
		})
	}
	return it.store(n.args[0], index, lt, func(old []float64) ([]float64, error) {
		return combine(old, rhs)
	})
}

// store writes through views to the target node
func (it *item) store(h Handle, index int, t TypeID, f func(old []float64) ([]float64, error)) error {
	a := it.m.a
	n := a.node(h)
	switch n.kind {
	case KindSubView:
		idx, err := it.scalar(n.args[1], index)
		if err != nil {
			return err
		}
		return it.store(n.args[0], int(idx), t, f)
	case KindShifted:
		idx, err := it.shift(n, index)
		if err != nil {
			return err
		}
		return it.store(n.args[0], idx, t, f)
	case KindBuffer:
		old, err := it.eval(h, index)
		if err != nil {
			return err
		}
		v, err := f(old)
		if err != nil {
			return err
		}
		s, _ := it.storage(h)
		v = it.lanes(v)
		for lane, x := range v {
			s.Store(it.address(index, lane), x)
		}
		return nil
	case KindLocal:
		if n.loop || n.length > 0 {
			break
		}
		old, err := it.eval(h, index)
		if err != nil {
			return err
		}
		v, err := f(old)
		if err != nil {
			return err
		}
		it.private[h] = it.lanes(v)
		return nil
	case KindBinary:
		if n.op != "[]" {
			break
		}
		arr, err := it.array(n.args[0])
		if err != nil {
			return err
		}
		i, err := it.scalar(n.args[1], index)
		if err != nil {
			return err
		}
		if int(i) < 0 || int(i) >= len(arr) {
			return fmt.Errorf("array index %d out of range [0, %d)", int(i), len(arr))
		}
		v, err := f([]float64{arr[int(i)]})
		if err != nil {
			return err
		}
		if len(v) != 1 {
			return fmt.Errorf("vector value stored into array element %s", Element{arena: a, h: h})
		}
		arr[int(i)] = v[0]
		return nil
	}
	return fmt.Errorf("%s is not assignable", Element{arena: a, h: h})
}

// barrier is a cyclic work-group barrier; items that finish leave the party
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	gen     int
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) release() {
	b.gen++
	b.waiting = 0
	b.cond.Broadcast()
}

func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.gen
	b.waiting++
	if b.waiting >= b.parties {
		b.release()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}

func (b *barrier) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parties--
	if b.waiting > 0 && b.waiting >= b.parties {
		b.release()
	}
}
