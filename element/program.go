package element

import (
	"fmt"
	"regexp"
)

// Program is the structured form of one kernel: its statements plus the
// parameters and scratch declarations they reference.
type Program struct {
	Name        string
	Statements  []Element
	Params      []Element
	Locals      []Element
	Names       map[Handle]string
	VectorWidth int
	Unaligned   bool
	Local       bool
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// NewProgram collects parameters and declarations from stmts in first-seen
// order. Buffer parameters are unique per Memory, variables per host pointer.
func NewProgram(name string, stmts []Element) (*Program, error) {
	p := &Program{
		Name:        name,
		Names:       make(map[Handle]string),
		VectorWidth: 1,
	}
	var a *Arena
	for _, s := range stmts {
		if !s.IsValid() {
			return nil, fmt.Errorf("NewProgram %s: invalid statement", name)
		}
		if a == nil {
			a = s.arena
		} else if s.arena != a {
			return nil, fmt.Errorf("NewProgram %s: statements belong to different arenas", name)
		}
	}
	p.Statements = stmts
	if a == nil {
		return p, nil
	}
	seen := make(map[Handle]bool)
	params := make(map[interface{}]string)
	loops := 0
	var visit func(h Handle)
	visit = func(h Handle) {
		if h == 0 || seen[h] {
			return
		}
		seen[h] = true
		n := a.node(h)
		e := Element{arena: a, h: h}
		switch n.kind {
		case KindBuffer, KindVariable:
			key := e.ParamKey()
			if existing, ok := params[key]; ok {
				p.Names[h] = existing
				break
			}
			pname := paramName(n.name, len(p.Params))
			params[key] = pname
			p.Names[h] = pname
			p.Params = append(p.Params, e)
		case KindLocal:
			if n.loop {
				p.Names[h] = fmt.Sprintf("i%d", loops)
				loops++
				break
			}
			prefix := "p"
			if n.space == Local {
				prefix = "l"
			}
			p.Names[h] = fmt.Sprintf("%s%d", prefix, len(p.Locals))
			p.Locals = append(p.Locals, e)
		}
		for _, c := range n.children() {
			visit(c)
		}
	}
	for _, s := range stmts {
		visit(s.h)
	}
	return p, nil
}

func paramName(hint string, i int) string {
	if identifier.MatchString(hint) {
		return fmt.Sprintf("%s%d", hint, i)
	}
	return fmt.Sprintf("arg%d", i)
}

// Context returns the render context of the program
func (p *Program) Context() RenderContext {
	return RenderContext{VectorWidth: p.VectorWidth, Unaligned: p.Unaligned, Names: p.Names}
}

// Types lists the distinct kinds of parameters and declarations
func (p *Program) Types() []TypeID {
	var out []TypeID
	seen := make(map[TypeID]bool)
	for _, list := range [][]Element{p.Params, p.Locals} {
		for _, e := range list {
			if t := e.Type(); !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// UsesType reports whether any node reachable from the statements has kind t
func (p *Program) UsesType(t TypeID) bool {
	if len(p.Statements) == 0 {
		return false
	}
	a := p.Statements[0].arena
	seen := make(map[Handle]bool)
	var walk func(h Handle) bool
	walk = func(h Handle) bool {
		if h == 0 || seen[h] {
			return false
		}
		seen[h] = true
		n := a.node(h)
		if n.typ == t {
			return true
		}
		for _, c := range n.children() {
			if walk(c) {
				return true
			}
		}
		return false
	}
	for _, s := range p.Statements {
		if walk(s.h) {
			return true
		}
	}
	return false
}

// LocalMemBytes is the work-group shared memory the declarations reserve
func (p *Program) LocalMemBytes() int {
	total := 0
	for _, e := range p.Locals {
		if e.Space() == Local {
			total += e.Length() * e.Type().Size()
		}
	}
	return total
}

// PrivateMemBytes is the per-item scratch memory the declarations reserve
func (p *Program) PrivateMemBytes() int {
	total := 0
	for _, e := range p.Locals {
		if e.Space() != Private {
			continue
		}
		n := e.Length()
		if n == 0 {
			n = p.VectorWidth
		}
		total += n * e.Type().Size()
	}
	return total
}
