package element

import (
	"fmt"

	"github.com/notargets/aclkernel/utils"
)

// Kind is the closed set of expression node kinds
type Kind uint8

const (
	KindInvalid Kind = iota
	KindConstant
	KindVariable
	KindBuffer
	KindLocal
	KindIndex
	KindSubView
	KindShifted
	KindIf
	KindFor
	KindReturn
	KindBarrier
	KindBinary
	KindUnary
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindVariable:
		return "variable"
	case KindBuffer:
		return "buffer"
	case KindLocal:
		return "local"
	case KindIndex:
		return "index"
	case KindSubView:
		return "subview"
	case KindShifted:
		return "shifted"
	case KindIf:
		return "if"
	case KindFor:
		return "for"
	case KindReturn:
		return "return"
	case KindBarrier:
		return "barrier"
	case KindBinary:
		return "binary"
	case KindUnary:
		return "unary"
	case KindCall:
		return "call"
	default:
		return "invalid"
	}
}

// AddressSpace of a scratch declaration
type AddressSpace uint8

const (
	Private AddressSpace = iota
	Local
)

// Builtin index names rendered by the kernel prologue
const (
	IndexName   = "index"
	GroupIDName = "groupID"
)

// Memory is device storage that a buffer node refers to
type Memory interface {
	Type() TypeID
	Len() int
	// QueueName identifies the command queue owning the storage
	QueueName() string
	// Arg is the value bound to the kernel parameter
	Arg() interface{}
}

// Handle addresses a node inside its Arena
type Handle int32

type node struct {
	kind  Kind
	typ   TypeID
	size  int
	op    string   // binary/unary operator, call name or builtin index name
	args  []Handle // operands; If: cond; For: var, start, end, step; views: base[, index]
	body  []Handle
	other []Handle
	value float64 // constant value; shifted offset
	name  string  // parameter/scratch name hint

	mem    Memory
	bind   func() interface{}
	ref    interface{} // host pointer identifying a variable
	space  AddressSpace
	length int // scratch array length, 0 for a single value
	loop   bool
}

// Arena owns the nodes of one kernel-build session
type Arena struct {
	nodes   []node
	err     error
	imports map[*Arena]map[Handle]Handle
}

// NewArena creates an empty session
func NewArena() *Arena {
	return &Arena{
		nodes:   []node{{kind: KindInvalid}},
		imports: make(map[*Arena]map[Handle]Handle),
	}
}

// Err returns the first contract violation recorded while building
func (a *Arena) Err() error {
	return a.err
}

// Len returns the number of nodes in the arena
func (a *Arena) Len() int {
	return len(a.nodes) - 1
}

func (a *Arena) fail(op, format string, args ...interface{}) {
	if a.err == nil {
		a.err = utils.Contract(op, format, args...)
	}
}

func (a *Arena) add(n node) Element {
	if n.size == 0 {
		n.size = 1
	}
	a.nodes = append(a.nodes, n)
	return Element{arena: a, h: Handle(len(a.nodes) - 1)}
}

func (a *Arena) node(h Handle) *node {
	return &a.nodes[h]
}

// Element is one node of the expression graph
type Element struct {
	arena *Arena
	h     Handle
}

// IsValid reports whether the element refers to a node
func (e Element) IsValid() bool {
	return e.arena != nil && e.h > 0 && int(e.h) < len(e.arena.nodes)
}

func (e Element) Arena() *Arena  { return e.arena }
func (e Element) Handle() Handle { return e.h }

func (e Element) n() *node {
	return e.arena.node(e.h)
}

func (e Element) Kind() Kind {
	if !e.IsValid() {
		return KindInvalid
	}
	return e.n().kind
}

func (e Element) Type() TypeID {
	if !e.IsValid() {
		return 0
	}
	return e.n().typ
}

// Size is the logical length: 1 for broadcastable scalars, N for N-entry fields
func (e Element) Size() int {
	if !e.IsValid() {
		return 0
	}
	return e.n().size
}

// Name returns the parameter or scratch name hint
func (e Element) Name() string {
	if !e.IsValid() {
		return ""
	}
	return e.n().name
}

// Memory returns the storage of a buffer node
func (e Element) Memory() Memory {
	if e.Kind() != KindBuffer {
		return nil
	}
	return e.n().mem
}

// IsParameter reports whether the element is bound as a kernel argument
func (e Element) IsParameter() bool {
	k := e.Kind()
	return k == KindBuffer || k == KindVariable
}

// IsDeclaration reports whether the element needs a scratch declaration
func (e Element) IsDeclaration() bool {
	return e.Kind() == KindLocal && !e.n().loop
}

// Space returns the address space of a scratch declaration
func (e Element) Space() AddressSpace {
	if e.Kind() != KindLocal {
		return Private
	}
	return e.n().space
}

// Length returns the array length of a scratch declaration, 0 for a single value
func (e Element) Length() int {
	if e.Kind() != KindLocal {
		return 0
	}
	return e.n().length
}

// ArgValue returns the value to bind for a parameter element
func (e Element) ArgValue() interface{} {
	switch e.Kind() {
	case KindBuffer:
		return e.n().mem.Arg()
	case KindVariable:
		return e.n().bind()
	default:
		return nil
	}
}

// ParamKey identifies the kernel argument a parameter element binds to
func (e Element) ParamKey() interface{} {
	switch e.Kind() {
	case KindBuffer:
		return e.n().mem
	case KindVariable:
		return e.n().ref
	default:
		return nil
	}
}

func (e Element) String() string {
	if !e.IsValid() {
		return "<invalid>"
	}
	n := e.n()
	return fmt.Sprintf("%s#%d(%s)", n.kind, e.h, n.typ)
}

// children lists every handle a node refers to, in evaluation order
func (n *node) children() []Handle {
	out := make([]Handle, 0, len(n.args)+len(n.body)+len(n.other))
	out = append(out, n.args...)
	out = append(out, n.body...)
	out = append(out, n.other...)
	return out
}

// same returns the common arena of the elements, recording a violation on a mix
func same(op string, es ...Element) *Arena {
	var a *Arena
	for _, e := range es {
		if !e.IsValid() {
			continue
		}
		if a == nil {
			a = e.arena
			continue
		}
		if e.arena != a {
			a.fail(op, "operands belong to different arenas")
			return nil
		}
	}
	return a
}

// Import copies the subgraph rooted at e into a, returning the local copy.
// Parameters keep their Memory and host binding, so copies bind the same arguments.
func (a *Arena) Import(e Element) Element {
	if !e.IsValid() || e.arena == a {
		return e
	}
	memo, ok := a.imports[e.arena]
	if !ok {
		memo = make(map[Handle]Handle)
		a.imports[e.arena] = memo
	}
	if e.arena.err != nil && a.err == nil {
		a.err = e.arena.err
	}
	return Element{arena: a, h: a.importNode(e.arena, e.h, memo)}
}

func (a *Arena) importNode(src *Arena, h Handle, memo map[Handle]Handle) Handle {
	if h == 0 {
		return 0
	}
	if local, ok := memo[h]; ok {
		return local
	}
	n := *src.node(h)
	n.args = a.importList(src, n.args, memo)
	n.body = a.importList(src, n.body, memo)
	n.other = a.importList(src, n.other, memo)
	a.nodes = append(a.nodes, n)
	local := Handle(len(a.nodes) - 1)
	memo[h] = local
	return local
}

func (a *Arena) importList(src *Arena, hs []Handle, memo map[Handle]Handle) []Handle {
	if hs == nil {
		return nil
	}
	out := make([]Handle, len(hs))
	for i, h := range hs {
		out[i] = a.importNode(src, h, memo)
	}
	return out
}

func handles(es []Element) []Handle {
	out := make([]Handle, 0, len(es))
	for _, e := range es {
		if e.IsValid() {
			out = append(out, e.h)
		}
	}
	return out
}

func maxSize(a *Arena, hs ...Handle) int {
	size := 1
	for _, h := range hs {
		if h == 0 {
			continue
		}
		if s := a.node(h).size; s > size {
			size = s
		}
	}
	return size
}
