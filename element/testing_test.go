package element

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// hostMem is host storage standing in for a device buffer
type hostMem struct {
	t    TypeID
	data []float64
}

func newHostMem(t TypeID, vals ...float64) *hostMem {
	m := &hostMem{t: t, data: make([]float64, len(vals))}
	for i, v := range vals {
		m.data[i] = t.Coerce(v)
	}
	return m
}

func zeros(t TypeID, n int) *hostMem {
	return newHostMem(t, make([]float64, n)...)
}

func (m *hostMem) Type() TypeID           { return m.t }
func (m *hostMem) Len() int               { return len(m.data) }
func (m *hostMem) QueueName() string      { return "host" }
func (m *hostMem) Arg() interface{}       { return m }
func (m *hostMem) Load(i int) float64     { return m.data[i] }
func (m *hostMem) Store(i int, v float64) { m.data[i] = m.t.Coerce(v) }

func runProgram(t *testing.T, p *Program, global, local int) {
	t.Helper()
	args := make([]interface{}, len(p.Params))
	for i, e := range p.Params {
		args[i] = e.ArgValue()
	}
	require.NoError(t, Execute(p, args, global, local))
}

func program(t *testing.T, stmts Vector) *Program {
	t.Helper()
	p, err := NewProgram("kernel_test", stmts)
	require.NoError(t, err)
	return p
}
