package builder

import (
	"fmt"
	"strings"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/utils"
)

// KernelParameter describes one positional kernel argument
type KernelParameter struct {
	Type     string // "__global float *" for buffers, "float" for variables
	Name     string
	Decl     string
	Category string // "buffer", "scalar"
	Element  element.Element
}

// GetKernelSignatureInfo returns structured information about the parameters of p
func (kb *Builder) GetKernelSignatureInfo(p *element.Program) []KernelParameter {
	ctx := p.Context()
	params := make([]KernelParameter, 0, len(p.Params))
	for _, e := range p.Params {
		name := p.Names[e.Handle()]
		category := "scalar"
		if e.Kind() == element.KindBuffer {
			category = "buffer"
		}
		params = append(params, KernelParameter{
			Type:     element.ParameterType(e, ctx),
			Name:     name,
			Decl:     element.ParameterDeclaration(e, name, ctx),
			Category: category,
			Element:  e,
		})
	}
	return params
}

// GenerateKernelSignature generates the parameter list of p
func (kb *Builder) GenerateKernelSignature(p *element.Program) string {
	var sb strings.Builder
	for _, karg := range kb.GetKernelSignatureInfo(p) {
		sb.WriteString(karg.Decl + ", ")
	}
	return strings.TrimSuffix(sb.String(), ", ")
}

// GenerateKernelDeclaration generates the opening of the kernel function
func (kb *Builder) GenerateKernelDeclaration(p *element.Program) string {
	return fmt.Sprintf("__kernel void %s(%s)\n{\n", p.Name, kb.GenerateKernelSignature(p))
}

// GeneratePrologue declares the item index, and the group ID of work-group kernels
func (kb *Builder) GeneratePrologue(p *element.Program) string {
	if p.Local {
		return fmt.Sprintf("\tint %s = get_local_id(0);\n\tint %s = get_group_id(0);\n",
			element.IndexName, element.GroupIDName)
	}
	if p.VectorWidth > 1 && p.Unaligned {
		return fmt.Sprintf("\tint %s = get_global_id(0) * %d;\n", element.IndexName, p.VectorWidth)
	}
	return fmt.Sprintf("\tint %s = get_global_id(0);\n", element.IndexName)
}

// GenerateDeclarations declares the local and private scratch of p
func (kb *Builder) GenerateDeclarations(p *element.Program) string {
	var sb strings.Builder
	ctx := p.Context()
	for _, e := range p.Locals {
		sb.WriteString("\t" + element.Declaration(e, p.Names[e.Handle()], ctx) + ";\n")
	}
	return sb.String()
}

// GenerateKernel collects the program of stmts and renders its complete source
func (kb *Builder) GenerateKernel(name string, stmts []element.Element) (*element.Program, string, error) {
	p, err := element.NewProgram(name, stmts)
	if err != nil {
		return nil, "", utils.Contract("GenerateKernel", "%v", err)
	}
	p.Local = kb.Config.Local
	p.Unaligned = kb.Config.Unaligned
	p.VectorWidth = kb.VectorWidth(p)

	var sb strings.Builder
	sb.WriteString(kb.GenerateKernelDeclaration(p))
	sb.WriteString(kb.GeneratePrologue(p))
	sb.WriteString(kb.GenerateDeclarations(p))
	ctx := p.Context()
	for _, s := range p.Statements {
		text, err := element.RenderStatement(s, ctx, 1)
		if err != nil {
			return nil, "", utils.Contract("GenerateKernel", "%s: %v", name, err)
		}
		sb.WriteString("\t" + text + ";\n")
	}
	sb.WriteString("}\n")

	pragmas, err := kb.GenerateExtensions(sb.String())
	if err != nil {
		return nil, "", err
	}
	return p, pragmas + sb.String(), nil
}
