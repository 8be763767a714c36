package runner

import (
	"github.com/notargets/aclkernel/partitions"
	"github.com/pkg/errors"
)

// Dispatch returns the global and local item counts of the next Compute.
// Work-group kernels run GroupCount groups of Size items; other kernels run one
// item per vector of width VectorWidth, with local 0 left to the driver.
func (k *Kernel) Dispatch() (global, local int) {
	if k.cfg.Local {
		return k.groups * k.size, k.size
	}
	return partitions.ItemCount(k.size, k.VectorWidth()), 0
}

// Compute sets the kernel up when dirty, binds the current value of every
// argument, runs it and waits for the queue to drain
func (k *Kernel) Compute() error {
	if err := k.Setup(); err != nil {
		return err
	}
	p := k.program
	args := make([]interface{}, len(p.Params))
	for i, e := range p.Params {
		args[i] = e.ArgValue()
	}
	if err := k.compiled.SetArgs(args...); err != nil {
		return errors.Wrapf(err, "binding arguments of %s", k.name)
	}
	global, local := k.Dispatch()
	if err := k.compiled.Run(global, local); err != nil {
		return errors.Wrapf(err, "running %s over %d items", k.name, global)
	}
	if err := k.q.Finish(); err != nil {
		return errors.Wrapf(err, "finishing %s", k.name)
	}
	return nil
}

// LocalMemory is the local memory the built kernel uses, 0 before Setup
func (k *Kernel) LocalMemory() int64 {
	if k.compiled == nil {
		return 0
	}
	return k.q.KernelLocalMemory(k.compiled)
}

// PrivateMemory is the per-item private memory the built kernel uses, 0 before Setup
func (k *Kernel) PrivateMemory() int64 {
	if k.compiled == nil {
		return 0
	}
	return k.q.KernelPrivateMemory(k.compiled)
}
