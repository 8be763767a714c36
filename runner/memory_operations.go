package runner

import (
	"unsafe"

	"github.com/notargets/aclkernel/element"
	"github.com/notargets/aclkernel/hardware"
	"github.com/notargets/aclkernel/utils"
	"github.com/pkg/errors"
)

func checkType[T element.Scalar](op string, b *hardware.Buffer) error {
	if b == nil {
		return utils.Contract(op, "nil buffer")
	}
	if t := element.TypeOf[T](); t != b.Type() {
		return utils.Contract(op, "host type %s does not match buffer type %s", t, b.Type())
	}
	return nil
}

// CopyToDevice writes src into b, resizing b to len(src) first when the lengths differ
func CopyToDevice[T element.Scalar](b *hardware.Buffer, src []T) error {
	const op = "CopyToDevice"
	if err := checkType[T](op, b); err != nil {
		return err
	}
	if len(src) != b.Len() {
		if err := b.Resize(len(src)); err != nil {
			return errors.Wrapf(err, "resizing buffer to %d", len(src))
		}
	}
	if len(src) == 0 {
		return nil
	}
	return b.Write(unsafe.Pointer(&src[0]), len(src))
}

// CopyFromDevice reads b into dst; the lengths must match
func CopyFromDevice[T element.Scalar](b *hardware.Buffer, dst []T) error {
	const op = "CopyFromDevice"
	if err := checkType[T](op, b); err != nil {
		return err
	}
	if len(dst) != b.Len() {
		return utils.Contract(op, "host length %d does not match buffer length %d", len(dst), b.Len())
	}
	if len(dst) == 0 {
		return nil
	}
	return b.Read(unsafe.Pointer(&dst[0]), len(dst))
}

// NewBufferFrom allocates a buffer on q holding a copy of src
func NewBufferFrom[T element.Scalar](q *hardware.Queue, src []T) (*hardware.Buffer, error) {
	b, err := hardware.NewBuffer(q, element.TypeOf[T](), len(src))
	if err != nil {
		return nil, err
	}
	if err := CopyToDevice(b, src); err != nil {
		b.Free()
		return nil, err
	}
	return b, nil
}

// ReadBuffer returns a host copy of b
func ReadBuffer[T element.Scalar](b *hardware.Buffer) ([]T, error) {
	if err := checkType[T]("ReadBuffer", b); err != nil {
		return nil, err
	}
	out := make([]T, b.Len())
	if err := CopyFromDevice(b, out); err != nil {
		return nil, err
	}
	return out, nil
}
