package dyncol

import (
	"bytes"
)

// container is implemented by *List and *Map. Nesting is tracked through
// parent links so that adopting a container into its own subtree, or into a
// second owner, can be rejected.
type container interface {
	parentContainer() container
	setParent(p container)
	isReleased() bool
	// releaseShallow frees this container's own values and appends nested
	// containers to stack for the caller to release.
	releaseShallow(stack []container) []container
	// fillFrom copies src's values into this empty container and appends the
	// nested containers still to be filled to stack.
	fillFrom(src container, stack []copyTask) []copyTask
}

type copyTask struct {
	src, dst container
}

// materialize applies the ownership protocol to v before it is stored in
// target: copy-mode and borrowed values are copied (deeply for containers),
// adopted and owned values are checked and taken as is. The result is not yet
// attached; see attach and discard.
func materialize(ctx *Context, target container, v Value) (Value, error) {
	out := v
	out.mode = modeOwned
	switch v.kind {
	case KindInvalid:
		return Value{}, ErrNoValue
	case KindString:
		if v.mode == modeCopy || v.mode == modeBorrowed {
			out.bytes = bytes.Clone(v.bytes)
		}
	case KindOpaque:
		if v.op == nil {
			return Value{}, ErrNoValue
		}
		switch v.mode {
		case modeAdopt:
			if v.op.refs > 0 {
				return Value{}, ErrAlreadyOwned
			}
		case modeOwned:
			// a popped handle can be stored once
			if v.op.loose == 0 {
				return Value{}, ErrAlreadyOwned
			}
			v.op.loose--
		default:
			out.op = copyOpaque(v.op)
		}
	case KindList:
		if v.list == nil {
			return Value{}, ErrNoValue
		}
		if v.list.released {
			return Value{}, ErrReleased
		}
		if v.mode == modeAdopt || v.mode == modeOwned {
			if err := checkAdoptable(v.list, target); err != nil {
				return Value{}, err
			}
		} else {
			out.list = deepCopy(ctx, v.list).(*List)
		}
	case KindMap:
		if v.m == nil {
			return Value{}, ErrNoValue
		}
		if v.m.released {
			return Value{}, ErrReleased
		}
		if v.mode == modeAdopt || v.mode == modeOwned {
			if err := checkAdoptable(v.m, target); err != nil {
				return Value{}, err
			}
		} else {
			out.m = deepCopy(ctx, v.m).(*Map)
		}
	}
	return out, nil
}

func checkAdoptable(c, target container) error {
	if c.parentContainer() != nil {
		return ErrAlreadyOwned
	}
	for p := target; p != nil; p = p.parentContainer() {
		if p == c {
			return ErrCycle
		}
	}
	return nil
}

// attach finalizes ownership of a materialized value stored in parent.
func attach(parent container, v Value) Value {
	switch v.kind {
	case KindOpaque:
		if v.op.refs == 0 {
			v.op.retain()
		}
	case KindList:
		v.list.setParent(parent)
	case KindMap:
		v.m.setParent(parent)
	}
	v.mode = modeOwned
	return v
}

// detach turns a stored value into one owned by the caller.
func detach(v Value) Value {
	switch v.kind {
	case KindOpaque:
		v.op.loose++
	case KindList:
		v.list.setParent(nil)
	case KindMap:
		v.m.setParent(nil)
	}
	v.mode = modeOwned
	return v
}

// discard undoes materialize when the insertion fails afterwards. Only fresh
// copies are released; adopted data stays with the caller.
func discard(orig, v Value) {
	switch orig.mode {
	case modeCopy, modeBorrowed:
		releaseStored(v)
	case modeOwned:
		if v.kind == KindOpaque {
			v.op.loose++
		}
	}
}

// releaseStored releases a value that is no longer referenced by its
// container.
func releaseStored(v Value) {
	var stack []container
	stack = releaseValue(v, stack)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = c.releaseShallow(stack)
	}
}

func releaseValue(v Value, stack []container) []container {
	switch v.kind {
	case KindOpaque:
		if v.op != nil {
			v.op.release()
		}
	case KindList:
		if v.list != nil {
			stack = append(stack, v.list)
		}
	case KindMap:
		if v.m != nil {
			stack = append(stack, v.m)
		}
	}
	return stack
}

// releaseTree frees root and everything nested in it, without recursion.
func releaseTree(root container) {
	stack := getContainerStack()
	stack = append(stack, root)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = c.releaseShallow(stack)
	}
	putContainerStack(stack)
}

// deepCopy returns an independent copy of src built with ctx, without
// recursion.
func deepCopy(ctx *Context, src container) container {
	var dst container
	switch s := src.(type) {
	case *List:
		dst = newListCap(ctx, len(s.items))
	case *Map:
		dst = newMapCap(ctx, len(s.slots))
	}
	stack := getCopyStack()
	stack = append(stack, copyTask{src, dst})
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = t.dst.fillFrom(t.src, stack)
	}
	putCopyStack(stack)
	return dst
}

// copyStored makes an owned copy of a stored value for the container parent.
// Nested containers come back empty, with a task to fill them.
func copyStored(ctx *Context, parent container, v Value) (Value, *copyTask) {
	var task *copyTask
	switch v.kind {
	case KindString:
		v.bytes = bytes.Clone(v.bytes)
	case KindOpaque:
		v.op = copyOpaque(v.op)
	case KindList:
		shell := newListCap(ctx, len(v.list.items))
		task = &copyTask{v.list, shell}
		v.list = shell
	case KindMap:
		shell := newMapCap(ctx, len(v.m.slots))
		task = &copyTask{v.m, shell}
		v.m = shell
	}
	return attach(parent, v), task
}

func copyOpaque(o *opaque) *opaque {
	switch p := o.payload.(type) {
	case []byte:
		return &opaque{payload: bytes.Clone(p), size: o.size}
	case Cloner:
		return &opaque{payload: p.Clone(), size: o.size, destroy: o.destroy}
	default:
		if o.refs == 0 {
			// never stored: the caller still owns it, so the copy cannot share
			return &opaque{payload: p, size: o.size}
		}
		o.retain()
		return o
	}
}
