package dyncol

import "sync"

var containerStackPool = &sync.Pool{
	New: func() any {
		return make([]container, 0, 64)
	},
}

func getContainerStack() []container {
	return containerStackPool.Get().([]container)
}

func putContainerStack(s []container) {
	if cap(s) > 65536 {
		return // let oversized stacks from adversarial nesting go
	}
	clear(s[:cap(s)])
	containerStackPool.Put(s[:0])
}

var copyStackPool = &sync.Pool{
	New: func() any {
		return make([]copyTask, 0, 64)
	},
}

func getCopyStack() []copyTask {
	return copyStackPool.Get().([]copyTask)
}

func putCopyStack(s []copyTask) {
	if cap(s) > 65536 {
		return
	}
	clear(s[:cap(s)])
	copyStackPool.Put(s[:0])
}
