// Package mempool pools the large per-image buffers (input tensors, alpha
// channels) so that steady request traffic does not churn the GC.
package mempool

import "sync"

// classStep is the bucket granularity in elements.
const classStep = 1024

// sizeClass rounds n up to the next multiple of classStep.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

// sizedPool keeps one sync.Pool per size class.
type sizedPool[T any] struct {
	pools sync.Map // size class -> *sync.Pool
}

func (p *sizedPool[T]) pool(cls int) *sync.Pool {
	if v, ok := p.pools.Load(cls); ok {
		return v.(*sync.Pool)
	}
	v, _ := p.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return v.(*sync.Pool)
}

func (p *sizedPool[T]) get(n int) []T {
	cls := sizeClass(n)
	bp := p.pool(cls).Get().(*[]T)
	buf := *bp
	if cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (p *sizedPool[T]) put(buf []T) {
	if cap(buf) < classStep {
		return
	}
	// Only exact class capacities go back so get never sees a short buffer.
	cls := cap(buf) / classStep * classStep
	full := buf[:cls:cls]
	p.pool(cls).Put(&full)
}

var (
	float32Pool sizedPool[float32]
	uint8Pool   sizedPool[uint8]
)

// GetFloat32 returns a []float32 of length n. Contents are not zeroed; callers
// must write every element they read.
func GetFloat32(n int) []float32 {
	return float32Pool.get(n)
}

// PutFloat32 returns a buffer obtained from GetFloat32. Nil is ignored.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	float32Pool.put(buf)
}

// GetUint8 returns a []uint8 of length n with unspecified contents.
func GetUint8(n int) []uint8 {
	return uint8Pool.get(n)
}

// PutUint8 returns a buffer obtained from GetUint8. Nil is ignored.
func PutUint8(buf []uint8) {
	if buf == nil {
		return
	}
	uint8Pool.put(buf)
}
