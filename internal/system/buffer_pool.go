package system

import (
	"image"
	"sync"
)

// FramePool переиспользует кадры одного размера (пыль, постер),
// чтобы не нагружать GC при генерации десятков кадров 1920x1080.
type FramePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = NewFramePool()

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetFrame возвращает очищенный *image.RGBA размером w x h из общего пула.
func GetFrame(w, h int) *image.RGBA {
	return globalPool.Get(w, h)
}

// PutFrame возвращает кадр в общий пул.
func PutFrame(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *FramePool) pool(size image.Point) *sync.Pool {
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()
	if exists {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, exists = p.pools[size]; !exists {
		pool = &sync.Pool{
			New: func() any {
				return image.NewRGBA(image.Rectangle{Max: size})
			},
		}
		p.pools[size] = pool
	}
	return pool
}

func (p *FramePool) Get(w, h int) *image.RGBA {
	img := p.pool(image.Point{X: w, Y: h}).Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.pool(img.Rect.Max).Put(img)
}
