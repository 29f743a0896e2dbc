package imaging

import "sync"

// poolKey identifies a size-keyed pool of scratch buffers.
type poolKey struct {
	w, h int
}

// pools maps (width, height) -> *sync.Pool of *Image. Using sync.Map avoids
// a mutex on the hot path; in practice a run only ever touches a handful of
// distinct sizes (the working resolution, the per-cell tile size, the
// detector's fixed 640px input), so the map stays tiny.
var pools sync.Map

// Get returns a zeroed Image of size w x h from the pool, or allocates a new
// one. compose's per-step Enhancer.ApplyImage output draws from here;
// catalog.computeOne's resampled tile and roi.detectFaces's detector-input
// frame are handed back with Put once used, so a later same-sized Get (such
// as ApplyImage at the tile size) can reuse them instead of allocating a
// fresh BGR buffer.
func Get(w, h int) *Image {
	key := poolKey{w, h}
	if p, ok := pools.Load(key); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			img := v.(*Image)
			clear(img.Pix)
			return img
		}
	}
	return New(w, h)
}

// Put returns img to the pool for reuse. A nil img is silently ignored.
func Put(img *Image) {
	if img == nil {
		return
	}
	key := poolKey{img.Width, img.Height}
	p, _ := pools.LoadOrStore(key, &sync.Pool{})
	p.(*sync.Pool).Put(img)
}
