package renderer

// ReleaseStack owns GPU objects and destroys them in reverse creation order.
// Release runs each destroy function exactly once.
type ReleaseStack struct {
	fns []func()
}

func (r *ReleaseStack) Push(destroy func()) {
	r.fns = append(r.fns, destroy)
}

// Own registers destroy for v and hands v back, so creation and ownership
// happen in one expression.
func Own[T any](r *ReleaseStack, v T, destroy func(T)) T {
	r.Push(func() { destroy(v) })
	return v
}

// Adopt moves everything owned by other onto r. other is left empty.
func (r *ReleaseStack) Adopt(other *ReleaseStack) {
	r.fns = append(r.fns, other.fns...)
	other.fns = nil
}

func (r *ReleaseStack) Len() int {
	return len(r.fns)
}

func (r *ReleaseStack) Release() {
	for i := len(r.fns) - 1; i >= 0; i-- {
		r.fns[i]()
	}
	r.fns = nil
}
