package core

import "sync"

// SyncBuffer is an append-only io.Writer that is safe for concurrent use.
// Invocation log trails are written into one before being persisted.
type SyncBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (w *SyncBuffer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
	return len(p), nil
}

// Bytes returns a copy of everything written so far.
func (w *SyncBuffer) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]byte, len(w.data))
	copy(out, w.data)
	return out
}

func (w *SyncBuffer) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.data)
}

func (w *SyncBuffer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.data)
}
