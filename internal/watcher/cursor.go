package watcher

import (
	"os"
	"sync"
)

// cursorSet tracks a byte offset per transcript file so only content
// appended since the last read is processed. Offsets only ever advance
// to the end of the last complete line; a partial trailing line is left
// in place and re-read on the next notification.
type cursorSet struct {
	mu      sync.Mutex
	offsets map[string]int64
}

func newCursorSet() *cursorSet {
	return &cursorSet{offsets: make(map[string]int64)}
}

// get returns the stored offset for path, or 0 if the file is unknown.
func (c *cursorSet) get(path string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsets[path]
}

func (c *cursorSet) set(path string, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[path] = offset
}

func (c *cursorSet) forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.offsets, path)
}

// initAtEnd positions the cursor at the current end of the file so that
// pre-existing history is never replayed.
func (c *cursorSet) initAtEnd(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	c.set(path, info.Size())
	return nil
}
