package fsops

import "sync"

// FakeDeleter implements Deleter for testing
// Records all delete calls and replays scripted errors per path
type FakeDeleter struct {
	mu    sync.Mutex
	Calls []string
	// Errs maps a path to the errors returned by successive calls.
	// Once the queue is drained the call succeeds.
	Errs map[string][]error
}

func (f *FakeDeleter) Remove(path string) error {
	return f.record("rm:", path)
}

func (f *FakeDeleter) RemoveAll(path string) error {
	return f.record("rmall:", path)
}

// CallCount returns how many times path was passed to either method
func (f *FakeDeleter) CallCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == "rm:"+path || c == "rmall:"+path {
			n++
		}
	}
	return n
}

func (f *FakeDeleter) record(prefix, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, prefix+path)
	queue := f.Errs[path]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.Errs[path] = queue[1:]
	return err
}
