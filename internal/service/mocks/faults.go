package mocks

import "sync"

// faults lets tests force a method of a mock to fail.
type faults struct {
	mu   sync.Mutex
	errs map[string]error
}

// FailOn makes every call to method return err until cleared with a nil err.
func (f *faults) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

func (f *faults) fault(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}
