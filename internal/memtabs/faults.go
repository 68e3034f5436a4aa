package memtabs

// Method names a TabService call for fault injection and call counting.
type Method string

const (
	MethodListWindows   Method = "ListWindows"
	MethodGetWindow     Method = "GetWindow"
	MethodCurrentWindow Method = "CurrentWindow"
	MethodActiveTab     Method = "ActiveTab"
	MethodMoveTabs      Method = "MoveTabs"
	MethodUpdateTab     Method = "UpdateTab"
	MethodRemoveTabs    Method = "RemoveTabs"
	MethodCloseWindow   Method = "CloseWindow"
	MethodGroupTabs     Method = "GroupTabs"
	MethodUpdateGroup   Method = "UpdateGroup"
	MethodUngroupTab    Method = "UngroupTab"
)

type faultKey struct {
	method Method
	id     int64
	any    bool
}

type faults struct {
	errs  map[faultKey]error
	calls map[Method]int
}

func newFaults() faults {
	return faults{errs: make(map[faultKey]error), calls: make(map[Method]int)}
}

// check counts the call and returns the injected error, if any. A fault
// registered for an id fires when that id is one of ids.
func (f *faults) check(method Method, ids ...int64) error {
	f.calls[method]++
	if err, ok := f.errs[faultKey{method: method, any: true}]; ok {
		return err
	}
	for _, id := range ids {
		if err, ok := f.errs[faultKey{method: method, id: id}]; ok {
			return err
		}
	}
	return nil
}

// Fail makes every call to method return err until faults are cleared.
func (b *Browser) Fail(method Method, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults.errs[faultKey{method: method, any: true}] = err
}

// FailFor makes calls to method that touch the tab, window or group id return err.
func (b *Browser) FailFor(method Method, id int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults.errs[faultKey{method: method, id: id}] = err
}

// ClearFaults removes every injected fault.
func (b *Browser) ClearFaults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults.errs = make(map[faultKey]error)
}

// Calls reports how many times method was invoked, including failed calls.
func (b *Browser) Calls(method Method) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.faults.calls[method]
}
