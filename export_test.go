package linker

// SwapCallFn replaces the initializer trampoline until the returned func is called.
func SwapCallFn(f func(fn uintptr)) (restore func()) {
	old := callFn
	callFn = f
	return func() { callFn = old }
}
