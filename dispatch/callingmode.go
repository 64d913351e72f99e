package dispatch

// CallingMode selects whether a method/constructor call in a KindCall
// request runs synchronously (the reply frame carries the rendered result)
// or asynchronously (the reply frame carries a future handle, and the
// actual result is fetched later with a KindFutureGet request).
type CallingMode byte

const (
	CallSynchronous CallingMode = iota
	CallNewHostThread
)
