package dispatch

// ReturnFormat selects how a method/constructor call's result (or a
// get-value-of request) is rendered back to the client.
type ReturnFormat byte

const (
	ReturnByReference ReturnFormat = iota
	ReturnByClientReference
	ReturnPickle
	ReturnCompressedPickle
	ReturnBestEffortPickle
	ReturnCompressedBestEffortPickle
	ReturnShm
)
