package wire

// Kind identifies the shape of a frame's payload. Client-to-server request
// kinds use uppercase ASCII letters; server-to-client response/event kinds
// use lowercase letters and digits. These identifiers are part of the wire
// protocol and must never be reassigned or reused for a different meaning.
type Kind byte

const (
	// client -> server requests

	KindInstanceLookup    Kind = 'L' // lookup a named host instance
	KindAddRef            Kind = 'A' // add-reference on one handle
	KindAddRefList        Kind = 'a' // add-reference on a list of handles
	KindDropRef           Kind = 'D' // drop-reference on one handle
	KindDropRefList       Kind = 'd' // drop-reference on a list of handles
	KindTypeByID          Kind = 'T' // type-descriptor request by type ID
	KindTypeByName        Kind = 'N' // type-descriptor request by canonical name
	KindCall              Kind = 'C' // method or constructor call
	KindToString          Kind = 'S' // to-string of a handle
	KindGetField          Kind = 'G' // get field/array-element value
	KindSetField          Kind = 'F' // set field/array-element value
	KindArrayLength       Kind = 'Y' // array length
	KindNewArray          Kind = 'W' // new array instance
	KindCast              Kind = 'X' // object cast / retag
	KindLock              Kind = 'K' // acquire named lock
	KindUnlock            Kind = 'U' // release named lock
	KindInjectClass       Kind = 'J' // inject pre-compiled class bytes
	KindInjectSource      Kind = 'O' // inject source, compile, define
	KindValueOf           Kind = 'V' // serialise a handle's value
	KindGetCallbackHandle Kind = 'B' // synthesise a host-side callback proxy
	KindCallbackResponse  Kind = 'R' // client's answer to an outbound callback
	KindGetProxy          Kind = 'P' // wrap a client object ID behind a proxy
	KindFutureGet         Kind = 'H' // fetch an async call's future result

	// server -> client responses/events

	KindObjectRef       Kind = 'r' // object-reference result
	KindException       Kind = 'x' // exception frame
	KindTypeDescriptor  Kind = 't' // type-descriptor result
	KindAck             Kind = 'k' // empty acknowledgement
	KindValueResult     Kind = 'v' // raw value result
	KindPickleResult    Kind = 'p' // pickle-encoded result
	KindCPickleResult   Kind = 'c' // compressed-pickle result
	KindBEPickleResult  Kind = 'b' // best-effort pickle result
	KindCBEPickleResult Kind = '1' // compressed best-effort pickle result
	KindShmResult       Kind = 'm' // shared-memory result
	KindFutureRef       Kind = 'n' // future handle for an async call

	// server -> client: outbound callback requests

	KindEvaluate           Kind = 'e' // evaluate/execute an expression
	KindInvoke             Kind = 'i' // invoke a client callable
	KindObjectCallback     Kind = 'o' // object-targeted callback
	KindGetAttribute       Kind = 'g' // get a client-side attribute
	KindSetGlobal          Kind = 's' // set a client-side global variable
	KindCallbackToCallable Kind = '2' // route a callback to a callable
	KindCallbackDropRef    Kind = '3' // drop-reference on a client object ID
	KindGetObject          Kind = '4' // fetch a client object by ID
	KindInvokeAndGetObject Kind = '5' // invoke then fetch the resulting object
)

// String names a kind for logging; unrecognised kinds print their raw byte.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + string(byte(k)) + ")"
}

var kindNames = map[Kind]string{
	KindInstanceLookup:    "instance-lookup",
	KindAddRef:            "add-ref",
	KindAddRefList:        "add-ref-list",
	KindDropRef:           "drop-ref",
	KindDropRefList:       "drop-ref-list",
	KindTypeByID:          "type-by-id",
	KindTypeByName:        "type-by-name",
	KindCall:              "call",
	KindToString:          "to-string",
	KindGetField:          "get-field",
	KindSetField:          "set-field",
	KindArrayLength:       "array-length",
	KindNewArray:          "new-array",
	KindCast:              "cast",
	KindLock:              "lock",
	KindUnlock:            "unlock",
	KindInjectClass:       "inject-class",
	KindInjectSource:      "inject-source",
	KindValueOf:           "value-of",
	KindGetCallbackHandle: "get-callback-handle",
	KindCallbackResponse:  "callback-response",
	KindGetProxy:          "get-proxy",
	KindFutureGet:         "future-get",

	KindObjectRef:       "object-ref",
	KindException:       "exception",
	KindTypeDescriptor:  "type-descriptor",
	KindAck:             "ack",
	KindValueResult:     "value-result",
	KindPickleResult:    "pickle-result",
	KindCPickleResult:   "compressed-pickle-result",
	KindBEPickleResult:  "best-effort-pickle-result",
	KindCBEPickleResult: "compressed-best-effort-pickle-result",
	KindShmResult:       "shm-result",
	KindFutureRef:       "future-ref",

	KindEvaluate:           "evaluate",
	KindInvoke:             "invoke",
	KindObjectCallback:     "object-callback",
	KindGetAttribute:       "get-attribute",
	KindSetGlobal:          "set-global",
	KindCallbackToCallable: "callback-to-callable",
	KindCallbackDropRef:    "callback-drop-ref",
	KindGetObject:          "get-object",
	KindInvokeAndGetObject: "invoke-and-get-object",
}

// RequiresGlobalLock reports whether the dispatcher must hold the
// server-wide global lock while handling a frame of this kind.
// Control-plane kinds (lock/unlock, ref add/drop, type/instance lookup) do
// not; value-plane kinds (method call, field get/set, to-string, value-of)
// do.
func (k Kind) RequiresGlobalLock() bool {
	switch k {
	case KindCall, KindGetField, KindSetField, KindToString, KindValueOf,
		KindArrayLength, KindNewArray:
		return true
	default:
		return false
	}
}

// IsRequest reports whether k originates from the client. Request kinds are
// uppercase ASCII letters; response/event kinds are lowercase letters or
// digits.
func (k Kind) IsRequest() bool {
	return k >= 'A' && k <= 'Z'
}
