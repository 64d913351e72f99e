package callback

import "github.com/pjrmi/pjrmi-go/dispatch"

var _ dispatch.CallbackEngine = (*Engine)(nil)
