package shm

import "github.com/pjrmi/pjrmi-go/dispatch"

var _ dispatch.ShmWriter = (*Store)(nil)
