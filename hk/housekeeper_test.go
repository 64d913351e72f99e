package hk_test

import (
	"time"

	"github.com/pjrmi/pjrmi-go/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("should run a registered action and re-arm it", func() {
		calls := make(chan struct{}, 8)
		hk.Reg("test-reg", func() time.Duration {
			calls <- struct{}{}
			return time.Millisecond
		}, time.Millisecond)

		Eventually(calls, 2*time.Second).Should(Receive())
		Eventually(calls, 2*time.Second).Should(Receive())

		hk.Unreg("test-reg")
	})

	It("should stop re-arming once the action unregisters itself", func() {
		calls := 0
		done := make(chan struct{})
		hk.Reg("test-once", func() time.Duration {
			calls++
			close(done)
			return -1
		}, time.Millisecond)

		Eventually(done, 2*time.Second).Should(BeClosed())
		// give a second tick's worth of time to confirm it does not re-fire
		// (Reg raises the 1ms interval to its 1s minimum)
		time.Sleep(time.Second + 100*time.Millisecond)
		Expect(calls).To(Equal(1))
	})
})
