//go:build !unix

package shm

import "fmt"

func mmapWrite(path string, data []byte) error {
	return fmt.Errorf("shm: shared-memory side channel is not supported on this platform")
}

func mmapRead(path string) ([]byte, error) {
	return nil, fmt.Errorf("shm: shared-memory side channel is not supported on this platform")
}
