// Package guard forces test mode for any test binary that imports it, so a
// package test can never boot the real server or worker by accident.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SHOPLYTICS_TEST_MODE") == "" {
			_ = os.Setenv("SHOPLYTICS_TEST_MODE", "1")
		}
	})
}
