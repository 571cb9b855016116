package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WEFTPOS_TEST_MODE") == "" {
			_ = os.Setenv("WEFTPOS_TEST_MODE", "1")
		}
	})
}
