package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv makes the cmd mains return before touching postgres or redis.
const TestModeEnv = "LEDGER_TEST_MODE"

var testMode atomic.Bool

func init() { RefreshTestMode() }

// InTestMode reports the cached LEDGER_TEST_MODE value.
func InTestMode() bool { return testMode.Load() }

// RefreshTestMode re-reads LEDGER_TEST_MODE. Unparsable values count as off.
func RefreshTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(on)
}
