package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// EnableDebug raises the shared logger to trace level when asked to,
// or when the TRACE environment variable is set.
func EnableDebug(force bool) {
	if force || os.Getenv("TRACE") != "" {
		L.SetLevel(hclog.Trace)
	}
}
