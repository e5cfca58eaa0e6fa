package log

import (
	hclog "github.com/hashicorp/go-hclog"
)

// L is the shared kernel logger. Subsystems that want their own fields
// derive from it with With.
var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name: "tgfw",
	})
	L.SetLevel(hclog.Info)
}
