package log

import (
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestEnableDebug(t *testing.T) {
	n := neko.Modern(t)

	n.It("raises the logger to trace when forced", func(t *testing.T) {
		L.SetLevel(hclog.Info)

		EnableDebug(true)
		require.True(t, L.IsTrace())
	})

	n.It("honors the TRACE environment variable", func(t *testing.T) {
		L.SetLevel(hclog.Info)
		t.Setenv("TRACE", "1")

		EnableDebug(false)
		require.True(t, L.IsTrace())
	})

	n.It("leaves the level alone otherwise", func(t *testing.T) {
		L.SetLevel(hclog.Info)
		t.Setenv("TRACE", "")

		EnableDebug(false)
		require.False(t, L.IsTrace())
	})

	n.Meow()
}
