package vbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vboxwrapper/vboxwrapper/config"
)

func TestDeregisterStaleVMEmptyImagePathSkipsCLI(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	script := writeScript(t, `
N=0
if [ -f "`+counter+`" ]; then
  N=$(cat "`+counter+`")
fi
echo "$((N + 1))" > "`+counter+`"
echo "VBOX_E_OBJECT_NOT_FOUND"
exit 1
`)

	reg := NewRegistry(NewRetryingInvoker(NewInvoker(script, nil), fastPolicy(5)), config.DefaultConfig())
	err := reg.DeregisterStaleVM(context.Background(), "", "", false)

	require.NoError(t, err)
	_, statErr := os.Stat(counter)
	assert.True(t, os.IsNotExist(statErr), "showhdinfo must not be invoked for an empty image path")
}
