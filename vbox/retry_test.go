package vbox

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCountingScript(t *testing.T, counterFile string, succeedAfter int) string {
	t.Helper()
	body := `
COUNT_FILE="` + counterFile + `"
N=0
if [ -f "$COUNT_FILE" ]; then
  N=$(cat "$COUNT_FILE")
fi
N=$((N + 1))
echo "$N" > "$COUNT_FILE"
if [ "$N" -ge ` + strconv.Itoa(succeedAfter) + ` ]; then
  echo "ok"
  exit 0
fi
echo "VBoxManage: error: locked (0x80bb0007)"
exit 1
`
	return writeScript(t, body)
}

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		BaseInterval: time.Millisecond,
		MaxInterval:  time.Millisecond,
	}
}

func TestRetryingInvokerSucceedsAfterSessionLockRetries(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	script := writeCountingScript(t, counter, 3)

	r := NewRetryingInvoker(NewInvoker(script, nil), fastPolicy(5))
	code, output, err := r.Invoke(context.Background(), "startvm", nil, 0, true)

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, output, "ok")

	data, readErr := os.ReadFile(counter)
	require.NoError(t, readErr)
	assert.Equal(t, "3\n", string(data))
}

func TestRetryingInvokerGivesUpAfterMaxAttempts(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	script := writeCountingScript(t, counter, 100)

	r := NewRetryingInvoker(NewInvoker(script, nil), fastPolicy(3))
	_, _, err := r.Invoke(context.Background(), "startvm", []string{"--name", "job1"}, 0, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Contains(t, err.Error(), "--name job1")
	assert.Contains(t, err.Error(), "0x80bb0007")
	assert.Contains(t, err.Error(), "Another VirtualBox management application has locked the session")

	data, readErr := os.ReadFile(counter)
	require.NoError(t, readErr)
	assert.Equal(t, "3\n", string(data))
}

func TestRetryingInvokerDoesNotRetryNonSessionLockErrors(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "count")
	script := writeScript(t, `
COUNT_FILE="`+counter+`"
echo "1" > "$COUNT_FILE"
echo "boom, not a session lock"
exit 1
`)

	r := NewRetryingInvoker(NewInvoker(script, nil), fastPolicy(5))
	_, output, err := r.Invoke(context.Background(), "startvm", nil, 0, true)

	require.Error(t, err)
	assert.Contains(t, output, "boom")

	data, readErr := os.ReadFile(counter)
	require.NoError(t, readErr)
	assert.Equal(t, "1\n", string(data))
}
