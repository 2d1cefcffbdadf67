package vbox

import (
	"context"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/vboxwrapper/vboxwrapper/types"
)

// vmStateToken -> (online, suspended, crashed).
var runningTokens = map[string]bool{
	"running":                 true,
	"starting":                true,
	"stopping":                true,
	"saving":                  true,
	"restoring":                true,
	"livesnapshotting":        true,
	"deletingsnapshotlive":    true,
}

var pausedTokens = map[string]bool{
	"paused":                    true,
	"deletingsnapshotlivepaused": true,
}

var crashedTokens = map[string]bool{
	"aborted":        true,
	"gurumeditation": true,
}

// Poll runs showvminfo --machinereadable, extracts VMState, and updates
// rt's Online/Suspended/Crashed flags. When logState is true and the
// observed token is a crash token, one warning line is emitted.
func (r *Registry) Poll(ctx context.Context, rt *types.RuntimeState, logState bool) error {
	_, output, err := r.inv.Invoke(ctx, "showvminfo-poll", []string{"showvminfo", rt.VMName, "--machinereadable"}, 0, logState)
	if err != nil {
		return err
	}

	token := extractVMState(output)

	switch {
	case runningTokens[token]:
		rt.Online, rt.Suspended, rt.Crashed = true, false, false
	case pausedTokens[token]:
		rt.Online, rt.Suspended, rt.Crashed = true, true, false
	case crashedTokens[token]:
		rt.Online, rt.Suspended, rt.Crashed = false, false, true
		rt.HWVirtFailed = true
		if logState {
			log.WithFunc("vbox.poll").Warnf(ctx, "%s: observed crash state %q", rt.VMName, token)
		}
	default:
		rt.Online, rt.Suspended, rt.Crashed = false, false, false
	}
	return nil
}

// extractVMState pulls the token out of VMState="<token>".
func extractVMState(output string) string {
	const marker = `VMState="`
	idx := strings.Index(output, marker)
	if idx < 0 {
		return ""
	}
	rest := output[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}
