package vbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vboxwrapper/vboxwrapper/types"
)

// SetCPUUsage caps CPU execution at pct percent (1-100).
func (r *Registry) SetCPUUsage(ctx context.Context, rt *types.RuntimeState, pct int) error {
	if pct < 1 || pct > 100 { //nolint:mnd
		return fmt.Errorf("set_cpu_usage: pct %d out of range [1,100]", pct)
	}
	_, _, err := r.inv.Invoke(ctx, "controlvm-cpuexecutioncap", []string{
		"controlvm", rt.VMName, "cpuexecutioncap", strconv.Itoa(pct),
	}, 0, true)
	return err
}

// SetNetworkUsage caps the primary NIC's link speed in kbps.
func (r *Registry) SetNetworkUsage(ctx context.Context, rt *types.RuntimeState, kbps int) error {
	_, _, err := r.inv.Invoke(ctx, "modifyvm-nicspeed", []string{
		"modifyvm", rt.VMName, "--nicspeed1", strconv.Itoa(kbps),
	}, 0, true)
	return err
}

// LowerVMProcessPriority sets the VM frontend process to the idle priority
// class, a no-op if the PID is unknown.
func (r *Registry) LowerVMProcessPriority(rt *types.RuntimeState) error {
	if rt.VMPID == 0 {
		return nil
	}
	return currentPlatform.SetPriority(rt.VMPID, PriorityIdle)
}

// ResetVMProcessPriority restores the VM frontend process to the normal
// priority class, a no-op if the PID is unknown.
func (r *Registry) ResetVMProcessPriority(rt *types.RuntimeState) error {
	if rt.VMPID == 0 {
		return nil
	}
	return currentPlatform.SetPriority(rt.VMPID, PriorityNormal)
}

// vmProcessIDMarker precedes the PID in the "Process ID: <n>" line of
// showvminfo --log 0 output.
const vmProcessIDMarker = "Process ID: "

// GetVMProcessID parses the VM frontend's PID out of its own log and
// records it on rt.
func (r *Registry) GetVMProcessID(ctx context.Context, rt *types.RuntimeState) error {
	_, output, err := r.inv.Invoke(ctx, "showvminfo-log-pid", []string{"showvminfo", rt.VMName, "--log", "0"}, 0, true)
	if err != nil {
		return err
	}

	idx := strings.Index(output, vmProcessIDMarker)
	if idx < 0 {
		return newErr(KindNotFound, "get_vm_process_id", 0, "no Process ID line in log")
	}
	rest := output[idx+len(vmProcessIDMarker):]
	end := strings.IndexAny(rest, "\r\n")
	if end < 0 {
		end = len(rest)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return newErr(KindNotFound, "get_vm_process_id", 0, "unparsable Process ID: %v", err)
	}
	rt.VMPID = pid
	return nil
}
