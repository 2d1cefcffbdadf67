package vbox

import (
	"context"
	"io"
	"os"
	"regexp"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"

	"github.com/vboxwrapper/vboxwrapper/config"
	"github.com/vboxwrapper/vboxwrapper/types"
	"github.com/vboxwrapper/vboxwrapper/utils"
)

// counterAttr matches every c="<number>" attribute in a debugvm
// statistics XML fragment.
var counterAttr = regexp.MustCompile(`c="([0-9]+(?:\.[0-9]+)?)"`)

// GetNetworkBytesSent sums every matching TransmitBytes counter reported by
// debugvm statistics.
func (r *Registry) GetNetworkBytesSent(ctx context.Context, rt *types.RuntimeState) (float64, error) {
	return r.sumNetworkCounter(ctx, rt, "TransmitBytes")
}

// GetNetworkBytesReceived sums every matching ReceiveBytes counter.
func (r *Registry) GetNetworkBytesReceived(ctx context.Context, rt *types.RuntimeState) (float64, error) {
	return r.sumNetworkCounter(ctx, rt, "ReceiveBytes")
}

func (r *Registry) sumNetworkCounter(ctx context.Context, rt *types.RuntimeState, which string) (float64, error) {
	_, output, err := r.inv.Invoke(ctx, "debugvm-statistics", []string{
		"debugvm", rt.VMName, "statistics",
		"--pattern", "/Devices/*/" + which,
	}, 0, true)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, m := range counterAttr.FindAllStringSubmatch(output, -1) {
		v, perr := strconv.ParseFloat(m[1], 64) //nolint:mnd
		if perr != nil {
			continue
		}
		total += v
	}
	log.WithFunc("vbox.stats").Infof(ctx, "%s: %s %s", rt.VMName, which, units.BytesSize(total))
	return total, nil
}

// logTailSize is the trailing window returned by the log readers.
const logTailSize = 16 * 1024 //nolint:mnd

// GetVMLog runs showvminfo --log 0 and returns its trailing 16 KiB,
// trimmed at the next line boundary.
func (r *Registry) GetVMLog(ctx context.Context, rt *types.RuntimeState) (string, error) {
	_, output, err := r.inv.Invoke(ctx, "showvminfo-log", []string{"showvminfo", rt.VMName, "--log", "0"}, 0, true)
	if err != nil {
		return "", err
	}
	return tailString(output, logTailSize), nil
}

// GetSystemLog copies <hypervisor_home>/VBoxSVC.log into the slot
// directory to dodge the source file's own locking, then returns its
// trailing 16 KiB. Missing source log yields ErrNotFound.
func GetSystemLog(conf *config.Config, hypervisorHome string) (string, error) {
	src := hypervisorHome + "/VBoxSVC.log"
	if !utils.ValidFile(src) {
		return "", newErr(KindNotFound, "get_system_log", 0, "no service log at %s", src)
	}

	dst := conf.SystemLogCopyPath()
	if err := copyFile(src, dst); err != nil {
		return "", newErr(KindNotFound, "get_system_log", 0, "%v", err)
	}

	data, err := utils.TailBytes(dst, logTailSize)
	if err != nil {
		return "", newErr(KindNotFound, "get_system_log", 0, "%v", err)
	}
	return string(data), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst) //nolint:gosec
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	_, err = io.Copy(out, in)
	return err
}

func tailString(s string, n int64) string {
	if int64(len(s)) <= n {
		return s
	}
	start := int64(len(s)) - n
	tail := s[start:]
	for i, c := range tail {
		if c == '\n' {
			return tail[i+1:]
		}
	}
	return tail
}
