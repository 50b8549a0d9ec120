package worker

import (
	"fmt"
	"syscall"

	"github.com/jonesrussell/healtharchive/internal/errorsx"
)

// diskWatermarkExceeded reports whether the free space under root is
// below minFree. A statfs failure is treated as exceeded — the loop
// would rather stall pickup than gamble on writing into an unreadable
// mount.
func diskWatermarkExceeded(root string, minFree int64) (bool, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		return true, fmt.Errorf("statfs %s: %w", root, err)
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	return free < minFree, nil
}

// checkAnnualRootGuardrail refuses an annual job whose output directory
// resolves to the same device as the host's root filesystem: annual
// campaigns are expected to land on a dedicated storage volume, and a
// misconfigured output_dir here risks exhausting the root disk.
func checkAnnualRootGuardrail(outputDir string, isAnnual bool) error {
	return checkRootGuardrail(outputDir, isAnnual, "/")
}

func checkRootGuardrail(outputDir string, isAnnual bool, rootPath string) error {
	if !isAnnual {
		return nil
	}
	sameDevice, err := sameDevice(outputDir, rootPath)
	if err != nil {
		return errorsx.NewGuardrailError("annual_output_on_root", fmt.Sprintf("probe device: %v", err))
	}
	if sameDevice {
		return errorsx.NewGuardrailError("annual_output_on_root",
			fmt.Sprintf("output dir %q resolves to the root filesystem device", outputDir))
	}
	return nil
}

// sameDevice reports whether path and other live on the same mounted
// filesystem device, walking up path's ancestors until one exists (the
// directory itself may not have been created yet).
func sameDevice(path, other string) (bool, error) {
	pathDev, err := deviceOf(path)
	if err != nil {
		return false, err
	}
	otherDev, err := deviceOf(other)
	if err != nil {
		return false, err
	}
	return pathDev == otherDev, nil
}

func deviceOf(path string) (uint64, error) {
	var st syscall.Stat_t
	for p := path; ; p = parentOf(p) {
		if err := syscall.Stat(p, &st); err == nil {
			return uint64(st.Dev), nil
		} else if p == "/" || p == "." {
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
	}
}

func parentOf(path string) string {
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "/"
}
