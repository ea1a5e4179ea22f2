package disc

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ReadLabel returns the volume label reported by lsblk for the device.
// An empty label with no error means the drive has no mounted filesystem,
// which is how an empty tray presents.
func ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return "", fmt.Errorf("no device specified")
	}

	lsblkCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		lsblkCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := exec.CommandContext(lsblkCtx, "lsblk", "-P", "-o", "LABEL,FSTYPE", device).Output()
	if err != nil {
		return "", fmt.Errorf("run lsblk: %w", err)
	}

	label, fstype := parseLSBLK(string(output))
	if label != "" && fstype != "" {
		return label, nil
	}
	return "", nil
}

// parseLSBLK reads lsblk -P key/value output and returns the first
// LABEL/FSTYPE pair.
func parseLSBLK(output string) (label, fstype string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		values := map[string]string{}
		for _, field := range strings.Fields(line) {
			parts := strings.SplitN(field, "=", 2)
			if len(parts) != 2 {
				continue
			}
			values[parts[0]] = strings.Trim(parts[1], "\"")
		}
		if len(values) == 0 {
			continue
		}
		return values["LABEL"], values["FSTYPE"]
	}
	return "", ""
}
