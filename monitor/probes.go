package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Direct sysfs/procfs readers. No privilege needed; each returns an error so
// the caller can apply the retain-previous-value policy per field.

// readThermal reads a thermal zone file (millidegrees) and returns °C.
func readThermal(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v / 1000.0, nil
}

// readGPULoad reads the kgsl gpubusy file ("busy total") and returns percent.
func readGPULoad(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("parse %s: want 2 fields, got %d", path, len(fields))
	}
	busy, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	total, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, err
	}
	if total <= 0 {
		return 0, nil
	}
	return busy / total * 100.0, nil
}

type memStats struct {
	totalMB, availMB        float64
	swapTotalMB, swapFreeMB float64
}

// readMemInfo parses MemTotal, MemAvailable, SwapTotal and SwapFree (kB)
// from a /proc/meminfo-shaped file, in MB.
func readMemInfo(path string) (memStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return memStats{}, err
	}
	var ms memStats
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			ms.totalMB = firstFloat(line[len("MemTotal:"):]) / 1024.0
		case strings.HasPrefix(line, "MemAvailable:"):
			ms.availMB = firstFloat(line[len("MemAvailable:"):]) / 1024.0
		case strings.HasPrefix(line, "SwapTotal:"):
			ms.swapTotalMB = firstFloat(line[len("SwapTotal:"):]) / 1024.0
		case strings.HasPrefix(line, "SwapFree:"):
			ms.swapFreeMB = firstFloat(line[len("SwapFree:"):]) / 1024.0
		}
	}
	return ms, nil
}

// readCoreFreq reads one core's scaling_cur_freq (kHz) and returns MHz.
func readCoreFreq(sysRoot string, core int) (float64, error) {
	path := filepath.Join(sysRoot,
		fmt.Sprintf("devices/system/cpu/cpu%d/cpufreq/scaling_cur_freq", core))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v / 1000.0, nil
}

// readStorage returns free/total GB for the filesystem holding mount.
func readStorage(mount string) (freeGB, totalGB float64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mount, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", mount, err)
	}
	bs := float64(st.Bsize)
	const gb = 1024.0 * 1024.0 * 1024.0
	totalGB = float64(st.Blocks) * bs / gb
	freeGB = float64(st.Bavail) * bs / gb
	return freeGB, totalGB, nil
}

// firstFloat parses the first whitespace-delimited token as a float,
// defaulting to 0.
func firstFloat(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}
