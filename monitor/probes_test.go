package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadThermal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp")
	writeFile(t, path, "42500\n")

	v, err := readThermal(path)
	require.NoError(t, err)
	require.InDelta(t, 42.5, v, 1e-9)

	_, err = readThermal(filepath.Join(dir, "missing"))
	require.Error(t, err)

	writeFile(t, path, "not a number\n")
	_, err = readThermal(path)
	require.Error(t, err)
}

func TestReadGPULoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpubusy")

	writeFile(t, path, " 227857 911430\n")
	v, err := readGPULoad(path)
	require.NoError(t, err)
	require.InDelta(t, 25.0, v, 0.01)

	// Idle GPU reports a zero total; that is 0% load, not an error.
	writeFile(t, path, "0 0\n")
	v, err = readGPULoad(path)
	require.NoError(t, err)
	require.Zero(t, v)

	writeFile(t, path, "justone\n")
	_, err = readGPULoad(path)
	require.Error(t, err)
}

func TestReadMemInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo")
	writeFile(t, path, `MemTotal:        7772160 kB
MemFree:          524288 kB
MemAvailable:    3145728 kB
Buffers:          102400 kB
SwapTotal:       2097152 kB
SwapFree:        1048576 kB
`)

	ms, err := readMemInfo(path)
	require.NoError(t, err)
	require.InDelta(t, 7590.0, ms.totalMB, 1e-9)
	require.InDelta(t, 3072.0, ms.availMB, 1e-9)
	require.InDelta(t, 2048.0, ms.swapTotalMB, 1e-9)
	require.InDelta(t, 1024.0, ms.swapFreeMB, 1e-9)
}

func TestReadCoreFreq(t *testing.T) {
	sysRoot := t.TempDir()
	writeFile(t, filepath.Join(sysRoot, "devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"), "1804800\n")

	v, err := readCoreFreq(sysRoot, 0)
	require.NoError(t, err)
	require.InDelta(t, 1804.8, v, 1e-9)

	_, err = readCoreFreq(sysRoot, 1)
	require.Error(t, err)
}

func TestReadStorage(t *testing.T) {
	free, total, err := readStorage(t.TempDir())
	require.NoError(t, err)
	require.Greater(t, total, 0.0)
	require.GreaterOrEqual(t, total, free)

	_, _, err = readStorage(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestFirstFloat(t *testing.T) {
	require.InDelta(t, 73425.54, firstFloat(" 73425.54 570922.57 "), 1e-9)
	require.Zero(t, firstFloat(""))
	require.Zero(t, firstFloat("abc def"))
}
