package discover

import (
	"io"
	"log/slog"
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

func fixtureSysRoot(t *testing.T) string {
	t.Helper()
	sysRoot := t.TempDir()
	zones := map[string]string{
		"thermal_zone0": "battery",
		"thermal_zone1": "cpuss-0-usr",
		"thermal_zone2": "gpuss-0-usr",
		"thermal_zone3": "modem",
	}
	for zone, typ := range zones {
		writeFile(t, filepath.Join(sysRoot, "class/thermal", zone, "type"), typ+"\n")
		writeFile(t, filepath.Join(sysRoot, "class/thermal", zone, "temp"), "40000\n")
	}
	for _, dir := range []string{"cpu0", "cpu1", "cpu2", "cpufreq", "cpuidle"} {
		require.NoError(t, os.MkdirAll(filepath.Join(sysRoot, "devices/system/cpu", dir), 0o755))
	}
	return sysRoot
}

func TestProbeThermalZones(t *testing.T) {
	sysRoot := fixtureSysRoot(t)

	cpuTemp, gpuTemp := probeThermalZones(sysRoot)
	require.Equal(t, filepath.Join(sysRoot, "class/thermal/thermal_zone1/temp"), cpuTemp)
	require.Equal(t, filepath.Join(sysRoot, "class/thermal/thermal_zone2/temp"), gpuTemp)
}

func TestProbeThermalZonesFallback(t *testing.T) {
	sysRoot := t.TempDir()

	cpuTemp, gpuTemp := probeThermalZones(sysRoot)
	require.Equal(t, filepath.Join(sysRoot, "class/thermal/thermal_zone0/temp"), cpuTemp)
	require.Equal(t, filepath.Join(sysRoot, "class/thermal/thermal_zone1/temp"), gpuTemp)
}

func TestCountCores(t *testing.T) {
	require.Equal(t, 3, countCores(fixtureSysRoot(t)))
	require.Equal(t, 0, countCores(t.TempDir()))
}

func TestKernelVersion(t *testing.T) {
	procRoot := t.TempDir()
	writeFile(t, filepath.Join(procRoot, "version"),
		"Linux version 6.1.43-android14-11 (build@server) (clang) #1 SMP\n")
	require.Equal(t, "6.1.43-android14-11", kernelVersion(procRoot))

	require.Equal(t, "", kernelVersion(t.TempDir()))
}

func TestParseLscpu(t *testing.T) {
	raw := `CPU MODELNAME     MINMHZ    MAXMHZ
2 Cortex-A520 324.0000 1704.0000
0 Cortex-A520 324.0000 1704.0000
1 Kryo 4xx Silver 300.0000 1804.8000
`
	cores := parseLscpu(raw)
	require.Len(t, cores, 3)

	// Sorted by core number regardless of output order.
	require.Equal(t, "cpu0", cores[0].Name)
	require.Equal(t, "cpu1", cores[1].Name)
	require.Equal(t, "cpu2", cores[2].Name)

	require.Equal(t, "Kryo 4xx Silver", cores[1].ModelName)
	require.InDelta(t, 300.0, cores[1].MinFreq, 1e-9)
	require.InDelta(t, 1804.8, cores[1].MaxFreq, 1e-9)
}

func TestSynthesizeCores(t *testing.T) {
	cores := synthesizeCores(2)
	require.Len(t, cores, 2)
	require.Equal(t, "cpu0", cores[0].Name)
	require.Equal(t, "cpu1", cores[1].Name)
	require.Zero(t, cores[0].MaxFreq)
}

func TestProbeNeverFails(t *testing.T) {
	sysRoot := fixtureSysRoot(t)
	procRoot := t.TempDir()
	writeFile(t, filepath.Join(procRoot, "version"), "Linux version 6.1.43 (a) (b) #1\n")

	paths, info := Probe(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		SysRoot:  sysRoot,
		ProcRoot: procRoot,
		Getprop:  "definitely-not-a-binary",
		Lscpu:    "definitely-not-a-binary",
	})

	require.NotEmpty(t, paths.CPUTemp)
	require.NotEmpty(t, paths.GPUTemp)
	require.Contains(t, paths.GPULoad, "kgsl")

	require.Empty(t, info.Manufacturer)
	require.Equal(t, "6.1.43", info.KernelVersion)
	require.Len(t, info.Cores, 3)
	require.Equal(t, "cpu0", info.Cores[0].Name)
}
