// Package discover probes the device layout once at startup: thermal zone
// paths, CPU core topology, static per-core info, and device identity.
// Everything it returns is immutable for the life of the process.
package discover

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DevicePaths are the sysfs files the monitor reads every tick.
type DevicePaths struct {
	CPUTemp string
	GPUTemp string
	GPULoad string
}

// StaticCoreInfo is the per-core data that never changes at runtime.
type StaticCoreInfo struct {
	Name      string
	ModelName string
	MinFreq   float64
	MaxFreq   float64
}

// StaticDeviceInfo is the device identity, probed once.
type StaticDeviceInfo struct {
	Manufacturer  string
	ProductModel  string
	SOCModel      string
	KernelVersion string
	OSVersion     string
	Cores         []StaticCoreInfo
}

// Options tunes where discovery looks. Zero values mean the real system.
type Options struct {
	SysRoot  string // default "/sys"
	ProcRoot string // default "/proc"
	Getprop  string // default "getprop"
	Lscpu    string // default "lscpu"
}

func (o *Options) defaults() {
	if o.SysRoot == "" {
		o.SysRoot = "/sys"
	}
	if o.ProcRoot == "" {
		o.ProcRoot = "/proc"
	}
	if o.Getprop == "" {
		o.Getprop = "getprop"
	}
	if o.Lscpu == "" {
		o.Lscpu = "lscpu"
	}
}

// Probe discovers the device layout. Individual probe failures degrade to
// defaults or empty strings; Probe itself never fails.
func Probe(logger *slog.Logger, opts Options) (DevicePaths, StaticDeviceInfo) {
	opts.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	cpuTemp, gpuTemp := probeThermalZones(opts.SysRoot)
	coreCount := countCores(opts.SysRoot)

	paths := DevicePaths{
		CPUTemp: cpuTemp,
		GPUTemp: gpuTemp,
		GPULoad: filepath.Join(opts.SysRoot, "class/kgsl/kgsl-3d0/gpubusy"),
	}

	info := StaticDeviceInfo{
		Manufacturer:  getprop(opts.Getprop, "ro.product.manufacturer"),
		ProductModel:  getprop(opts.Getprop, "ro.product.model"),
		SOCModel:      getprop(opts.Getprop, "ro.soc.model"),
		KernelVersion: kernelVersion(opts.ProcRoot),
		OSVersion:     getprop(opts.Getprop, "ro.build.version.release"),
		Cores:         probeCoreInfo(opts.Lscpu, coreCount),
	}

	logger.Info("device layout discovered",
		"cores", len(info.Cores),
		"cpu_temp_path", paths.CPUTemp,
		"gpu_temp_path", paths.GPUTemp,
		"model", info.ProductModel)

	return paths, info
}

// probeThermalZones scans <sys>/class/thermal for the CPU and GPU zones.
// Zone types vary per SoC; the cpuss-0/aoss-0 and gpuss-0 substrings cover
// the Snapdragon naming. Falls back to zone0/zone1.
func probeThermalZones(sysRoot string) (cpuTemp, gpuTemp string) {
	thermalDir := filepath.Join(sysRoot, "class/thermal")
	cpuTemp = filepath.Join(thermalDir, "thermal_zone0/temp")
	gpuTemp = filepath.Join(thermalDir, "thermal_zone1/temp")

	entries, err := os.ReadDir(thermalDir)
	if err != nil {
		return cpuTemp, gpuTemp
	}
	var zones []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "thermal_zone") {
			zones = append(zones, e.Name())
		}
	}
	sort.Strings(zones)

	for _, zone := range zones {
		data, err := os.ReadFile(filepath.Join(thermalDir, zone, "type"))
		if err != nil {
			continue
		}
		zoneType := strings.ToLower(strings.TrimSpace(string(data)))
		tempPath := filepath.Join(thermalDir, zone, "temp")
		switch {
		case strings.Contains(zoneType, "cpuss-0"), strings.Contains(zoneType, "aoss-0"):
			cpuTemp = tempPath
		case strings.Contains(zoneType, "gpuss-0"):
			gpuTemp = tempPath
		}
	}
	return cpuTemp, gpuTemp
}

// countCores counts cpu<N> directories under <sys>/devices/system/cpu.
// The digit check filters out cpufreq, cpuidle and friends.
func countCores(sysRoot string) int {
	entries, err := os.ReadDir(filepath.Join(sysRoot, "devices/system/cpu"))
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "cpu") && len(name) > 3 && name[3] >= '0' && name[3] <= '9' {
			count++
		}
	}
	return count
}

func getprop(bin, key string) string {
	out, err := exec.Command(bin, key).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func kernelVersion(procRoot string) string {
	data, err := os.ReadFile(filepath.Join(procRoot, "version"))
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return "unknown"
	}
	return fields[2]
}

// probeCoreInfo gathers static per-core info from `lscpu -e`. If lscpu is
// unavailable the cores are synthesized from the count so the tree shape
// stays stable.
func probeCoreInfo(bin string, count int) []StaticCoreInfo {
	out, err := exec.Command(bin, "-e=cpu,modelname,minmhz,maxmhz").Output()
	if err != nil {
		return synthesizeCores(count)
	}
	cores := parseLscpu(string(out))
	if len(cores) == 0 {
		return synthesizeCores(count)
	}
	return cores
}

func parseLscpu(raw string) []StaticCoreInfo {
	lines := strings.Split(raw, "\n")
	var cores []StaticCoreInfo
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		minFreq, _ := strconv.ParseFloat(fields[len(fields)-2], 64)
		maxFreq, _ := strconv.ParseFloat(fields[len(fields)-1], 64)
		cores = append(cores, StaticCoreInfo{
			Name:      "cpu" + fields[0],
			ModelName: strings.Join(fields[1:len(fields)-2], " "),
			MinFreq:   minFreq,
			MaxFreq:   maxFreq,
		})
	}
	sort.Slice(cores, func(a, b int) bool {
		return coreNum(cores[a].Name) < coreNum(cores[b].Name)
	})
	return cores
}

func coreNum(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
	if err != nil {
		return 0
	}
	return n
}

func synthesizeCores(count int) []StaticCoreInfo {
	cores := make([]StaticCoreInfo, count)
	for i := range cores {
		cores[i] = StaticCoreInfo{Name: fmt.Sprintf("cpu%d", i)}
	}
	return cores
}
