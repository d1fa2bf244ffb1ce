package monitor

import (
	"github.com/theonuverse/pasmonux/statree"
)

// BatteryStatus mirrors the Android BatteryManager status codes reported by
// `dumpsys battery`.
type BatteryStatus int

const (
	BatteryUnknown     BatteryStatus = 1
	BatteryCharging    BatteryStatus = 2
	BatteryDischarging BatteryStatus = 3
	BatteryNotCharging BatteryStatus = 4
	BatteryFull        BatteryStatus = 5
)

// BatteryStatusFromCode maps a dumpsys status code. Out-of-range codes map
// to BatteryUnknown.
func BatteryStatusFromCode(code int) BatteryStatus {
	if code < int(BatteryUnknown) || code > int(BatteryFull) {
		return BatteryUnknown
	}
	return BatteryStatus(code)
}

func (b BatteryStatus) String() string {
	switch b {
	case BatteryUnknown:
		return "Unknown"
	case BatteryCharging:
		return "Charging"
	case BatteryDischarging:
		return "Discharging"
	case BatteryNotCharging:
		return "Not charging"
	case BatteryFull:
		return "Full"
	default:
		return "N/A"
	}
}

// CoreStats is one CPU core's live and static data.
type CoreStats struct {
	Name      string
	Usage     float64
	ModelName string
	CurFreq   float64
	MinFreq   float64
	MaxFreq   float64
}

// SystemStats is one full measurement cycle. Field declaration order is the
// order the fields appear in the published tree.
type SystemStats struct {
	Manufacturer  string
	ProductModel  string
	SOCModel      string
	KernelVersion string
	OSVersion     string

	UptimeSeconds uint64

	BatteryLevel  int
	BatteryStatus BatteryStatus
	BatteryTemp   float64

	CPUTemp  float64
	GPUTemp  float64
	GPULoad  float64
	TotalCPU float64

	MemoryUsedMB  float64
	MemoryTotalMB float64
	SwapUsedMB    float64
	SwapTotalMB   float64

	TxBytesMB float64
	RxBytesMB float64

	StorageFreeGB  float64
	StorageTotalGB float64

	RefreshRate float64
	Brightness  float64

	Cores []CoreStats
}

// Tree converts the record into the generic value tree, preserving field
// declaration order. The conversion is total: every field maps to exactly
// one value variant.
func (s *SystemStats) Tree() statree.Value {
	cores := make([]statree.Value, 0, len(s.Cores))
	for i := range s.Cores {
		cores = append(cores, s.Cores[i].tree())
	}
	return statree.Object(
		statree.F("manufacturer", statree.Text(s.Manufacturer)),
		statree.F("product_model", statree.Text(s.ProductModel)),
		statree.F("soc_model", statree.Text(s.SOCModel)),
		statree.F("kernel_version", statree.Text(s.KernelVersion)),
		statree.F("os_version", statree.Text(s.OSVersion)),
		statree.F("uptime_seconds", statree.Int(int64(s.UptimeSeconds))),
		statree.F("battery_level", statree.Int(int64(s.BatteryLevel))),
		statree.F("battery_status", statree.Text(s.BatteryStatus.String())),
		statree.F("battery_temp", statree.Float(s.BatteryTemp)),
		statree.F("cpu_temp", statree.Float(s.CPUTemp)),
		statree.F("gpu_temp", statree.Float(s.GPUTemp)),
		statree.F("gpu_load", statree.Float(s.GPULoad)),
		statree.F("total_cpu", statree.Float(s.TotalCPU)),
		statree.F("memory_used_mb", statree.Float(s.MemoryUsedMB)),
		statree.F("memory_total_mb", statree.Float(s.MemoryTotalMB)),
		statree.F("swap_used_mb", statree.Float(s.SwapUsedMB)),
		statree.F("swap_total_mb", statree.Float(s.SwapTotalMB)),
		statree.F("tx_bytes_mb", statree.Float(s.TxBytesMB)),
		statree.F("rx_bytes_mb", statree.Float(s.RxBytesMB)),
		statree.F("storage_free_gb", statree.Float(s.StorageFreeGB)),
		statree.F("storage_total_gb", statree.Float(s.StorageTotalGB)),
		statree.F("refresh_rate", statree.Float(s.RefreshRate)),
		statree.F("brightness", statree.Float(s.Brightness)),
		statree.F("cores", statree.Array(cores...)),
	)
}

func (c *CoreStats) tree() statree.Value {
	return statree.Object(
		statree.F("name", statree.Text(c.Name)),
		statree.F("usage", statree.Float(c.Usage)),
		statree.F("model_name", statree.Text(c.ModelName)),
		statree.F("cur_freq", statree.Float(c.CurFreq)),
		statree.F("min_freq", statree.Float(c.MinFreq)),
		statree.F("max_freq", statree.Float(c.MaxFreq)),
	)
}
