// Package monitor is the producer side of the telemetry daemon: a single
// goroutine that measures the device on a fixed cadence and publishes one
// immutable tree per cycle into the snapshot store.
package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/theonuverse/pasmonux/discover"
	"github.com/theonuverse/pasmonux/snapshot"
)

// Config tunes the measurement loop.
type Config struct {
	// Interval between measurement cycles.
	Interval time.Duration `yaml:"interval"`
	// StorageEvery probes storage once per N ticks; it changes slowly and
	// statfs is comparatively expensive.
	StorageEvery int `yaml:"storage_every"`
	// Shell is the privileged shell binary for the batch probe.
	Shell string `yaml:"shell"`
	// DataMount is the filesystem whose free/total space is reported.
	DataMount string `yaml:"data_mount"`
	// SysRoot and ProcRoot exist so tests can point probes at fixtures.
	SysRoot  string `yaml:"sys_root"`
	ProcRoot string `yaml:"proc_root"`
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 500 * time.Millisecond
	}
	if c.StorageEvery <= 0 {
		c.StorageEvery = 60
	}
	if c.Shell == "" {
		c.Shell = "rish"
	}
	if c.DataMount == "" {
		c.DataMount = "/data"
	}
	if c.SysRoot == "" {
		c.SysRoot = "/sys"
	}
	if c.ProcRoot == "" {
		c.ProcRoot = "/proc"
	}
}

// Observer is called after every publish with the stats just published and
// the snapshot version they got. Observers must not block.
type Observer func(stats *SystemStats, version uint64)

// Monitor owns the measurement loop. All its state is confined to the loop
// goroutine; the only shared write is Store.Publish.
type Monitor struct {
	cfg    Config
	store  *snapshot.Store
	logger *slog.Logger
	runner BatchRunner

	paths  discover.DevicePaths
	device discover.StaticDeviceInfo

	observers []Observer

	prev      SystemStats
	prevTicks []cpuTicks
	tick      uint64

	storageFree  float64
	storageTotal float64
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithRunner supplies the privileged batch runner. Without one, privileged
// fields (uptime, battery, per-core usage, network, display) stay at their
// sentinel zero values.
func WithRunner(r BatchRunner) Option {
	return func(m *Monitor) { m.runner = r }
}

// WithObserver registers a post-publish callback.
func WithObserver(fn Observer) Option {
	return func(m *Monitor) { m.observers = append(m.observers, fn) }
}

// New creates a Monitor. It does not start measuring; call Run.
func New(store *snapshot.Store, paths discover.DevicePaths, device discover.StaticDeviceInfo, cfg Config, logger *slog.Logger, opts ...Option) *Monitor {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		paths:     paths,
		device:    device,
		prevTicks: make([]cpuTicks, len(device.Cores)),
	}
	// Static identity never changes; the retain policy carries it forward.
	m.prev.Manufacturer = device.Manufacturer
	m.prev.ProductModel = device.ProductModel
	m.prev.SOCModel = device.SOCModel
	m.prev.KernelVersion = device.KernelVersion
	m.prev.OSVersion = device.OSVersion
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run measures and publishes until ctx is cancelled. The first cycle runs
// immediately so the store never serves the placeholder for a full interval.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started", "interval", m.cfg.Interval, "cores", len(m.device.Cores))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.step()
	for {
		select {
		case <-ctx.Done():
			if m.runner != nil {
				if err := m.runner.Close(); err != nil {
					m.logger.Warn("probe shell close", "error", err)
				}
			}
			m.logger.Info("monitor stopped")
			return
		case <-ticker.C:
			m.step()
		}
	}
}

// step runs one full measurement cycle and publishes it.
func (m *Monitor) step() {
	stats := m.collect()
	m.store.Publish(stats.Tree())
	ver := m.store.Version()
	for _, ob := range m.observers {
		ob(&stats, ver)
	}
	m.prev = stats
	m.tick++
}

// collect builds one SystemStats. Every probe failure is recovered locally:
// the field keeps the previous cycle's value (zero before the first success)
// and the cycle still publishes.
func (m *Monitor) collect() SystemStats {
	prev := &m.prev

	stats := SystemStats{
		Manufacturer:  m.device.Manufacturer,
		ProductModel:  m.device.ProductModel,
		SOCModel:      m.device.SOCModel,
		KernelVersion: m.device.KernelVersion,
		OSVersion:     m.device.OSVersion,
	}

	stats.CPUTemp = m.floatProbe("cpu_temp", prev.CPUTemp, func() (float64, error) {
		return readThermal(m.paths.CPUTemp)
	})
	stats.GPUTemp = m.floatProbe("gpu_temp", prev.GPUTemp, func() (float64, error) {
		return readThermal(m.paths.GPUTemp)
	})
	stats.GPULoad = m.floatProbe("gpu_load", prev.GPULoad, func() (float64, error) {
		return readGPULoad(m.paths.GPULoad)
	})

	if ms, err := readMemInfo(filepath.Join(m.cfg.ProcRoot, "meminfo")); err != nil {
		m.logger.Warn("probe failed, keeping previous value", "probe", "meminfo", "error", err)
		stats.MemoryUsedMB = prev.MemoryUsedMB
		stats.MemoryTotalMB = prev.MemoryTotalMB
		stats.SwapUsedMB = prev.SwapUsedMB
		stats.SwapTotalMB = prev.SwapTotalMB
	} else {
		stats.MemoryUsedMB = max(ms.totalMB-ms.availMB, 0)
		stats.MemoryTotalMB = ms.totalMB
		stats.SwapUsedMB = max(ms.swapTotalMB-ms.swapFreeMB, 0)
		stats.SwapTotalMB = ms.swapTotalMB
	}

	if m.tick%uint64(m.cfg.StorageEvery) == 0 {
		free, total, err := readStorage(m.cfg.DataMount)
		if err != nil {
			m.logger.Warn("probe failed, keeping previous value", "probe", "storage", "error", err)
		} else {
			m.storageFree, m.storageTotal = free, total
		}
	}
	stats.StorageFreeGB = m.storageFree
	stats.StorageTotalGB = m.storageTotal

	m.collectBatch(&stats, prev)
	m.collectCores(&stats, prev)

	return stats
}

// collectBatch fills the privileged fields from one shell batch. Without a
// runner, or when the batch fails, every privileged field retains its
// previous value.
func (m *Monitor) collectBatch(stats *SystemStats, prev *SystemStats) {
	retain := func() {
		stats.UptimeSeconds = prev.UptimeSeconds
		stats.BatteryLevel = prev.BatteryLevel
		stats.BatteryStatus = prev.BatteryStatus
		stats.BatteryTemp = prev.BatteryTemp
		stats.TxBytesMB = prev.TxBytesMB
		stats.RxBytesMB = prev.RxBytesMB
		stats.RefreshRate = prev.RefreshRate
		stats.Brightness = prev.Brightness
	}

	if m.runner == nil {
		retain()
		return
	}

	lines, err := m.runner.Run()
	if err != nil {
		m.logger.Warn("probe batch failed, keeping previous values", "error", err)
		retain()
		return
	}

	sample := parseBatch(lines, len(m.device.Cores))

	if sample.haveUptime {
		stats.UptimeSeconds = sample.uptimeSeconds
	} else {
		stats.UptimeSeconds = prev.UptimeSeconds
	}
	if sample.haveBattery {
		stats.BatteryLevel = sample.batteryLevel
		stats.BatteryStatus = sample.batteryStatus
		stats.BatteryTemp = sample.batteryTemp
	} else {
		stats.BatteryLevel = prev.BatteryLevel
		stats.BatteryStatus = prev.BatteryStatus
		stats.BatteryTemp = prev.BatteryTemp
	}
	if sample.haveNet {
		const mb = 1024.0 * 1024.0
		stats.TxBytesMB = float64(sample.txBytes) / mb
		stats.RxBytesMB = float64(sample.rxBytes) / mb
	} else {
		stats.TxBytesMB = prev.TxBytesMB
		stats.RxBytesMB = prev.RxBytesMB
	}
	if sample.haveDisplay {
		stats.RefreshRate = sample.refreshRate
		stats.Brightness = sample.brightness
	} else {
		stats.RefreshRate = prev.RefreshRate
		stats.Brightness = prev.Brightness
	}

	if sample.haveTicks {
		m.usagesFromTicks(stats, prev, sample.ticks)
	}
}

// usagesFromTicks updates per-core usage from the tick deltas and remembers
// the raw ticks for the next cycle. The first sample has no delta, so usage
// stays at the previous value.
func (m *Monitor) usagesFromTicks(stats *SystemStats, prev *SystemStats, ticks []cpuTicks) {
	if stats.Cores == nil {
		stats.Cores = make([]CoreStats, len(m.device.Cores))
	}
	for i := range ticks {
		fallback := 0.0
		if i < len(prev.Cores) {
			fallback = prev.Cores[i].Usage
		}
		stats.Cores[i].Usage = coreUsage(m.prevTicks[i], ticks[i], fallback)
		m.prevTicks[i] = ticks[i]
	}
}

// collectCores finishes the per-core records: static info, current frequency,
// and the total_cpu mean across cores.
func (m *Monitor) collectCores(stats *SystemStats, prev *SystemStats) {
	if stats.Cores == nil {
		stats.Cores = make([]CoreStats, len(m.device.Cores))
		for i := range stats.Cores {
			if i < len(prev.Cores) {
				stats.Cores[i].Usage = prev.Cores[i].Usage
			}
		}
	}

	var usageSum float64
	for i := range stats.Cores {
		info := m.device.Cores[i]
		stats.Cores[i].Name = info.Name
		stats.Cores[i].ModelName = info.ModelName
		stats.Cores[i].MinFreq = info.MinFreq
		stats.Cores[i].MaxFreq = info.MaxFreq

		prevFreq := 0.0
		if i < len(prev.Cores) {
			prevFreq = prev.Cores[i].CurFreq
		}
		stats.Cores[i].CurFreq = m.floatProbe("cur_freq", prevFreq, func() (float64, error) {
			return readCoreFreq(m.cfg.SysRoot, i)
		})

		usageSum += stats.Cores[i].Usage
	}
	if len(stats.Cores) > 0 {
		stats.TotalCPU = usageSum / float64(len(stats.Cores))
	}
}

// floatProbe applies the retain-previous-value policy to one scalar probe.
func (m *Monitor) floatProbe(name string, prevVal float64, fn func() (float64, error)) float64 {
	v, err := fn()
	if err != nil {
		m.logger.Warn("probe failed, keeping previous value", "probe", name, "error", err)
		return prevVal
	}
	return v
}
