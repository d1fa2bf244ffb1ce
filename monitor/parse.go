package monitor

import (
	"strconv"
	"strings"
)

// cpuTicks are the cumulative total/idle jiffies of one core, as read from
// /proc/stat. Usage is computed from the delta between two reads.
type cpuTicks struct {
	total uint64
	idle  uint64
}

// batchSample is everything parsed out of one probe batch. The have* flags
// drive the retain-previous-value policy: a section missing from the output
// leaves the corresponding fields at their previous values.
type batchSample struct {
	uptimeSeconds uint64
	haveUptime    bool

	batteryLevel  int
	batteryStatus BatteryStatus
	batteryTemp   float64
	haveBattery   bool

	txBytes uint64
	rxBytes uint64
	haveNet bool

	brightness  float64
	refreshRate float64
	haveDisplay bool

	ticks     []cpuTicks
	haveTicks bool
}

// parseBatch walks one batch's output lines. Sections are delimited by the
// echo markers in ProbeBatch; everything outside a section is tagged by its
// first token.
func parseBatch(lines []string, coreCount int) batchSample {
	sample := batchSample{ticks: make([]cpuTicks, coreCount)}
	inNet := false
	inDisplay := false
	brightnessSeen := false
	refreshSeen := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		switch line {
		case "NET_DATA":
			inNet = true
			continue
		case "NET_END":
			inNet = false
			continue
		case "DISPLAY_DATA":
			inDisplay = true
			continue
		case "DISPLAY_END":
			inDisplay = false
			continue
		}

		if inNet {
			iface, rx, tx, ok := parseNetDev(line)
			if ok && iface != "lo" {
				sample.rxBytes += rx
				sample.txBytes += tx
				sample.haveNet = true
			}
			continue
		}

		if inDisplay {
			if v, ok := strings.CutPrefix(line, "mBrightness="); ok && !brightnessSeen {
				sample.brightness, _ = strconv.ParseFloat(v, 64)
				brightnessSeen = true
				sample.haveDisplay = true
			} else if v, ok := strings.CutPrefix(line, "mActiveRenderFrameRate="); ok && !refreshSeen {
				sample.refreshRate, _ = strconv.ParseFloat(v, 64)
				refreshSeen = true
				sample.haveDisplay = true
			}
			continue
		}

		tag, rest, _ := strings.Cut(line, " ")

		switch {
		case tag == "UPTIME":
			secs := firstFloat(rest)
			sample.uptimeSeconds = uint64(secs)
			sample.haveUptime = true
		case tag == "level:":
			sample.batteryLevel, _ = strconv.Atoi(strings.TrimSpace(rest))
			sample.haveBattery = true
		case tag == "status:":
			code, _ := strconv.Atoi(strings.TrimSpace(rest))
			sample.batteryStatus = BatteryStatusFromCode(code)
			sample.haveBattery = true
		case tag == "temperature:":
			sample.batteryTemp = firstFloat(rest) / 10.0
			sample.haveBattery = true
		case tag == "cpu":
			// Aggregate line — per-core lines carry the index.
		case strings.HasPrefix(tag, "cpu"):
			idx, err := strconv.Atoi(tag[3:])
			if err != nil || idx >= coreCount {
				continue
			}
			total, idle := parseCPUStat(rest)
			sample.ticks[idx] = cpuTicks{total: total, idle: idle}
			sample.haveTicks = true
		}
	}
	return sample
}

// parseCPUStat sums the first 8 numeric fields of a /proc/stat cpu line.
// Fields 3 (idle) and 4 (iowait) count as idle time.
func parseCPUStat(rest string) (total, idle uint64) {
	fields := strings.Fields(rest)
	for i, tok := range fields {
		if i >= 8 {
			break
		}
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			continue
		}
		total += v
		if i == 3 || i == 4 {
			idle += v
		}
	}
	return total, idle
}

// parseNetDev parses one /proc/net/dev line: "iface: rx_bytes ... tx_bytes ...".
// rx_bytes is field 0 after the colon, tx_bytes is field 8.
func parseNetDev(line string) (iface string, rx, tx uint64, ok bool) {
	name, rest, found := strings.Cut(line, ":")
	if !found {
		return "", 0, 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) < 10 {
		return "", 0, 0, false
	}
	rx, _ = strconv.ParseUint(fields[0], 10, 64)
	tx, _ = strconv.ParseUint(fields[8], 10, 64)
	return strings.TrimSpace(name), rx, tx, true
}

// coreUsage computes percent busy from two tick samples. Returns the
// previous usage when the delta is empty (first read or counter reset).
func coreUsage(prev, cur cpuTicks, fallback float64) float64 {
	dt := cur.total - prev.total
	if cur.total < prev.total || dt == 0 {
		return fallback
	}
	di := cur.idle - prev.idle
	if cur.idle < prev.idle {
		di = 0
	}
	return float64(dt-di) / float64(dt) * 100.0
}
