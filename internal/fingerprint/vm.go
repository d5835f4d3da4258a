package fingerprint

import (
	"strconv"
	"strings"
)

// VMSignal is one weighted contribution to the virtualization verdict.
type VMSignal struct {
	Reason string  `json:"reason"`
	Weight float64 `json:"weight"`
}

// VMReport is the outcome of the VM/emulator heuristic. Confidence is the
// clamped sum of signal weights; above LikelyVMThreshold the device is
// flagged as a likely VM. The flag is logged, not blocking, by default.
type VMReport struct {
	Confidence float64    `json:"confidence"`
	LikelyVM   bool       `json:"likely_vm"`
	Signals    []VMSignal `json:"signals"`
}

// LikelyVMThreshold is the confidence above which a device is flagged.
const LikelyVMThreshold = 0.5

// Substrings of known hypervisors in user agent / GPU vendor / renderer
// strings.
var hypervisorMarkers = []string{
	"virtualbox", "vmware", "qemu", "kvm", "hyper-v", "hyperv",
	"parallels", "xen", "bochs", "virtio", "llvmpipe", "swiftshader",
	"basic render driver", "vboxvga",
}

// Display resolutions that ship as defaults in common VM images.
var virtualResolutions = map[string]bool{
	"800x600":   true,
	"1024x768":  true,
	"1280x800":  true,
	"1152x864":  true,
	"1280x1024": true,
}

// DetectVM runs the weighted VM/emulator heuristic over the reported
// attributes. Missing attributes contribute nothing.
func DetectVM(attrs Attributes) VMReport {
	var report VMReport

	addSignal := func(reason string, weight float64) {
		report.Signals = append(report.Signals, VMSignal{Reason: reason, Weight: weight})
		report.Confidence += weight
	}

	if cores, err := strconv.Atoi(attrs["hardware_concurrency"]); err == nil && cores > 0 && cores <= 2 {
		addSignal("low core count", 0.2)
	}
	if memGB, err := strconv.ParseFloat(attrs["device_memory_gb"], 64); err == nil && memGB > 0 && memGB <= 2 {
		addSignal("low device memory", 0.2)
	}

	for _, field := range []string{"user_agent", "gpu_vendor", "gpu_renderer"} {
		v := strings.ToLower(attrs[field])
		if v == "" {
			continue
		}
		for _, marker := range hypervisorMarkers {
			if strings.Contains(v, marker) {
				addSignal("hypervisor marker in "+field, 0.4)
				break
			}
		}
	}

	if virtualResolutions[attrs["screen_resolution"]] {
		addSignal("common virtual display resolution", 0.15)
	}

	if report.Confidence > 1 {
		report.Confidence = 1
	}
	report.LikelyVM = report.Confidence > LikelyVMThreshold
	return report
}
