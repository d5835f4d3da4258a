package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashDeterministic(t *testing.T) {
	attrs := Attributes{
		"user_agent": "Mozilla/5.0",
		"screen":     "1920x1080",
		"timezone":   "Asia/Jakarta",
	}

	h1 := Hash(attrs)
	h2 := Hash(attrs)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestHashIgnoresMapOrder(t *testing.T) {
	a := Attributes{"a": "1", "b": "2", "c": "3"}
	b := Attributes{"c": "3", "a": "1", "b": "2"}

	assert.Equal(t, Hash(a), Hash(b))
}

func TestHashSensitiveToValues(t *testing.T) {
	base := Attributes{"user_agent": "Mozilla/5.0", "screen": "1920x1080"}
	changed := Attributes{"user_agent": "Mozilla/5.0", "screen": "1366x768"}

	assert.NotEqual(t, Hash(base), Hash(changed))
}

func TestHashResistsBoundaryAmbiguity(t *testing.T) {
	// Without length prefixes these two would serialize identically.
	a := Attributes{"ab": "c"}
	b := Attributes{"a": "bc"}

	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHashEmptyAttributes(t *testing.T) {
	assert.Equal(t, Hash(Attributes{}), Hash(nil))
}

func TestMatches(t *testing.T) {
	attrs := Attributes{"user_agent": "Mozilla/5.0"}
	bound := Hash(attrs)

	assert.True(t, Matches(attrs, bound))
	assert.False(t, Matches(Attributes{"user_agent": "curl/8.0"}, bound))
}

func TestDetectVMPhysicalDevice(t *testing.T) {
	report := DetectVM(Attributes{
		"user_agent":           "Mozilla/5.0 (X11; Linux x86_64) Chrome/126.0",
		"gpu_vendor":           "NVIDIA Corporation",
		"gpu_renderer":         "NVIDIA GeForce RTX 3060",
		"hardware_concurrency": "12",
		"device_memory_gb":     "32",
		"screen_resolution":    "2560x1440",
	})

	assert.False(t, report.LikelyVM)
	assert.Zero(t, report.Confidence)
	assert.Empty(t, report.Signals)
}

func TestDetectVMHypervisorGPU(t *testing.T) {
	report := DetectVM(Attributes{
		"gpu_renderer":         "VMware SVGA 3D",
		"hardware_concurrency": "2",
		"screen_resolution":    "1024x768",
	})

	// 0.4 (marker) + 0.2 (cores) + 0.15 (resolution) = 0.75
	assert.True(t, report.LikelyVM)
	assert.InDelta(t, 0.75, report.Confidence, 1e-9)
	assert.Len(t, report.Signals, 3)
}

func TestDetectVMConfidenceClamped(t *testing.T) {
	report := DetectVM(Attributes{
		"user_agent":           "qemu test agent",
		"gpu_vendor":           "VirtualBox",
		"gpu_renderer":         "llvmpipe (LLVM 15.0)",
		"hardware_concurrency": "1",
		"device_memory_gb":     "1",
		"screen_resolution":    "800x600",
	})

	assert.True(t, report.LikelyVM)
	assert.Equal(t, 1.0, report.Confidence)
}

func TestDetectVMBelowThresholdNotFlagged(t *testing.T) {
	report := DetectVM(Attributes{
		"hardware_concurrency": "2",
		"device_memory_gb":     "2",
	})

	// 0.4 total: suspicious but under the 0.5 threshold.
	assert.False(t, report.LikelyVM)
	assert.InDelta(t, 0.4, report.Confidence, 1e-9)
}

func TestDetectVMMissingAttributes(t *testing.T) {
	report := DetectVM(Attributes{})

	assert.False(t, report.LikelyVM)
	assert.Zero(t, report.Confidence)
}
