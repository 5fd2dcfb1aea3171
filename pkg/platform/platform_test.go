package platform

import (
	"runtime"
	"testing"
)

func TestProbeReportsHost(t *testing.T) {
	info := Probe()
	if info.OS != runtime.GOOS {
		t.Errorf("os = %q, want %q", info.OS, runtime.GOOS)
	}
	if info.NumCPU < 1 {
		t.Errorf("num_cpu = %d", info.NumCPU)
	}
	if info.PageSize < 512 {
		t.Errorf("page_size = %d", info.PageSize)
	}
}

func TestFeatureRegistry(t *testing.T) {
	if Feature("test-backend") {
		t.Fatal("feature registered before RegisterFeature")
	}
	RegisterFeature("test-backend")
	if !Feature("test-backend") {
		t.Fatal("feature not visible after RegisterFeature")
	}

	found := false
	for _, name := range FeatureNames() {
		if name == "test-backend" {
			found = true
		}
	}
	if !found {
		t.Error("feature missing from FeatureNames")
	}

	info := Probe()
	if !info.Features["test-backend"] {
		t.Error("feature missing from Probe snapshot")
	}
}
