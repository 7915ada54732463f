package cmd

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.24.11",
		Main:      debug.Module{Version: "v1.2.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "3f2c9e1a7b4d5e6f7a8b9c0d"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	t.Run("embedded metadata", func(t *testing.T) {
		bi := resolveBuildInfo("", "", info)
		assert.Equal(t, buildInfo{
			Version:   "v1.2.0",
			Commit:    "3f2c9e1a7b4d",
			Modified:  true,
			BuildDate: "2026-10-01T12:00:00Z",
			GoVersion: "go1.24.11",
		}, bi)
	})

	t.Run("ldflags win", func(t *testing.T) {
		bi := resolveBuildInfo("v9.9.9", "2026-01-01", info)
		assert.Equal(t, "v9.9.9", bi.Version)
		assert.Equal(t, "2026-01-01", bi.BuildDate)
	})

	t.Run("devel build without metadata", func(t *testing.T) {
		bi := resolveBuildInfo("", "", &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
		assert.Equal(t, "dev", bi.Version)
		assert.Equal(t, "unknown", bi.BuildDate)
		assert.Equal(t, runtime.Version(), bi.GoVersion)
		assert.Empty(t, bi.Commit)
	})

	t.Run("no build info", func(t *testing.T) {
		bi := resolveBuildInfo("", "", nil)
		assert.Equal(t, "dev", bi.Version)
	})
}
