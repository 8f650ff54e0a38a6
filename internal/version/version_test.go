package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stub(t *testing.T, version, commit, built string, info *debug.BuildInfo) {
	t.Helper()

	oldV, oldC, oldB, oldRead := Version, GitCommit, BuildTime, readBuildInfo
	t.Cleanup(func() {
		Version, GitCommit, BuildTime, readBuildInfo = oldV, oldC, oldB, oldRead
	})

	Version, GitCommit, BuildTime = version, commit, built
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
}

func TestStampedVersion(t *testing.T) {
	stub(t, "v1.4.0", "0123456789abcdef", "2026-01-02T03:04:05Z", nil)

	assert.Equal(t, "v1.4.0", GetVersion())
	assert.Equal(t, "v1.4.0 (0123456)", GetShortVersion())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), GetBuildTime())
	assert.True(t, IsRelease())
	assert.Contains(t, GetDetailedVersion(), "Commit: 0123456789abcdef")
}

func TestVersionFromBuildInfo(t *testing.T) {
	stub(t, "dev", "unknown", "unknown", &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.time", Value: "2026-05-06T07:08:09Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "fedcba9876543210", GetGitCommit())
	assert.Equal(t, "dev-fedcba9", GetShortVersion())
	assert.False(t, IsRelease())

	info := GetBuildInfo()
	assert.True(t, info.Dirty)
	assert.Equal(t, 2026, info.BuildTime.Year())
	assert.Contains(t, GetDetailedVersion(), "(dirty)")
}

func TestNoBuildInfo(t *testing.T) {
	stub(t, "", "", "", nil)

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.True(t, GetBuildTime().IsZero())
	assert.Equal(t, "dev", GetShortVersion())
}
