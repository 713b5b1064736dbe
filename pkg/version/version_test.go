package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuildVars(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })
	Version, Commit, Date = version, commit, date
}

func TestStringShortensCommit(t *testing.T) {
	setBuildVars(t, "v1.2.3", "abcdef0123456789", "2026-01-02T00:00:00Z")
	assert.Equal(t, "v1.2.3+abcdef012345", String())
}

func TestDetailed(t *testing.T) {
	setBuildVars(t, "v1.2.3", "abcdef0123456789", "2026-01-02T00:00:00Z")
	out := Detailed("")
	assert.Contains(t, out, "bua v1.2.3+abcdef012345")
	assert.Contains(t, out, "Built: 2026-01-02T00:00:00Z")
}
