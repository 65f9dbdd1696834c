package diffmodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/cip-agent/internal/types"
)

const sampleDiff = `diff --git a/mod.py b/mod.py
--- a/mod.py
+++ b/mod.py
@@ -1,2 +1,2 @@
 def add(x, y):
-    return x - y
+    return x + y
`

func TestParseRoundTrip(t *testing.T) {
	parsed, err := Parse(sampleDiff)
	require.NoError(t, err)
	require.Len(t, parsed.Sections, 1)
	assert.Equal(t, "mod.py", parsed.Sections[0].NewPath)
	assert.Equal(t, []string{"mod.py"}, TouchedFiles(parsed))
	assert.Equal(t, 2, ChangedLOC(parsed))

	reserialized := Reserialize(parsed)
	again, err := Parse(reserialized)
	require.NoError(t, err)
	assert.ElementsMatch(t, TouchedFiles(parsed), TouchedFiles(again))
	assert.Equal(t, ChangedLOC(parsed), ChangedLOC(again))
}

func TestParseRejectsMissingHeader(t *testing.T) {
	_, err := Parse("not a diff")
	assert.Error(t, err)
}

func TestParseRejectsHunkBeforeFileHeader(t *testing.T) {
	_, err := Parse("@@ -1,2 +1,2 @@\n-a\n+b\n")
	assert.Error(t, err)
}

func TestRequireUnifiedDiffRejectsSuspiciousDoubleColon(t *testing.T) {
	diff := "diff --git a/mod.py b/mod.py\n@@ -1,1 +1,1 @@\n+def add(x, y)::\n"
	err := RequireUnifiedDiff(diff)
	assert.Error(t, err)
}

func spans() []types.AstSpan {
	return []types.AstSpan{{File: "mod.py", StartLine: 1, EndLine: 2}}
}

func TestEnsureWithinLimitsAcceptsInScopeDiff(t *testing.T) {
	err := EnsureWithinLimits(sampleDiff, LimitOptions{
		AllowedFiles: map[string]bool{"mod.py": true},
		MaxLOC:       10,
		MaxFiles:     1,
		TargetSpans:  spans(),
	})
	assert.NoError(t, err)
}

func TestEnsureWithinLimitsRejectsFileOutsideAllowedSet(t *testing.T) {
	err := EnsureWithinLimits(sampleDiff, LimitOptions{
		AllowedFiles: map[string]bool{"other.py": true},
		MaxLOC:       10,
		MaxFiles:     1,
		TargetSpans:  spans(),
	})
	assert.Error(t, err)
}

func TestEnsureWithinLimitsRejectsTooManyLines(t *testing.T) {
	err := EnsureWithinLimits(sampleDiff, LimitOptions{
		AllowedFiles: map[string]bool{"mod.py": true},
		MaxLOC:       1,
		MaxFiles:     1,
		TargetSpans:  spans(),
	})
	assert.Error(t, err)
}

func TestEnsureWithinLimitsRejectsEditOutsideSpan(t *testing.T) {
	diff := `diff --git a/mod.py b/mod.py
--- a/mod.py
+++ b/mod.py
@@ -10,2 +10,2 @@
 def add(x, y):
-    return x - y
+    return x + y
`
	err := EnsureWithinLimits(diff, LimitOptions{
		AllowedFiles: map[string]bool{"mod.py": true},
		MaxLOC:       10,
		MaxFiles:     1,
		TargetSpans:  spans(),
	})
	assert.Error(t, err)
}

func TestEnsureWithinLimitsRejectsSignatureChange(t *testing.T) {
	diff := `diff --git a/mod.py b/mod.py
--- a/mod.py
+++ b/mod.py
@@ -1,2 +1,2 @@
-def add(x, y):
+def add(x, y, z):
     return x + y
`
	err := EnsureWithinLimits(diff, LimitOptions{
		AllowedFiles: map[string]bool{"mod.py": true},
		MaxLOC:       10,
		MaxFiles:     1,
		TargetSpans:  spans(),
	})
	assert.Error(t, err)
}

func TestEnsureWithinLimitsAllowsSignatureChangeWhenPermitted(t *testing.T) {
	diff := `diff --git a/mod.py b/mod.py
--- a/mod.py
+++ b/mod.py
@@ -1,2 +1,2 @@
-def add(x, y):
+def add(x, y, z):
     return x + y
`
	err := EnsureWithinLimits(diff, LimitOptions{
		AllowedFiles:   map[string]bool{"mod.py": true},
		MaxLOC:         10,
		MaxFiles:       1,
		TargetSpans:    spans(),
		AllowAPIChange: true,
	})
	assert.NoError(t, err)
}

func TestApplyHunkToLines(t *testing.T) {
	parsed, err := Parse(sampleDiff)
	require.NoError(t, err)
	original := []string{"def add(x, y):\n", "    return x - y\n"}
	patched := ApplyHunkToLines(original, parsed.Sections[0].Hunks[0])
	assert.Equal(t, []string{"def add(x, y):\n", "    return x + y\n"}, patched)
}

func TestManualApplyPatchesFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.py"), []byte("def add(x, y):\n    return x - y\n"), 0o644))

	require.NoError(t, ManualApply(sampleDiff, dir))

	patched, err := os.ReadFile(filepath.Join(dir, "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "def add(x, y):\n    return x + y\n", string(patched))
}

const twoHunkDiff = `diff --git a/mod.py b/mod.py
--- a/mod.py
+++ b/mod.py
@@ -1,2 +1,2 @@
 def add(x, y):
-    return x - y
+    return x + y
@@ -3,2 +3,2 @@
 def sub(x, y):
-    return x + y
+    return x - y
`

// A file section with two hunks must be applied with one continuous
// pointer: if ApplyHunkToLines were called once per hunk against the
// already-patched output, the second hunk would walk from line 0
// again instead of continuing from where the first hunk left off.
func TestApplyHunkToLinesHandlesMultipleHunksInOneSection(t *testing.T) {
	parsed, err := Parse(twoHunkDiff)
	require.NoError(t, err)
	require.Len(t, parsed.Sections[0].Hunks, 2)

	original := []string{
		"def add(x, y):\n",
		"    return x - y\n",
		"def sub(x, y):\n",
		"    return x + y\n",
	}
	patched := ApplyHunkToLines(original, flattenHunks(parsed.Sections[0].Hunks))
	assert.Equal(t, []string{
		"def add(x, y):\n",
		"    return x + y\n",
		"def sub(x, y):\n",
		"    return x - y\n",
	}, patched)
}

func TestManualApplyHandlesMultipleHunksInOneSection(t *testing.T) {
	dir := t.TempDir()
	original := "def add(x, y):\n    return x - y\ndef sub(x, y):\n    return x + y\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.py"), []byte(original), 0o644))

	require.NoError(t, ManualApply(twoHunkDiff, dir))

	patched, err := os.ReadFile(filepath.Join(dir, "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, "def add(x, y):\n    return x + y\ndef sub(x, y):\n    return x - y\n", string(patched))
}

func TestNormalizeDiffSynthesizesHeaders(t *testing.T) {
	diff := "diff --git a/mod.py b/mod.py\n@@ -1,1 +1,1 @@\n-a\n+b\n"
	normalized := NormalizeDiff(diff)
	assert.Contains(t, normalized, "--- a/mod.py")
	assert.Contains(t, normalized, "+++ b/mod.py")
}
