// Package testing has helpers for testing rendered components.
package testing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheLab-ms/formcheckout/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Render renders a component and fails the test on error.
func Render(t *testing.T, component templates.Component) string {
	t.Helper()

	var buf strings.Builder
	require.NoError(t, component.Render(t.Context(), &buf), "rendering component")
	return buf.String()
}

// RenderSnapshot compares a rendered component against the fixture at fixturePath.
// Set RENDER_SNAPSHOTS=1 to write the current output to the fixture instead.
func RenderSnapshot(t *testing.T, component templates.Component, fixturePath string) {
	t.Helper()
	rendered := Render(t, component)

	if os.Getenv("RENDER_SNAPSHOTS") != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(fixturePath), 0755))
		require.NoError(t, os.WriteFile(fixturePath, []byte(rendered), 0644))
		t.Logf("updated fixture: %s", fixturePath)
		return
	}

	expected, err := os.ReadFile(fixturePath)
	require.NoError(t, err, "reading fixture %s - run the tests with RENDER_SNAPSHOTS=1 to generate it", fixturePath)
	assert.Equal(t, string(expected), rendered, "rendered output does not match %s", fixturePath)
}

// RenderSnapshotWithName snapshots into fixtures/<test name><suffix>.html.
func RenderSnapshotWithName(t *testing.T, component templates.Component, suffix string) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	RenderSnapshot(t, component, filepath.Join("fixtures", name+suffix+".html"))
}
