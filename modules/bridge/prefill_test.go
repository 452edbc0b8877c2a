package bridge

import (
	"context"
	"io"
	"strings"
	"testing"

	snaptest "github.com/TheLab-ms/formcheckout/internal/testing"
	"github.com/TheLab-ms/formcheckout/internal/templates"
	"github.com/stretchr/testify/assert"
)

func TestPrefillScriptSnapshot(t *testing.T) {
	tests := []struct {
		name string
		data *prefillData
	}{
		{name: "first_name", data: &prefillData{FirstName: "Jane"}},
		{name: "email", data: &prefillData{Email: "jane@example.com"}},
		{name: "both", data: &prefillData{FirstName: "Jane", Email: "jane@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			component := templates.ComponentFunc(func(ctx context.Context, w io.Writer) error {
				return prefillScript.Execute(w, tt.data)
			})
			snaptest.RenderSnapshotWithName(t, component, "")
		})
	}
}

func TestPrefillScriptEscaping(t *testing.T) {
	component := templates.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return prefillScript.Execute(w, &prefillData{FirstName: `Ann"</script><b>`, Email: "a&b@example.com"})
	})
	out := snaptest.Render(t, component)

	assert.Equal(t, 1, strings.Count(out, "</script>"))
	assert.NotContains(t, out, "<b>")
	assert.NotContains(t, out, `Ann"`)
	assert.NotContains(t, out, "a&b")
}
