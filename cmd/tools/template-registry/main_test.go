package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-assistant/pkg/registry"
)

func runTool(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExportThenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")

	code, out, _ := runTool("export", "-out", path)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Exported 11 templates")

	code, _, stderr := runTool("set", "-path", path, "-type", "cover", "-field", "title", "-value", "Our proposal")
	require.Equal(t, 0, code, stderr)

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	cover, ok := reg.Lookup("cover")
	require.True(t, ok)
	assert.Equal(t, "Our proposal", cover.Title)
	assert.Equal(t, "title-center", cover.Layout)

	code, out, _ = runTool("validate", "-path", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "validation passed")
}

func TestSet_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.Equal(t, 0, run([]string{"export", "-out", path}, &bytes.Buffer{}, &bytes.Buffer{}))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing type", []string{"set", "-path", path, "-field", "title"}, "type and field are required"},
		{"unknown template", []string{"set", "-path", path, "-type", "outro", "-field", "title"}, "template outro not found"},
		{"unknown field", []string{"set", "-path", path, "-type", "cover", "-field", "colour"}, "unknown field: colour"},
		{"empty layout", []string{"set", "-path", path, "-type", "cover", "-field", "layout", "-value", ""}, "layout is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runTool(tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.json")

	code, _, stderr := runTool("add", "-path", path, "-type", "case_study", "-title", "Case study", "-layout", "two-column")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = runTool("add", "-path", path, "-type", "case_study", "-layout", "two-column")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "already exists")

	code, out, _ := runTool("validate", "-path", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Found 12 templates")
}

func TestValidate_RejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.json")
	content := `{"templates":[{"type":"cover","layout":"a"},{"type":"cover","layout":"b"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	code, _, stderr := runTool("validate", "-path", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "duplicate type")
}

func TestRun_Usage(t *testing.T) {
	code, out, _ := runTool()
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Usage: template-registry")

	code, _, _ = runTool("help")
	assert.Equal(t, 0, code)
}
