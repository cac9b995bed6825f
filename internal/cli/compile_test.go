package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resgate/internal/compiler"
)

// writeSpec writes a CUE file into dir and returns its path.
func writeSpec(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const tagSpec = `package specs

resource: Tag: {
	fields: {
		id:    {type: "string", primary_key: true}
		label: string
	}
	actions: read: {kind: "read"}
	interfaces: get_tag: {action: "read", get_by: ["id"]}
}
`

func TestCompileValidSpecs(t *testing.T) {
	stdout, _, err := runCLI(t, "compile", specsDir)
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ Compiled 2 resource(s)")
	assert.Contains(t, stdout, "Post: 4 field(s), 3 action(s), 0 calculation(s), 3 interface(s)")
	assert.Contains(t, stdout, "User: 4 field(s), 5 action(s), 1 calculation(s), 8 interface(s)")
}

func TestCompileValidSpecsJSON(t *testing.T) {
	stdout, _, err := runCLI(t, "compile", specsDir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Resources, 2)
	assert.Equal(t, "Post", resp.Data.Resources[0].Name)
	assert.Equal(t, "User", resp.Data.Resources[1].Name)
}

func TestCompileSpecsFromFlag(t *testing.T) {
	stdout, _, err := runCLI(t, "compile", "--specs", specsDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Compiled 2 resource(s)")
}

func TestCompileOutputToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ir.json")

	stdout, _, err := runCLI(t, "compile", specsDir, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote IR to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Resources, 2)
	assert.Equal(t, "User", result.Resources[1].Name)
}

func TestCompileLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "missing directory",
			setup:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") },
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "empty directory",
			setup:    func(t *testing.T) string { return t.TempDir() },
			wantCode: ErrCodeNoFiles,
		},
		{
			name: "not a directory",
			setup: func(t *testing.T) string {
				return writeSpec(t, t.TempDir(), "tag.cue", tagSpec)
			},
			wantCode: ErrCodeNotFound,
		},
		{
			name: "cue syntax error",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeSpec(t, dir, "broken.cue", "package specs\n\nresource: Tag: {\n")
				return dir
			},
			wantCode: ErrCodeBuildFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := runCLI(t, "compile", tt.setup(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestCompileNoResources(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "empty.cue", "package specs\n\nversion: 1\n")

	stdout, _, err := runCLI(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "no resources found in specs")
}

func TestCompileInvalidResource(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "tag.cue", tagSpec)
	writeSpec(t, dir, "ghost.cue", "package specs\n\nresource: Ghost: {}\n")

	stdout, _, err := runCLI(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Compilation failed")
	assert.Contains(t, stdout, "  "+compiler.ErrNoFields+": ")
	assert.Contains(t, stdout, "ghost.cue:")
	assert.Contains(t, stdout, "resource.Ghost: fields: at least one field is required")
	assert.NotContains(t, stdout, "Resources:")
}

func TestCompileInvalidResourceJSON(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "tag.cue", `package specs

resource: Tag: {
	fields: {
		id:    {type: "string", primary_key: true}
		label: string
	}
	actions: create: {kind: "create", accept: ["label", "color"]}
}
`)

	stdout, _, err := runCLI(t, "compile", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  CLIError   `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, compiler.ErrUnknownField, resp.Error.Code)
	require.Len(t, resp.Data, 1)
	assert.Contains(t, resp.Data[0].Message, "Tag.actions.create.accept[1]")
}

func TestCompileVerboseOutput(t *testing.T) {
	_, stderr, err := runCLI(t, "compile", specsDir, "-v")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Found 2 CUE file(s)")
	assert.Contains(t, stderr, "Validating resource: User")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "b.cue", tagSpec)
	writeSpec(t, dir, "nested/a.cue", tagSpec)
	writeSpec(t, dir, "notes.txt", "not cue")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.cue"),
		filepath.Join(dir, "nested", "a.cue"),
	}, files)
}

func TestLoadSpecs_FailFast(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "a.cue", "package specs\n\nresource: Alpha: {}\n")
	writeSpec(t, dir, "b.cue", "package specs\n\nresource: Beta: {}\n")

	_, all := LoadSpecs(dir, LoadModeCollectAll)
	assert.Len(t, all, 2)

	result, first := LoadSpecs(dir, LoadModeFailFast)
	require.NotNil(t, result)
	require.Len(t, first, 1)
	assert.Contains(t, first[0].Error(), "resource.Alpha")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"fields", compiler.ErrNoFields},
		{"type", compiler.ErrInvalidFieldType},
		{"default", compiler.ErrInvalidDefault},
		{"cue", ErrCodeBuildFailed},
		{"actions.read.kind", compiler.ErrInvalidActionKind},
		{"calculations.full_name.expr", compiler.ErrInvalidExpression},
		{"interfaces.get_user", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestCalculateStats(t *testing.T) {
	result, errs := LoadSpecs(specsDir, LoadModeCollectAll)
	require.Empty(t, errs)

	stats := calculateStats(&CompilationResult{Resources: result.Schemas})
	assert.Equal(t, CompilationStats{
		ResourceCount:     2,
		TotalFields:       8,
		TotalActions:      8,
		TotalCalculations: 1,
		TotalInterfaces:   11,
	}, stats)
}

func TestCompileVerboseOutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "ir.json")

	stdout, stderr, err := runCLI(t, "compile", specsDir, "--output", out, "--format", "json", "-v")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Wrote 2 resource(s) to "+out)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "verbose lines stay off stdout")
	assert.Equal(t, "ok", resp.Status)
}

func TestCompileUnwritableOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "ir.json")

	stdout, _, err := runCLI(t, "compile", specsDir, "-o", out)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error ["+ErrCodeWriteFailed+"]")
}
