package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// specsDir is the shared fixture directory with the User and Post resources.
const specsDir = "../../testdata/specs"

// runCLI executes the root command with args and returns stdout, stderr
// and the command error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// tempDB returns a database path inside a per-test directory.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "resgate.db")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "resgate", cmd.Use)
	assert.Contains(t, cmd.Long, "request journal")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "invoke", "can", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"verbose", "v", "false"},
		{"format", "", "text"},
		{"config", "", ""},
		{"db", "", ""},
		{"specs", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestSubcommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"compile", "output", ""},
		{"invoke", "args", "[]"},
		{"invoke", "opts", "{}"},
		{"can", "args", "[]"},
		{"can", "opts", "{}"},
		{"test", "update", "false"},
		{"test", "filter", ""},
		{"trace", "limit", "0"},
		{"trace", "request", ""},
		{"trace", "interface", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			flag := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, flag)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestCommandHelp(t *testing.T) {
	stdout, _, err := runCLI(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "resgate")
	assert.Contains(t, stdout, "RESGATE_DB", "usage lists the environment variables")
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("text"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := runCLI(t, "validate", specsDir, "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootOptions_Setup(t *testing.T) {
	t.Run("flags override config", func(t *testing.T) {
		opts := &RootOptions{Database: "override.db", SpecsDir: "defs"}
		require.NoError(t, opts.setup(&bytes.Buffer{}))
		require.NotNil(t, opts.Config)
		assert.Equal(t, "override.db", opts.Config.Store.Path)
		assert.Equal(t, "defs", opts.Config.Specs.Dir)
		assert.NotNil(t, opts.Logger)
	})

	t.Run("verbose logs at debug", func(t *testing.T) {
		var buf bytes.Buffer
		opts := &RootOptions{Verbose: true}
		require.NoError(t, opts.setup(&buf))
		opts.Logger.Debug("probe")
		assert.Contains(t, buf.String(), "probe")
	})

	t.Run("missing config file", func(t *testing.T) {
		opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}
		err := opts.setup(&bytes.Buffer{})
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestRootOptions_SpecsDir(t *testing.T) {
	opts := &RootOptions{SpecsDir: "flag-dir"}
	assert.Equal(t, "flag-dir", opts.specsDir(nil))
	assert.Equal(t, "arg-dir", opts.specsDir([]string{"arg-dir"}))

	require.NoError(t, opts.setup(&bytes.Buffer{}))
	assert.Equal(t, "flag-dir", opts.specsDir(nil), "the flag is copied into the config")
}

func TestRootOptions_LoggerWithoutSetup(t *testing.T) {
	opts := &RootOptions{}
	require.NotNil(t, opts.logger())
	opts.logger().Info("discarded")
}
