package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
)

// testEnv runs the CLI in a temp directory with a mock AI provider.
type testEnv struct {
	dir        string
	configPath string
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "france.txt"), []byte("The capital of France is Paris."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "germany.txt"), []byte("Berlin is the capital of Germany."), 0o644))

	cfg := config.Default()
	cfg.Source.Dir = dataDir
	cfg.Store.Dir = filepath.Join(dir, "store")
	configPath := filepath.Join(dir, "docrag.yaml")
	require.NoError(t, config.Write(configPath, cfg, false))

	orig := openAssistant
	openAssistant = func(ctx context.Context, cfg *config.Config, opts ...docrag.Option) (*docrag.Assistant, error) {
		opts = append(opts, docrag.WithProvider(mock.NewMockProvider()))
		return docrag.Open(ctx, cfg, opts...)
	}
	t.Cleanup(func() { openAssistant = orig })

	return &testEnv{
		dir:        dir,
		configPath: configPath,
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
	}
}

func (e *testEnv) run(args ...string) error {
	e.stdout.Reset()
	e.stderr.Reset()
	app := newApp()
	app.Writer = e.stdout
	app.ErrWriter = e.stderr
	return app.Run(append([]string{"docrag", "--config", e.configPath}, args...))
}

func TestBuildCommand(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("build"))
	assert.Contains(t, env.stdout.String(), "Index built: 2 passages")

	require.NoError(t, env.run("build"))
	assert.Contains(t, env.stdout.String(), "Index loaded: 2 passages")

	require.NoError(t, env.run("build", "--force"))
	assert.Contains(t, env.stdout.String(), "Index built: 2 passages")
}

func TestSearchCommand(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("search", "--top-k", "1", "capital", "of", "France"))
	out := env.stdout.String()
	assert.Contains(t, out, "Found 1 hits")
	assert.Contains(t, out, "france.txt")
	assert.Contains(t, out, "Paris")

	t.Run("default top-k returns everything", func(t *testing.T) {
		require.NoError(t, env.run("search", "capital"))
		assert.Contains(t, env.stdout.String(), "Found 2 hits")
	})

	t.Run("missing query", func(t *testing.T) {
		err := env.run("search")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query is required")
	})

	t.Run("invalid top-k", func(t *testing.T) {
		err := env.run("search", "--top-k", "0", "capital")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrInvalidTopK)
	})
}

func TestAskCommand(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run("ask", "--show-context", "What is the capital of France?"))
	out := env.stdout.String()
	assert.Contains(t, out, "ANSWER: ")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "france.txt")
}

func TestInspectCommand(t *testing.T) {
	env := newTestEnv(t)

	t.Run("before build", func(t *testing.T) {
		err := env.run("inspect")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrMissingStore)
	})

	require.NoError(t, env.run("build"))
	require.NoError(t, env.run("inspect"))
	out := env.stdout.String()
	assert.Contains(t, out, "Model:      "+mock.DefaultModelID)
	assert.Contains(t, out, "Passages:   2")
	assert.Contains(t, out, "Sources:    2")
}

func TestConfigInitCommand(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "conf", "docrag.yaml")

	require.NoError(t, env.run("config", "init", "--path", path))
	assert.FileExists(t, path)
	assert.Contains(t, env.stdout.String(), "Wrote "+path)

	cfg, err := config.Load(path, config.WithEnvFile(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Chunk, cfg.Chunk)

	err = env.run("config", "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, env.run("config", "init", "--path", path, "--force"))
}

func TestMissingConfigFile(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"docrag", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "inspect"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestDescribeSource(t *testing.T) {
	assert.Equal(t, "a.pdf (page 3)", describeSource(core.Metadata{"source": "a.pdf", "page": 3}))
	assert.Equal(t, "b.csv (row 7)", describeSource(core.Metadata{"source": "b.csv", "row": 7}))
	assert.Equal(t, "c.xlsx (sheet Grades)", describeSource(core.Metadata{"source": "c.xlsx", "sheet": "Grades"}))
	assert.Equal(t, "d.txt", describeSource(core.Metadata{"source": "d.txt"}))
	assert.Equal(t, "unknown source", describeSource(core.Metadata{}))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n\nb   c", 10))
	assert.Equal(t, "abc...", snippet("abcdef", 3))
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
				assert.True(t, slog.Default().Enabled(context.Background(), tc.expected))
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newApp().Run([]string{"docrag", "--log-level", "invalid", "inspect"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		var levelFlag *cli.StringFlag
		for _, flag := range newApp().Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "log-level" {
				levelFlag = f
				break
			}
		}
		require.NotNil(t, levelFlag)
		assert.Contains(t, levelFlag.Aliases, "l")
		assert.Equal(t, "info", levelFlag.Value)
	})
}
