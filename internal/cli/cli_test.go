//go:build unit

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hugolhafner/logstream/checkpoint"
	"github.com/hugolhafner/logstream/internal/config"
	"github.com/hugolhafner/logstream/logger"
	"github.com/hugolhafner/logstream/source"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoggen_ArgumentCount(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{},
		{"stream"},
		{"stream", "10"},
		{"stream", "10", "100", "extra"},
	} {
		out, err := execute(t, NewLoggenCommand(), args...)
		require.Error(t, err, args)
		require.True(t, IsUsageError(err))
		require.Contains(t, out, "Usage:")
	}
}

func TestLogproc_ArgumentCount(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{},
		{"stream", "us-east-1"},
		{"stream", "us-east-1", "1000"},
		{"stream", "us-east-1", "1000", "/tmp/out", "extra"},
	} {
		out, err := execute(t, NewLogprocCommand(), args...)
		require.Error(t, err, args)
		require.True(t, IsUsageError(err))
		require.Contains(t, out, "Usage:")
	}
}

func TestParseLoggenArgs(t *testing.T) {
	t.Parallel()

	a, err := parseLoggenArgs([]string{"access", "25", "1000"})
	require.NoError(t, err)
	require.Equal(t, loggenArgs{stream: "access", rate: 25, total: 1000}, a)

	for _, args := range [][]string{
		{"access", "fast", "10"},
		{"access", "0", "10"},
		{"access", "10", "-1"},
		{"access", "10", "0"},
		{"access", "10", "1e3"},
	} {
		_, err := parseLoggenArgs(args)
		require.Error(t, err, args)
		require.True(t, IsUsageError(err))
	}
}

func TestParseLogprocArgs(t *testing.T) {
	t.Parallel()

	a, err := parseLogprocArgs([]string{"access", "eu-west-1", "2500", "/data/out"})
	require.NoError(t, err)
	require.Equal(t, "access", a.stream)
	require.Equal(t, "eu-west-1", a.region)
	require.Equal(t, 2500*time.Millisecond, a.batchInterval)
	require.Equal(t, "/data/out", a.outputDir)

	for _, args := range [][]string{
		{"access", "eu-west-1", "soon", "/data/out"},
		{"access", "eu-west-1", "0", "/data/out"},
		{"access", "eu-west-1", "-5", "/data/out"},
		{"access", "eu-west-1", "100", ""},
	} {
		_, err := parseLogprocArgs(args)
		require.Error(t, err, args)
	}
}

func TestLoggen_UnparseableNumbersFailBeforeConnecting(t *testing.T) {
	t.Parallel()
	_, err := execute(t, NewLoggenCommand(), "access", "ten", "100")
	require.ErrorContains(t, err, "records-per-second")
}

func TestLogproc_InvalidFlagsFailValidation(t *testing.T) {
	t.Parallel()

	for _, flag := range []string{
		"--format=avro",
		"--compression=lz4",
		"--anonymizer=sha1",
		"--start=-3",
		"--max-restarts=-1",
		"--log-level=loud",
	} {
		out, err := execute(t, NewLogprocCommand(), "access", "eu-west-1", "1000", t.TempDir(), flag)
		require.ErrorContains(t, err, "invalid configuration", flag)
		require.False(t, IsUsageError(err))
		require.NotContains(t, out, "Usage:")
	}
}

func TestCommonFlags_Precedence(t *testing.T) {
	t.Setenv("LOGSTREAM_BROKERS", "env:9092")
	t.Setenv("LOGSTREAM_LOG_LEVEL", "warn")

	var common commonFlags
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	common.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--brokers=flag:9092,flag2:9092"}))

	cfg, err := common.load(cmd)
	require.NoError(t, err)
	require.Equal(t, []string{"flag:9092", "flag2:9092"}, cfg.Brokers)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestOpenCheckpoints_DefaultsToOutputDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Processor.OutputDir = t.TempDir()

	store, err := openCheckpoints(cfg, "access", logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(
		t, store.Save(ctx, checkpoint.Checkpoint{Partition: "0", Position: source.AtOffset(12), TickID: 1, UpdatedAt: time.Now()}),
	)
	require.NoError(t, store.Close())

	info, err := os.Stat(filepath.Join(cfg.Processor.OutputDir, config.DefaultCheckpointDir))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	reopened, err := openCheckpoints(cfg, "access", logger.NewNoopLogger())
	require.NoError(t, err)
	defer reopened.Close()

	cp, ok, err := reopened.Load(ctx, "0")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cp.Position.Equal(source.AtOffset(12)))
}

func TestOpenCheckpoints_InMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Processor.OutputDir = t.TempDir()
	cfg.Checkpoint.InMemory = true

	store, err := openCheckpoints(cfg, "access", logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(
		t, store.Save(ctx, checkpoint.Checkpoint{Partition: "0", Position: source.AtOffset(3), TickID: 1, UpdatedAt: time.Now()}),
	)
	require.NoError(t, store.Close())

	_, err = os.Stat(filepath.Join(cfg.Processor.OutputDir, config.DefaultCheckpointDir))
	require.True(t, os.IsNotExist(err))
}
