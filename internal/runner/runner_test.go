package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunner_SuccessReturnsTrimmedStdout(t *testing.T) {
	r := NewShellRunner(nil, nil)

	out, err := r.Run(context.Background(), "echo '  hello  '", false)

	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestShellRunner_PipesAreSupported(t *testing.T) {
	r := NewShellRunner(nil, nil)

	out, err := r.Run(context.Background(), "printf 'a\\nb\\nc\\n' | wc -l", false)

	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestShellRunner_FailureCapturesExitCodeAndStderr(t *testing.T) {
	r := NewShellRunner(nil, nil)

	_, err := r.Run(context.Background(), "echo oops >&2; exit 3", false)

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "oops", cmdErr.Stderr)
}

func TestShellRunner_FailureCapturesStdoutToo(t *testing.T) {
	r := NewShellRunner(nil, nil)

	_, err := r.Run(context.Background(), "echo partial-output; exit 1", false)

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "partial-output", cmdErr.Stdout)
}

func TestShellRunner_InjectedEnvironmentReachesChild(t *testing.T) {
	r := NewShellRunner([]string{"PGPASSWORD=sekret"}, nil)

	out, err := r.Run(context.Background(), "printf '%s' \"$PGPASSWORD\"", false)

	require.NoError(t, err)
	assert.Equal(t, "sekret", out)
}

func TestShellRunner_SensitiveFailureRedactsCommand(t *testing.T) {
	r := NewShellRunner(nil, nil)

	_, err := r.Run(context.Background(), "openssl enc -k topsecret -in nonexistent", true)

	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "openssl ...", cmdErr.Command)
	assert.NotContains(t, cmdErr.Error(), "topsecret")
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		sensitive bool
		want      string
	}{
		{name: "not sensitive", command: "aws s3 ls s3://bucket/", sensitive: false, want: "aws s3 ls s3://bucket/"},
		{name: "sensitive keeps executable only", command: "openssl enc -k hunter2", sensitive: true, want: "openssl ..."},
		{name: "sensitive empty command", command: "", sensitive: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.command, tt.sensitive))
		})
	}
}

func TestShellRunner_ContextCancellation(t *testing.T) {
	r := NewShellRunner(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "sleep 10", false)

	assert.Error(t, err)
}
