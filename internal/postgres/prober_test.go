package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-s3-backup/internal/errors"
)

type fakeRunner struct {
	commands []string
	output   string
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, command string, sensitive bool) (string, error) {
	f.commands = append(f.commands, command)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func TestProbeVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{name: "plain version", output: "16.2", want: "pg16"},
		{name: "packaged version", output: "14.1 (Debian 14.1-1.pgdg110+1)", want: "pg14"},
		{name: "single component", output: "17", want: "pg17"},
		{name: "leading whitespace already trimmed by runner", output: "13.3", want: "pg13"},
		{name: "non-numeric major", output: "devel (head)", wantErr: true},
		{name: "empty output", output: "", wantErr: true},
		{name: "dot first", output: ".5 broken", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{output: tt.output}
			p := NewProber(r, "-h db -p 5432 -U backup", "", nil)

			tag, err := p.ProbeVersion(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeVersion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tag)

			require.Len(t, r.commands, 1)
			assert.Contains(t, r.commands[0], "psql -h db -p 5432 -U backup")
			assert.Contains(t, r.commands[0], "SHOW server_version;")
		})
	}
}

func TestProbeVersion_CommandFailure(t *testing.T) {
	r := &fakeRunner{err: fmt.Errorf("connection refused")}
	p := NewProber(r, "-h db -p 5432 -U backup", "", nil)

	_, err := p.ProbeVersion(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeVersion))
}

func TestListTargets_SingleDatabaseOverrideSkipsCatalogQuery(t *testing.T) {
	r := &fakeRunner{}
	p := NewProber(r, "-h db -p 5432 -U backup", "orders", nil)

	targets, err := p.ListTargets(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, targets)
	assert.Empty(t, r.commands, "the server must not be queried with an override set")
}

func TestListTargets_CatalogOrderIsPreserved(t *testing.T) {
	r := &fakeRunner{output: "zeta\nalpha\nmiddle"}
	p := NewProber(r, "-h db -p 5432 -U backup", "", nil)

	targets, err := p.ListTargets(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "middle"}, targets)

	require.Len(t, r.commands, 1)
	assert.Contains(t, r.commands[0], "datistemplate = false")
	assert.Contains(t, r.commands[0], "'postgres', 'template0', 'template1'")
}

func TestListTargets_EmptyCatalogIsNotAnError(t *testing.T) {
	r := &fakeRunner{output: ""}
	p := NewProber(r, "-h db -p 5432 -U backup", "", nil)

	targets, err := p.ListTargets(context.Background())

	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestListTargets_CommandFailure(t *testing.T) {
	r := &fakeRunner{err: fmt.Errorf("connection refused")}
	p := NewProber(r, "-h db -p 5432 -U backup", "", nil)

	_, err := p.ListTargets(context.Background())

	assert.Error(t, err)
}
