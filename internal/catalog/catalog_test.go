package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 5, c.Len())
	assert.Len(t, c.Active(), 4)

	job, ok := c.Get("seismology-data-engineer")
	require.True(t, ok)
	assert.Equal(t, "Seismology Data Engineer", job.Title)
	assert.Contains(t, job.Skills, "Go")

	intern, ok := c.Get("ml-research-intern")
	require.True(t, ok)
	assert.False(t, intern.Active)

	_, ok = c.Get("nope")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "jobs: ["},
		{"missing id", "jobs:\n  - title: A\n"},
		{"missing title", "jobs:\n  - id: a\n"},
		{"duplicate", "jobs:\n  - id: a\n    title: A\n  - id: a\n    title: B\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - id: ops\n    title: Ops\n    active: true\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty, err := Parse([]byte("jobs: []"))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Active())
}
