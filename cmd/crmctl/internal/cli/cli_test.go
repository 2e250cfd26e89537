package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"seed-templates"},
		{"enqueue", "pending"},
		{"enqueue", "bulk"},
		{"run-workflow"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestParseUUIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ids, err := parseUUIDs([]string{a.String(), " " + b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = parseUUIDs([]string{a.String(), "nope"})
	assert.EqualError(t, err, `invalid id "nope"`)
}

func TestWorkspaceFlag(t *testing.T) {
	t.Cleanup(func() { workspaceFlag = "" })

	workspaceFlag = ""
	id, err := workspaceID()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	want := uuid.New()
	workspaceFlag = want.String()
	id, err = workspaceID()
	require.NoError(t, err)
	assert.Equal(t, want, id)

	workspaceFlag = "acme"
	_, err = workspaceID()
	assert.Error(t, err)
}

func TestLoadSeeds(t *testing.T) {
	defaults, err := loadSeeds(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, defaults)

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`templates:
  - name: renewal
    subject: "Your plan renews soon, {{first_name}}"
    body_text: "Hi {{first_name}}, your plan renews on {{date}}."
`), 0o600))
	seeds, err := loadSeeds([]string{path})
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "renewal", seeds[0].Name)

	_, err = loadSeeds([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestBulkRejectsInvalidIDsBeforeConnecting(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"enqueue", "bulk", "not-a-uuid"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute(context.Background())
	assert.EqualError(t, err, `invalid id "not-a-uuid"`)
}
