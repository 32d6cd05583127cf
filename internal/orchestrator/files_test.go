// internal/orchestrator/files_test.go
package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"codesentry/internal/model"
)

func TestFilterFiles(t *testing.T) {
	files := []model.ChangedFile{
		{Filename: "app/views.py", Status: "modified"},
		{Filename: "app/Models.PY", Status: "added"},
		{Filename: "app/old.py", Status: "removed"},
		{Filename: "app/migrations/0001_initial.py", Status: "added"},
		{Filename: "app/__init__.py", Status: "added"},
		{Filename: "tests/test_views.py", Status: "added"},
		{Filename: "README.md", Status: "modified"},
		{Filename: "stubs/api.pyi", Status: "modified"},
	}
	skip := []string{"/migrations/", "__init__.py", "/test_", "_test.py"}

	got := FilterFiles(files, []string{".py", ".pyi"}, skip)

	var names []string
	for _, f := range got {
		names = append(names, f.Filename)
	}
	assert.Equal(t, []string{"app/views.py", "app/Models.PY", "stubs/api.pyi"}, names)
}

func TestContentFromPatch(t *testing.T) {
	patch := "@@ -1,3 +1,3 @@\n import os\n-password = 'x'\n+password = os.environ['PW']\n+++ not a header but skipped\n print(password)"

	assert.Equal(t, "import os\npassword = os.environ['PW']\nprint(password)", ContentFromPatch(patch))
}

func TestFetchContent(t *testing.T) {
	ctx := context.Background()
	o := &Orchestrator{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	t.Run("added files use the patch", func(t *testing.T) {
		gh := new(MockGitHub)
		content, err := o.fetchContent(ctx, gh, model.ChangedFile{Filename: "a.py", Status: "added", Patch: "@@ -0,0 +1 @@\n+print(1)"})
		require.NoError(t, err)
		assert.Equal(t, "print(1)", content)
		gh.AssertNotCalled(t, "GetRawContent", mock.Anything, mock.Anything)
	})

	t.Run("raw content for modified files", func(t *testing.T) {
		gh := new(MockGitHub)
		gh.On("GetRawContent", ctx, "raw/a.py").Return("full file", nil)
		content, err := o.fetchContent(ctx, gh, model.ChangedFile{Filename: "a.py", Status: "modified", RawURL: "raw/a.py", Patch: "+x"})
		require.NoError(t, err)
		assert.Equal(t, "full file", content)
	})

	t.Run("falls back to patch when raw fetch fails", func(t *testing.T) {
		gh := new(MockGitHub)
		gh.On("GetRawContent", ctx, "raw/a.py").Return("", errors.New("404"))
		content, err := o.fetchContent(ctx, gh, model.ChangedFile{Filename: "a.py", Status: "modified", RawURL: "raw/a.py", Patch: "@@ -1 +1 @@\n-y\n+x"})
		require.NoError(t, err)
		assert.Equal(t, "x", content)
	})

	t.Run("errors without a patch", func(t *testing.T) {
		gh := new(MockGitHub)
		gh.On("GetRawContent", ctx, "raw/a.py").Return("", errors.New("404"))
		_, err := o.fetchContent(ctx, gh, model.ChangedFile{Filename: "a.py", Status: "renamed", RawURL: "raw/a.py"})
		assert.Error(t, err)
	})
}
