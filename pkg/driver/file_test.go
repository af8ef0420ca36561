package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/logger"
)

const replay = `
# comment
{"id": "t-1", "attributes": {"name": "Ana", "city": "Porto"}}
not json
{"id": "t-2", "attributes": {"name": "Rui", "city": "Lisboa"}}
{"attributes": {"name": "no id"}}
{"id": "t-3", "attributes": {"city": "porto"}, "signal": "transient:2"}
{"id": "t-4", "signal": "rate_limit"}
`

func collect(t *testing.T, d *FileDriver) []string {
	t.Helper()
	var ids []string
	for {
		target, ok, err := d.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return ids
		}
		ids = append(ids, target.ID)
	}
}

func TestFileDriverNext(t *testing.T) {
	tl := logger.NewTestLogger()
	d := NewFileDriver(strings.NewReader(replay), "", tl)

	assert.Equal(t, []string{"t-1", "t-2", "t-3", "t-4"}, collect(t, d))
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2, "malformed and id-less lines are reported")
}

func TestFileDriverFilter(t *testing.T) {
	d := NewFileDriver(strings.NewReader(replay), "PORTO", nil)
	assert.Equal(t, []string{"t-1", "t-3"}, collect(t, d))
}

func TestFileDriverActSignals(t *testing.T) {
	ctx := context.Background()
	d := NewFileDriver(strings.NewReader(""), "", nil)

	attrs, err := d.Act(ctx, Target{ID: "ok", Attributes: map[string]string{"name": "Ana"}})
	require.NoError(t, err)
	assert.Equal(t, "Ana", attrs["name"])

	flaky := Target{ID: "flaky", Signal: "transient:2"}
	for i := 0; i < 2; i++ {
		_, err := d.Act(ctx, flaky)
		assert.True(t, errors.Is(err, errs.ErrTransientPage))
	}
	_, err = d.Act(ctx, flaky)
	assert.NoError(t, err, "third act succeeds")

	_, err = d.Act(ctx, Target{ID: "always", Signal: "transient"})
	assert.True(t, errors.Is(err, errs.ErrTransientPage))

	_, err = d.Act(ctx, Target{ID: "quota", Signal: "rate_limit"})
	assert.True(t, errors.Is(err, errs.ErrRateLimitDetected))

	_, err = d.Act(ctx, Target{ID: "bad", Signal: "error"})
	assert.Error(t, err)
	assert.Equal(t, errs.ErrorTypeUnknown, errs.TypeOf(err))
}

func TestNewDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"a"}`+"\n"), 0644))

	d, err := New("file", Options{Input: path})
	require.NoError(t, err)
	defer d.Close()

	target, ok, err := d.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", target.ID)

	_, err = New("browser", Options{})
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))

	_, err = New("file", Options{})
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))
}

func TestMatchesFilter(t *testing.T) {
	target := Target{ID: "x", Attributes: map[string]string{"city": "Porto"}}
	assert.True(t, MatchesFilter(target, ""))
	assert.True(t, MatchesFilter(target, " port "))
	assert.False(t, MatchesFilter(target, "braga"))
}
