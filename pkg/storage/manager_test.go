package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "actionpacer/pkg/errors"
	"actionpacer/pkg/record"
)

func sample(id string) *record.Record {
	rec := record.New("run-1", id, record.OutcomeSuccess, 1)
	rec.Attributes = record.Attributes{"name": "Ana", "city": "Porto"}
	return rec
}

func readJSONL(t *testing.T, path string) []record.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []record.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec record.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), "line %q", scanner.Text())
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestJSONLAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.jsonl")

	sink, err := Open(path, FormatJSONL)
	require.NoError(t, err)
	require.NoError(t, sink.Append(sample("a")))
	require.NoError(t, sink.Append(sample("b")))
	assert.Equal(t, 2, sink.Count())
	require.NoError(t, sink.Close())

	recs := readJSONL(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].TargetID)
	assert.Equal(t, "Porto", recs[1].Attributes["city"])
}

func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")

	sink, err := Open(path, FormatJSONL)
	require.NoError(t, err)
	require.NoError(t, sink.Append(sample("a")))
	require.NoError(t, sink.Close())

	sink, err = Open(path, FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.Count(), "existing records are counted")
	require.NoError(t, sink.Append(sample("b")))
	require.NoError(t, sink.Close())

	assert.Len(t, readJSONL(t, path), 2)
}

func TestOpenDropsPartialTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	good, err := json.Marshal(sample("a"))
	require.NoError(t, err)

	torn := append(append(good, '\n'), []byte(`{"run_id":"run-1","target_`)...)
	require.NoError(t, os.WriteFile(path, torn, 0644))

	sink, err := Open(path, FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.Count())
	require.NoError(t, sink.Append(sample("b")))
	require.NoError(t, sink.Close())

	recs := readJSONL(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].TargetID)
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")

	sink, err := Open(path, FormatCSV)
	require.NoError(t, err)
	rec := sample("line one\nline two")
	delete(rec.Attributes, "name")
	rec.MarkCompleteness([]string{"name"})
	require.NoError(t, sink.Append(rec))
	require.NoError(t, sink.Close())

	// Header is not repeated on reopen
	sink, err = Open(path, "CSV")
	require.NoError(t, err)
	assert.Equal(t, 1, sink.Count())
	require.NoError(t, sink.Append(sample("b")))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "line one line two", rows[1][1])
	assert.Equal(t, "true", rows[1][5])
	assert.Equal(t, "name", rows[1][6])
	assert.Equal(t, "false", rows[2][5])
	assert.Empty(t, rows[2][6])
	assert.JSONEq(t, `{"name":"Ana","city":"Porto"}`, rows[2][7])
}

func TestAppendAfterClose(t *testing.T) {
	sink, err := Open(filepath.Join(t.TempDir(), "r.jsonl"), FormatJSONL)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	err = sink.Append(sample("a"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeOutput, errs.TypeOf(err))
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "r.xml"), "xml")
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration))
}
