package pipeline_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaclpipe/shaclpipe/cosmos"
	"github.com/shaclpipe/shaclpipe/jsonld"
	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/log"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/pipeline"
	"github.com/shaclpipe/shaclpipe/shacl"
	"github.com/shaclpipe/shaclpipe/shape"
	"github.com/shaclpipe/shaclpipe/validate"
)

func personDefinition(t *testing.T) *shape.Definition {
	t.Helper()

	graph, err := shacl.ParseTurtle([]byte(personSHACL))
	require.NoError(t, err)

	ctx, err := ldcontext.Parse([]byte(personContextJSON))
	require.NoError(t, err)

	tree, err := shacl.BuildTree(graph, ctx)
	require.NoError(t, err)

	cfg, err := mapping.ParseConfig([]byte(personMappingYAML))
	require.NoError(t, err)

	return &shape.Definition{Name: "person", Graph: graph, Shapes: tree, Context: ctx, Mapping: cfg}
}

func personRow(id string) mapping.RawRecord {
	return mapping.RawRecord{
		"FirstName":              "EDITH",
		"MiddleName":             "M",
		"LastName":               "ADAMS",
		"GenerationCodeOrSuffix": "III",
		"Birthdate":              "1965-05-15",
		"Sex":                    "Female",
		"RaceEthnicity":          "White,Black",
		"PersonIdentifiers":      id,
		"IdentificationSystems":  "SSN",
		"PersonIdentifierTypes":  "PersonIdentifier",
	}
}

func badRow(id string) mapping.RawRecord {
	row := personRow(id)
	delete(row, "LastName")

	return row
}

func TestToNDJSONReportModeWithDeadLetter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.ndjson")
	dlqPath := filepath.Join(dir, "dlq.ndjson")

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"), badRow("2"), personRow("3"),
	}}

	p, err := pipeline.New(personDefinition(t), src, pipeline.WithDeadLetter(dlqPath))
	require.NoError(t, err)

	result, err := p.ToNDJSON(t.Context(), outPath)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.RecordsIn)
	assert.Equal(t, int64(2), result.RecordsOut)
	assert.Equal(t, int64(1), result.RecordsFailed)
	assert.Equal(t, int64(0), result.RecordsFiltered)
	assert.Equal(t, result.RecordsIn, result.RecordsOut+result.RecordsFailed+result.RecordsFiltered)
	assert.Equal(t, pipeline.StateCompleted, p.State())
	assert.Positive(t, result.BytesWritten)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)

	lines := nonEmptyLines(out)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "cepi:person/1", first["@id"])

	dlq, err := os.ReadFile(dlqPath)
	require.NoError(t, err)

	dlqLines := nonEmptyLines(dlq)
	require.Len(t, dlqLines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(dlqLines[0], &entry))
	assert.Equal(t, "mapping", entry["reason"])
	assert.Equal(t, "RequiredMissing", entry["error_kind"])

	rawRow, ok := entry["raw_row"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2", rawRow["PersonIdentifiers"])
}

func nonEmptyLines(data []byte) [][]byte {
	var lines [][]byte

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			lines = append(lines, line)
		}
	}

	return lines
}

func TestStrictModeAbortsRun(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"), badRow("2"), personRow("3"),
	}}

	p, err := pipeline.New(personDefinition(t), src,
		pipeline.WithValidation(validate.ModeStrict, 1.0))
	require.NoError(t, err)

	var buf bytes.Buffer

	_, err = p.WriteNDJSON(t.Context(), &buf)
	require.Error(t, err)
	assert.Equal(t, pipeline.StateFailed, p.State())
}

func TestStreamPreservesInputOrder(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"), personRow("2"), personRow("3"),
	}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	var ids []string

	for doc, err := range p.Stream(t.Context()) {
		require.NoError(t, err)

		id, _ := doc.Get("@id")
		ids = append(ids, id.(string))
	}

	assert.Equal(t, []string{"cepi:person/1", "cepi:person/2", "cepi:person/3"}, ids)
}

func TestBuildAll(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{personRow("1"), personRow("2")}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	docs, err := p.BuildAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestWriteJSONArray(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{personRow("1"), personRow("2")}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	var buf bytes.Buffer

	result, err := p.WriteJSON(t.Context(), &buf, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RecordsOut)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "cepi:person/1", docs[0]["@id"])
}

func TestEmptyRecordsAreFiltered(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"),
		{"FirstName": "", "LastName": ""},
	}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	var buf bytes.Buffer

	result, err := p.WriteNDJSON(t.Context(), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.RecordsIn)
	assert.Equal(t, int64(1), result.RecordsOut)
	assert.Equal(t, int64(1), result.RecordsFiltered)
	assert.Equal(t, result.RecordsIn, result.RecordsOut+result.RecordsFailed+result.RecordsFiltered)
}

func TestProgressCallback(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"), personRow("2"), personRow("3"),
	}}

	var calls []int64

	p, err := pipeline.New(personDefinition(t), src,
		pipeline.WithProgress(func(processed, total int64) {
			calls = append(calls, processed)

			assert.Equal(t, int64(3), total, "slice sources report an exact count")
		}, 1))
	require.NoError(t, err)

	_, err = p.BuildAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, calls)
}

func TestCancellation(t *testing.T) {
	t.Parallel()

	rows := make([]mapping.RawRecord, 100)
	for i := range rows {
		rows[i] = personRow("1")
	}

	src := &pipeline.SliceSource{Rows: rows}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = p.WriteNDJSON(ctx, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, pipeline.StateCancelled, p.State())
}

func TestRerunRequiresRestartableSource(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{personRow("1")}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	_, err = p.BuildAll(t.Context())
	require.NoError(t, err)

	// SliceSource implements Reset, so a second run succeeds.
	docs, err := p.BuildAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	oneShot := &nonRestartableSource{inner: src}

	p2, err := pipeline.New(personDefinition(t), oneShot)
	require.NoError(t, err)

	_, err = p2.BuildAll(t.Context())
	require.NoError(t, err)

	_, err = p2.BuildAll(t.Context())
	require.ErrorIs(t, err, pipeline.ErrNotRestartable)
}

// nonRestartableSource hides SliceSource's Reset method.
type nonRestartableSource struct {
	inner *pipeline.SliceSource
}

func (s *nonRestartableSource) Records(ctx context.Context) iter.Seq2[mapping.RawRecord, error] {
	return s.inner.Records(ctx)
}

func (s *nonRestartableSource) Count() (int, bool) { return s.inner.Count() }

func TestRejectedRecordsAreLoggedMasked(t *testing.T) {
	t.Parallel()

	pub := log.NewPublisher()
	sub := pub.Subscribe()

	logger := slog.New(log.NewHandler(pub, log.LevelWarn, log.FormatJSON))

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{badRow("2")}}

	p, err := pipeline.New(personDefinition(t), src, pipeline.WithPipelineLogger(logger))
	require.NoError(t, err)

	_, err = p.BuildAll(t.Context())
	require.NoError(t, err)

	pub.Close()

	var entries []string
	for entry := range sub.C() {
		entries = append(entries, string(entry))
	}

	require.NotEmpty(t, entries)
	joined := strings.Join(entries, "\n")
	assert.Contains(t, joined, "record rejected")
	assert.Contains(t, joined, "RequiredMissing")
	assert.NotContains(t, joined, "EDITH", "PII never reaches log output unmasked")
}

func TestValidateMethodReportsIssues(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"), badRow("2"),
	}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	result, err := p.Validate(t.Context(), validate.ModeReport, true, 1.0)
	require.NoError(t, err)
	assert.False(t, result.Conforms)
	assert.Equal(t, 1, result.Errors)
}

func TestNonFiniteBirthdateNeverEmitted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dlqPath := filepath.Join(dir, "dlq.ndjson")

	row := personRow("1")
	row["Birthdate"] = "NaN"

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{row}}

	p, err := pipeline.New(personDefinition(t), src,
		pipeline.WithValidation(validate.ModeReport, 1.0),
		pipeline.WithDeadLetter(dlqPath))
	require.NoError(t, err)

	var buf bytes.Buffer

	result, err := p.WriteNDJSON(t.Context(), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.RecordsOut)
	assert.Equal(t, int64(1), result.RecordsFailed)
	assert.NotContains(t, buf.String(), "NaN")

	dlq, err := os.ReadFile(dlqPath)
	require.NoError(t, err)
	assert.Contains(t, string(dlq), "DatatypeMismatch")
}

func TestTraversalIDGoesToDeadLetter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dlqPath := filepath.Join(dir, "dlq.ndjson")

	row := personRow("../etc/passwd")

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{row}}

	p, err := pipeline.New(personDefinition(t), src, pipeline.WithDeadLetter(dlqPath))
	require.NoError(t, err)

	var buf bytes.Buffer

	result, err := p.WriteNDJSON(t.Context(), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.RecordsOut)
	assert.Equal(t, int64(1), result.RecordsFailed)
	assert.NotContains(t, buf.String(), "../")

	dlq, err := os.ReadFile(dlqPath)
	require.NoError(t, err)
	assert.Contains(t, string(dlq), "InvalidIRI")
}

// fakeCosmosClient implements cosmos.Client for the bulk path.
type fakeCosmosClient struct {
	mu      sync.Mutex
	upserts int
	closed  bool
}

func (c *fakeCosmosClient) Upsert(_ context.Context, _ *jsonld.Object, _ string) (cosmos.UpsertResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.upserts++

	return cosmos.UpsertResponse{RUCharge: 4.2, StatusCode: 200}, nil
}

func (c *fakeCosmosClient) Close() error {
	c.closed = true

	return nil
}

func TestToCosmos(t *testing.T) {
	t.Parallel()

	src := &pipeline.SliceSource{Rows: []mapping.RawRecord{
		personRow("1"), personRow("2"), personRow("3"),
	}}

	p, err := pipeline.New(personDefinition(t), src)
	require.NoError(t, err)

	client := &fakeCosmosClient{}

	bulk, result, err := p.ToCosmos(t.Context(), client, 2, "")
	require.NoError(t, err)

	assert.Equal(t, 3, bulk.Succeeded)
	assert.Equal(t, 0, bulk.Failed)
	assert.InDelta(t, 3*4.2, bulk.TotalRU, 0.001)
	assert.Equal(t, int64(3), result.RecordsIn)
	assert.True(t, client.closed, "the client is closed when the method returns")
}
