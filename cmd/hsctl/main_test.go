package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"hatespeech-annotation/internal/models"
	"hatespeech-annotation/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const annotations = `{"comment_id":1,"text":"a","overall":{"label":"neutral","hate_speech_score":0.2},"facets":{"insult":1},"targets":{"target_race_black":false}}
{"comment_id":1,"text":"a","overall":{"label":"hateful","hate_speech_score":1.4},"facets":{"insult":3},"targets":{"target_race_black":true}}
{"comment_id":2,"text":"b","overall":{"label":"supportive","hate_speech_score":-1.5},"facets":{"insult":0},"targets":{"target_race_black":false}}
`

func TestAggregateCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.jsonl", annotations)
	out := filepath.Join(dir, "out.jsonl")

	stdout, err := run(t, "aggregate", "--in", in, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Aggregated 3 records into 2 comments")

	records, err := store.ReadJSONL[models.Annotation](out)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "hateful", records[0].Overall.Label)
	assert.True(t, records[0].Targets["target_race_black"])
}

func TestSplitCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.jsonl", annotations)
	train := filepath.Join(dir, "train.jsonl")
	val := filepath.Join(dir, "val.jsonl")
	test := filepath.Join(dir, "test.jsonl")

	_, err := run(t, "split", "--in", in, "--train", train, "--val", val, "--test", test, "--seed", "3")
	require.NoError(t, err)

	total := 0
	for _, path := range []string{train, val, test} {
		records, err := store.ReadJSONL[models.Annotation](path)
		require.NoError(t, err)
		total += len(records)
	}
	assert.Equal(t, 3, total)
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "raw.jsonl", `{"id":1,"prediction":{"overall":{"score":"1.2"},"facets":{"insult":2.6}}}
not json
{"id":2,"prediction":null}
`)
	out := filepath.Join(dir, "clean.jsonl")

	stdout, err := run(t, "validate", "--in", in, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Validated 2 predictions (1 null, 1 malformed lines skipped)")

	records, err := store.ReadJSONL[models.PredictionRecord](out)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Prediction)
	assert.Equal(t, 1.2, records[0].Prediction.Overall.Score)
	assert.Equal(t, 3, records[0].Prediction.Facets["insult"])
	assert.Nil(t, records[1].Prediction)
}

func TestEvaluateCmd(t *testing.T) {
	dir := t.TempDir()
	gold := writeFile(t, dir, "gold.jsonl", `{"comment_id":1,"overall":{"label":"hateful","hate_speech_score":1.2},"facets":{"insult":3}}
{"comment_id":2,"overall":{"label":"neutral","hate_speech_score":0},"facets":{"insult":0}}
`)
	pred := writeFile(t, dir, "pred.jsonl", `{"id":1,"prediction":{"overall":{"score":1.0},"facets":{"insult":3},"targets":{}}}
{"id":"2","prediction":{"overall":{"score":0.1},"facets":{"insult":1},"targets":{}}}
{"id":7,"prediction":null}
`)
	report := filepath.Join(dir, "report.json")

	stdout, err := run(t, "evaluate", "--gold", gold, "--pred", pred, "--mode", "score", "--out", report)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Valid pairs: 2")
	assert.Contains(t, stdout, "Null predictions: 1")
	assert.Contains(t, stdout, "=== OVERALL (score-based) ===")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"included": 2`)
}

func TestEvaluateCmd_NormalizesRawPredictions(t *testing.T) {
	dir := t.TempDir()
	gold := writeFile(t, dir, "gold.jsonl", `{"comment_id":1,"overall":{"label":"hateful","hate_speech_score":1.2},"facets":{"insult":3}}
{"comment_id":2,"overall":{"label":"neutral","hate_speech_score":0},"facets":{"insult":0}}
`)
	pred := writeFile(t, dir, "pred.jsonl", `{"id":1,"prediction":{"overall":{"score":"1.1"},"facets":{"insult":2.6}}}
{"id":2,"prediction":{"overall":{"score":0},"facets":{"insult":"0"}}}
`)

	stdout, err := run(t, "evaluate", "--gold", gold, "--pred", pred, "--mode", "score")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Valid pairs: 2")
	assert.Contains(t, stdout, "insult MAE: 0.0000")
}

func TestEvaluateCmd_NoValidPairs(t *testing.T) {
	dir := t.TempDir()
	gold := writeFile(t, dir, "gold.jsonl", `{"comment_id":1,"overall":{"label":"neutral","hate_speech_score":0}}`+"\n")
	pred := writeFile(t, dir, "pred.jsonl", `{"id":1,"prediction":null}`+"\n")

	stdout, err := run(t, "evaluate", "--gold", gold, "--pred", pred)
	require.Error(t, err)
	assert.Contains(t, stdout, "No valid predictions found")

	_, err = run(t, "evaluate", "--gold", gold, "--pred", pred, "--mode", "median")
	assert.Error(t, err)
}

func TestSummarizeCmd(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.jsonl", annotations)
	out := filepath.Join(dir, "summary.json")

	_, err := run(t, "summarize", "--in", in, "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"hateful": 1`), string(data))
}

func TestExtractCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("Sure!\n```json\n{\"overall\":{\"score\":-1.5},\"targets\":{\"target_religion_muslim\":true}}\n```"))
	cmd.SetArgs([]string{"extract"})
	require.NoError(t, cmd.Execute())

	var p models.Prediction
	require.NoError(t, json.Unmarshal(out.Bytes(), &p))
	assert.Equal(t, -1.5, p.Overall.Score)
	assert.Equal(t, "supportive", p.Overall.Label)
	assert.True(t, p.Targets["target_religion_muslim"])

	stdout, err := run(t, "extract", "--in", writeFile(t, t.TempDir(), "r.txt", "no object"))
	require.NoError(t, err)
	assert.Equal(t, "null\n", stdout)
}

func TestMissingRequiredFlag(t *testing.T) {
	_, err := run(t, "aggregate", "--in", "x.jsonl")
	assert.ErrorContains(t, err, `required flag(s) "out" not set`)
}

func TestInferCmd_Resume(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"overall\":{\"score\":0.9}}"}}]}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yml", fmt.Sprintf(`
providers:
  - type: groq
    api_key: test-key
    base_url: %s
    max_retries: 1
    requests_per_minute: 6000
inference:
  workers: 1
`, srv.URL))
	in := writeFile(t, dir, "in.jsonl", `{"comment_id":1,"text":"first"}
{"comment_id":2,"text":"second"}
{"comment_id":3,"text":"third"}
`)
	out := writeFile(t, dir, "pred.jsonl", `{"id":1,"prediction":{"overall":{"score":-2},"facets":{},"targets":{}}}`+"\n")

	stdout, err := run(t, "infer", "--config", cfgPath, "--in", in, "--out", out, "--resume", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Annotated 1 comments: 1 ok")
	assert.Equal(t, int32(1), requests.Load())

	records, err := store.ReadJSONL[models.PredictionRecord](out)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, -2.0, records[0].Prediction.Overall.Score, "existing lines are kept")
	assert.Equal(t, models.IntID(2), records[1].ID)
	require.NotNil(t, records[1].Prediction)
	assert.Equal(t, 0.9, records[1].Prediction.Overall.Score)
	assert.Equal(t, "hateful", records[1].Prediction.Overall.Label)
}

func TestPending(t *testing.T) {
	dir := t.TempDir()
	records := []models.Annotation{
		{CommentID: models.IntID(1)},
		{CommentID: models.IntID(2)},
		{CommentID: models.StringID("x")},
	}

	got, err := pending(filepath.Join(dir, "missing.jsonl"), records)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	out := writeFile(t, dir, "pred.jsonl", `{"id":"1","prediction":null}
{"id":"x","prediction":{"overall":{"score":0}}}
`)
	got, err = pending(out, records)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.IntID(2), got[0].CommentID)
}
