package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const groupData = `{"data": [{"key": "A", "value": 10}, {"key": "B", "value": 20}, {"key": "A", "value": 30}]}`

func runCLI(t *testing.T, conf Config, stdin string) (string, string, error) {
	t.Helper()
	if conf.Format == "" {
		conf.Format = FormatJSON
	}
	if conf.DataFile == "" {
		conf.DataFile = "-"
	}
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), conf, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		conf, err := loadConfig([]string{"-q", "sum data.*.value", "--format", "YAML", "--timeout", "5s"})
		require.NoError(t, err)
		assert.Equal(t, "sum data.*.value", conf.Query)
		assert.Equal(t, FormatYAML, conf.Format)
		assert.Equal(t, "-", conf.DataFile)
		assert.Equal(t, 5*time.Second, conf.Timeout)
		assert.Equal(t, 128, conf.CacheSize)
	})

	t.Run("positional query", func(t *testing.T) {
		conf, err := loadConfig([]string{"count data.*"})
		require.NoError(t, err)
		assert.Equal(t, "count data.*", conf.Query)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("RHYME_FORMAT", "msgpack")
		t.Setenv("RHYME_CACHE_SIZE", "7")
		conf, err := loadConfig([]string{"-q", "sum data.*"})
		require.NoError(t, err)
		assert.Equal(t, FormatMsgpack, conf.Format)
		assert.Equal(t, 7, conf.CacheSize)
	})

	t.Run("flag wins over environment", func(t *testing.T) {
		t.Setenv("RHYME_FORMAT", "msgpack")
		conf, err := loadConfig([]string{"-q", "sum data.*", "--format", "json"})
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, conf.Format)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := loadConfig(nil)
		assert.ErrorContains(t, err, "no query given")

		_, err = loadConfig([]string{"-q", "x", "-f", "q.json"})
		assert.ErrorContains(t, err, "mutually exclusive")

		_, err = loadConfig([]string{"-q", "x", "--format", "xml"})
		assert.ErrorContains(t, err, "unknown output format")

		conf, err := loadConfig([]string{"--requests"})
		require.NoError(t, err)
		assert.True(t, conf.Requests)
	})
}

func TestRunJSON(t *testing.T) {
	out, _, err := runCLI(t, Config{Query: "{data.*.key: sum data.*.value}"}, groupData)
	require.NoError(t, err)
	assert.Equal(t, `{"A":40,"B":20}`+"\n", out)

	out, _, err = runCLI(t, Config{Query: "sum data.*.value"}, groupData)
	require.NoError(t, err)
	assert.Equal(t, "60\n", out)
}

func TestRunQueryFile(t *testing.T) {
	t.Run("json query document", func(t *testing.T) {
		path := writeFile(t, "query.json", `{"total": {"$sum": "data.*.value"}, "data.*.key": {"$count": "data.*.value"}}`)
		out, _, err := runCLI(t, Config{QueryFile: path}, groupData)
		require.NoError(t, err)
		assert.Equal(t, `{"total":60,"A":2,"B":1}`+"\n", out)
	})

	t.Run("rh text", func(t *testing.T) {
		path := writeFile(t, "query.rh", "array data.*.key")
		out, _, err := runCLI(t, Config{QueryFile: path}, groupData)
		require.NoError(t, err)
		assert.Equal(t, `["A","B","A"]`+"\n", out)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := runCLI(t, Config{QueryFile: filepath.Join(t.TempDir(), "none.rh")}, "")
		assert.ErrorContains(t, err, "read query")
	})
}

func TestRunYAMLInput(t *testing.T) {
	path := writeFile(t, "data.yaml", `
data:
  - key: Z
    value: 1
  - key: A
    value: 2
  - key: Z
    value: 3
`)
	out, _, err := runCLI(t, Config{Query: "{data.*.key: sum data.*.value}", DataFile: path}, "")
	require.NoError(t, err)
	// first-seen key order survives the YAML decoding
	assert.Equal(t, `{"Z":4,"A":2}`+"\n", out)
}

func TestRunYAMLOutput(t *testing.T) {
	out, _, err := runCLI(t, Config{Query: "{data.*.key: sum data.*.value}", Format: FormatYAML}, groupData)
	require.NoError(t, err)
	assert.Contains(t, out, "A: 40")
	assert.Contains(t, out, "B: 20")
	assert.Less(t, strings.Index(out, "A:"), strings.Index(out, "B:"))
}

func TestRunMsgpackOutput(t *testing.T) {
	out, _, err := runCLI(t, Config{Query: "{data.*.key: sum data.*.value}", Format: FormatMsgpack}, groupData)
	require.NoError(t, err)

	dec := msgpack.NewDecoder(strings.NewReader(out))
	n, err := dec.DecodeMapLen()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var keys []string
	var values []interface{}
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		require.NoError(t, err)
		v, err := dec.DecodeInterface()
		require.NoError(t, err)
		keys = append(keys, k)
		values = append(values, v)
	}
	assert.Equal(t, []string{"A", "B"}, keys)
	assert.Equal(t, []interface{}{40.0, 20.0}, values)
}

func TestRunJQFilter(t *testing.T) {
	out, _, err := runCLI(t, Config{Query: "{data.*.key: sum data.*.value}", JQ: ".A"}, groupData)
	require.NoError(t, err)
	assert.Equal(t, "40\n", out)

	out, _, err = runCLI(t, Config{Query: "{data.*.key: sum data.*.value}", JQ: ".[]"}, groupData)
	require.NoError(t, err)
	assert.Equal(t, "[40,20]\n", out)

	_, _, err = runCLI(t, Config{Query: "sum data.*.value", JQ: ".["}, groupData)
	assert.ErrorContains(t, err, "jq")
}

func TestRunExplain(t *testing.T) {
	out, stderr, err := runCLI(t, Config{Query: "sum data.*.value", Explain: true}, groupData)
	require.NoError(t, err)
	assert.Equal(t, "60\n", out)
	assert.Contains(t, stderr, "evaluation ")
	assert.Contains(t, stderr, "sum over [data.*]: 3 bindings")
}

func TestRunErrors(t *testing.T) {
	_, _, err := runCLI(t, Config{Query: "sum data.*.value"}, `{"data": [`)
	assert.ErrorContains(t, err, "read data")

	_, _, err = runCLI(t, Config{Query: "sum data.*.key"}, groupData)
	assert.Error(t, err)

	_, _, err = runCLI(t, Config{Query: "{"}, groupData)
	assert.Error(t, err)
}

func TestRunStream(t *testing.T) {
	input := `{"data": [{"value": 1}, {"value": 2}]}
{"data": [{"value": "x"}]}
{"data": [{"value": 5}]}
`
	out, stderr, err := runCLI(t, Config{Query: "sum data.*.value", Stream: true}, input)
	require.NoError(t, err)
	assert.Equal(t, "3\n5\n", out)
	assert.Contains(t, stderr, "evaluation failed")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunStreamStopsProducerOnWriteError(t *testing.T) {
	input := strings.Repeat(`{"data": [{"value": 1}]}`+"\n", 200)
	before := runtime.NumGoroutine()

	var stderr bytes.Buffer
	conf := Config{Query: "sum data.*.value", Stream: true, Format: FormatJSON, DataFile: "-"}
	err := run(context.Background(), conf, strings.NewReader(input), failingWriter{}, &stderr)
	assert.ErrorContains(t, err, "disk full")

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunRequests(t *testing.T) {
	input := `{"query": "sum data.*.value", "data": {"data": [{"value": 1}, {"value": 2}]}}
{"query": {"total": {"$count": "data.*"}}, "data": {"data": [1, 2, 3]}}
{"data": {}}
{"query": "sum data.*.value", "data": {"data": [{"value": 10}]}}
{"query": "{", "data": {}}
`
	out, _, err := runCLI(t, Config{Requests: true, CacheSize: 4}, input)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `{"result":3}`, lines[0])
	assert.Equal(t, `{"result":{"total":3}}`, lines[1])
	assert.Equal(t, `{"error":"request without query"}`, lines[2])
	assert.Equal(t, `{"result":10}`, lines[3])
	assert.True(t, strings.HasPrefix(lines[4], `{"error":`), lines[4])
}

func TestRunOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	out, _, err := runCLI(t, Config{Query: "count data.*", Output: path}, groupData)
	require.NoError(t, err)
	assert.Empty(t, out)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(b))
}
