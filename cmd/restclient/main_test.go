package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-restclient/internal/pipeline"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
)

const taskYAML = `
name: orders
window:
  begin: 2017-11-01
  end: 2017-11-04
  cadence: daily
timestamp:
  format: "%Y-%m-%dT%H:%M:%S.%L%z"
columns:
  - {name: id, type: long}
  - {name: created_at, type: timestamp}
  - {name: amount, type: double, path: payment.amount}
source:
  kind: file
  path: {{source}}
  timestamp_path: created_at
output:
  format: jsonl
  path: {{output}}
observability:
  log_level: error
`

const ordersJSONL = `{"id":1,"created_at":"2017-11-01T10:00:00.000+0000","payment":{"amount":10.5}}
{"id":2,"created_at":"2017-11-02T19:42:41.000+0000","payment":{"amount":"N/A"}}
{"id":3,"created_at":"2017-11-03T19:42:41.000+0000","payment":null}
`

func writeTask(t *testing.T) (configPath, outputDir string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "orders.jsonl")
	require.NoError(t, os.WriteFile(src, []byte(ordersJSONL), 0o600))
	outputDir = filepath.Join(dir, "out")

	content := strings.NewReplacer("{{source}}", src, "{{output}}", outputDir).Replace(taskYAML)
	configPath = filepath.Join(dir, "orders.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath, outputDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "restclient v"+version)
}

func TestSources(t *testing.T) {
	out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Equal(t, "  - file\n  - http\n", out)
}

func TestValidate(t *testing.T) {
	path, _ := writeTask(t)
	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "orders: 3 columns, file source, jsonl output\n", out)
}

func TestPlan(t *testing.T) {
	path, outputDir := writeTask(t)
	out, err := execute(t, "plan", "--config", path)
	require.NoError(t, err)

	var planned []plannedTask
	require.NoError(t, json.Unmarshal([]byte(out), &planned))
	require.Len(t, planned, 3)
	assert.Equal(t, 2, planned[2].Index)
	assert.Equal(t, "2017-11-03T00:00:00Z", planned[2].Begin.UTC().Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, filepath.Join(outputDir, "orders-002.jsonl"), planned[2].Output)

	out, err = execute(t, "plan", "--config", path, "--max-splits", "2")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &planned))
	assert.Len(t, planned, 2)
}

func TestRunSkipRecord(t *testing.T) {
	path, outputDir := writeTask(t)
	out, err := execute(t, "run", "--config", path, "--workers", "2", "--error-policy", "skip_record")
	require.NoError(t, err)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Splits)
	assert.Equal(t, 2, report.Records())
	assert.Equal(t, 1, report.Skipped())

	data, err := os.ReadFile(filepath.Join(outputDir, "orders-002.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":3,"created_at":"2017-11-03T19:42:41.000+0000","amount":null}`+"\n", string(data))
}

func TestRunFailFast(t *testing.T) {
	path, _ := writeTask(t)
	_, err := execute(t, "run", "--config", path, "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import a value for column: amount (double)")
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestGuess(t *testing.T) {
	sample := filepath.Join(t.TempDir(), "page.json")
	require.NoError(t, os.WriteFile(sample, []byte(
		`{"data":[{"id":1,"created_at":"2017-11-03T19:42:41.000+0000","amount":1.5},{"id":2,"created_at":"2017-11-04T19:42:41.000+0000","amount":null}]}`,
	), 0o600))

	out, err := execute(t, "guess", sample)
	require.NoError(t, err)
	var guessed struct {
		Columns []struct {
			Name, Type, Format string
		}
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &guessed))
	require.Len(t, guessed.Columns, 3)
	assert.Equal(t, "amount", guessed.Columns[0].Name)
	assert.Equal(t, "double", guessed.Columns[0].Type)
	assert.Equal(t, "timestamp", guessed.Columns[1].Type)
	assert.Equal(t, "%Y-%m-%dT%H:%M:%S.%L%z", guessed.Columns[1].Format)
	assert.Equal(t, "long", guessed.Columns[2].Type)
}
