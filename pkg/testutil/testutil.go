// Package testutil provides fixtures shared by the connector, pipeline and
// CLI tests: an orders configuration and a paged orders API.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-restclient/pkg/config"
)

// OrdersJSONL spans three days. Order 2 carries an amount that is not a
// number; order 3 has every optional field null.
const OrdersJSONL = `{"id":1,"created_at":"2017-11-01T10:00:00.000+0000","payment":{"amount":10.5},"paid":true,"note":"a"}
{"id":2,"created_at":"2017-11-02T19:42:41.000+0000","payment":{"amount":"N/A"},"paid":false}
{"id":3,"created_at":"2017-11-02T23:00:00.000+0000","payment":null,"paid":null,"note":null}
{"id":4,"created_at":"2017-11-03T19:42:41.000+0000","payment":{"amount":3.25},"paid":false,"note":"d"}
`

// OrderTimeFormat is the created_at pattern of the fixtures
const OrderTimeFormat = "%Y-%m-%dT%H:%M:%S.%L%z"

// TestContext returns a context cancelled after 30 seconds or when the test
// ends, whichever comes first.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// OrdersConfig returns a daily file-source configuration over 2017-11-01 to
// 2017-11-04 reading records written to a temporary file. Output goes to
// another temporary directory.
func OrdersConfig(t *testing.T, records string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "orders"
	cfg.Window.Begin = "2017-11-01"
	cfg.Window.End = "2017-11-04"
	cfg.Source.Kind = "file"
	cfg.Source.Path = filepath.Join(t.TempDir(), "orders.jsonl")
	cfg.Source.TimestampPath = "created_at"
	cfg.Timestamp.Format = OrderTimeFormat
	cfg.Output.Path = t.TempDir()
	cfg.Columns = []config.ColumnConfig{
		{Name: "id", Type: "long"},
		{Name: "created_at", Type: "timestamp"},
		{Name: "amount", Type: "double", Path: "payment.amount"},
		{Name: "paid", Type: "boolean"},
		{Name: "note", Type: "string"},
	}
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(records), 0o600))
	return cfg
}

// AssertEventually fails the test unless condition holds within timeout
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
