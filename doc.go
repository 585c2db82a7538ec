// Package restclient extracts time-windowed resources from REST services
// into typed files.
//
// A task names a service resource, a declared schema and an extraction
// window. The window is split into independent sub-tasks, each sub-task pages
// through the service for its own time range, and every record is imported
// column by column into a buffer that only ever holds whole rows. Sealed
// buffers are written as JSON lines, Arrow or Avro and optionally copied to
// S3 or Google Cloud Storage.
//
// # Architecture
//
// The module is organised in layers, each usable on its own:
//
//	pkg/splitter     - Time-range splitting of a task into sub-tasks
//	pkg/timestamp    - strftime-style timestamp parsing and rendering
//	pkg/record       - ServiceRecord, ValueLocator and ServiceValue
//	pkg/schema       - Column declarations and type inference for guess
//	pkg/importer     - ValueImporters and the atomic SchemaWriter
//	pkg/columnar     - Column store rows are committed into
//	pkg/source       - HTTP and file record sources with cursor paging
//	pkg/formats      - JSON lines, Arrow and Avro writers
//	pkg/objectstore  - S3 and GCS upload of sealed files
//	pkg/connector/rest - Binds a configuration to all of the above
//	internal/pipeline  - Runs the planned sub-tasks on a worker pool
//
// # Quick Start
//
// Describe the task in YAML:
//
//	name: orders
//	window:
//	  begin: "2017-11-01"
//	  end: "2017-11-11"
//	  cadence: duration
//	  step: 72h
//	source:
//	  kind: http
//	  url: https://api.example.com/v1/orders
//	  records_path: data
//	  next_path: next
//	  cursor_param: cursor
//	timestamp:
//	  format: "%Y-%m-%dT%H:%M:%S.%L%z"
//	columns:
//	  - {name: id, type: long}
//	  - {name: created_at, type: timestamp}
//	  - {name: amount, type: double, path: payment.amount}
//	output:
//	  format: avro
//	  compression: snappy
//	  path: out
//
// Then plan and run it:
//
//	restclient plan --config orders.yaml
//	restclient run --config orders.yaml --workers 8 --error-policy skip_record
//
// Or drive it from Go:
//
//	cfg, err := config.Load("orders.yaml")
//	conn, err := rest.New(cfg)
//	defer conn.Close()
//	report, err := pipeline.NewRunner(conn, pipeline.ConfigFrom(cfg)).Run(ctx)
//
// # Configuration
//
// Every key can be overridden through the environment with the RESTCLIENT_
// prefix, e.g. RESTCLIENT_PERFORMANCE_WORKERS=8. Values may reference
// environment variables with ${VAR_NAME} or ${VAR_NAME:-default}.
package restclient
