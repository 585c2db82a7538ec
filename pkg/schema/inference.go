package schema

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// DefaultTimestampFormats are tried in order when a string column looks
// temporal. The first one that parses every sample wins.
var DefaultTimestampFormats = []string{
	"%Y-%m-%dT%H:%M:%S.%L%z",
	"%Y-%m-%dT%H:%M:%S%z",
	"rfc3339nano",
	"rfc3339",
	"%Y-%m-%d %H:%M:%S",
	"%Y-%m-%d",
}

// InferredColumn is the guess for one top-level field of the samples
type InferredColumn struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
	// Format is the timestamp pattern that parsed every sample
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Confidence is the share of non-null samples agreeing with Type
	Confidence float64 `json:"confidence" yaml:"-"`
	Nullable   bool    `json:"nullable" yaml:"-"`
}

// TypeInferenceEngine guesses column types from sample records
type TypeInferenceEngine struct {
	logger *zap.Logger

	sampleSize          int
	confidenceThreshold float64
	timestampFormats    []*timestamp.Formatter
}

// NewTypeInferenceEngine creates an engine reading at most sampleSize
// records. A non-positive sampleSize reads them all.
func NewTypeInferenceEngine(logger *zap.Logger, sampleSize int) *TypeInferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &TypeInferenceEngine{
		logger:              logger,
		sampleSize:          sampleSize,
		confidenceThreshold: 0.9,
	}
	for _, pattern := range DefaultTimestampFormats {
		e.timestampFormats = append(e.timestampFormats, timestamp.MustNew(pattern, "UTC"))
	}
	return e
}

// InferColumns guesses one column per top-level field, sorted by name
func (e *TypeInferenceEngine) InferColumns(samples []map[string]interface{}) ([]InferredColumn, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided for inference")
	}
	if e.sampleSize > 0 && len(samples) > e.sampleSize {
		samples = samples[:e.sampleSize]
	}

	fieldMap := make(map[string][]interface{})
	for _, sample := range samples {
		for key, value := range sample {
			fieldMap[key] = append(fieldMap[key], value)
		}
	}

	names := make([]string, 0, len(fieldMap))
	for name := range fieldMap {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]InferredColumn, 0, len(names))
	for _, name := range names {
		col := e.InferType(name, fieldMap[name])
		// a field missing from some samples is nullable too
		if len(fieldMap[name]) < len(samples) {
			col.Nullable = true
		}
		columns = append(columns, col)
	}
	e.logger.Debug("inferred columns", zap.Int("samples", len(samples)), zap.Int("columns", len(columns)))
	return columns, nil
}

// InferType guesses the type of one field from its sample values
func (e *TypeInferenceEngine) InferType(name string, values []interface{}) InferredColumn {
	col := InferredColumn{Name: name, Type: TypeString, Nullable: true}

	typeCounts := make(map[Type]int)
	nonNull := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		nonNull = append(nonNull, v)
		typeCounts[e.detectValueType(v)]++
	}
	if len(nonNull) == 0 {
		return col
	}
	col.Nullable = len(nonNull) < len(values)

	// integers widen to double when both are present
	if typeCounts[TypeLong] > 0 && typeCounts[TypeDouble] > 0 {
		typeCounts[TypeDouble] += typeCounts[TypeLong]
		delete(typeCounts, TypeLong)
	}

	dominant, maxCount := TypeString, 0
	for _, t := range []Type{TypeBoolean, TypeLong, TypeDouble, TypeJSON, TypeString} {
		if typeCounts[t] > maxCount {
			dominant, maxCount = t, typeCounts[t]
		}
	}
	col.Confidence = float64(maxCount) / float64(len(nonNull))
	if col.Confidence < e.confidenceThreshold && len(typeCounts) > 1 {
		dominant = TypeString
	}
	col.Type = dominant

	if dominant == TypeString {
		if format := e.detectTimestampFormat(nonNull); format != "" {
			col.Type = TypeTimestamp
			col.Format = format
			col.Confidence = 1
		}
	}
	return col
}

func (e *TypeInferenceEngine) detectValueType(value interface{}) Type {
	switch v := value.(type) {
	case bool:
		return TypeBoolean
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return TypeLong
		}
		return TypeDouble
	case int, int32, int64:
		return TypeLong
	case float32, float64:
		return TypeDouble
	case string:
		return TypeString
	default:
		return TypeJSON
	}
}

// detectTimestampFormat returns the first format parsing every value
func (e *TypeInferenceEngine) detectTimestampFormat(values []interface{}) string {
	for _, f := range e.timestampFormats {
		ok := true
		for _, v := range values {
			s, isString := v.(string)
			if !isString || !looksTemporal(s) {
				return ""
			}
			if _, err := f.Parse(s); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return f.Pattern()
		}
	}
	return ""
}

// looksTemporal rejects plain numbers and words before any parse is tried
func looksTemporal(s string) bool {
	return len(s) >= len("2006-01-02") && strings.Count(s[:10], "-") == 2
}
