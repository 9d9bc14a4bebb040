package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// OTLPCore is a zapcore.Core that ships log records to an OTel
// Collector over OTLP/HTTP, batched in the background. Export failures
// never block or fail the application log path.
type OTLPCore struct {
	zapcore.LevelEnabler
	endpoint      string
	serviceName   string
	client        *http.Client
	buffer        []logRecord
	bufferMu      sync.Mutex
	batchSize     int
	batchInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

type logRecord struct {
	Timestamp         int64      `json:"timeUnixNano"`
	SeverityNumber    int32      `json:"severityNumber"`
	SeverityText      string     `json:"severityText"`
	Body              any        `json:"body"`
	Attributes        []keyValue `json:"attributes,omitempty"`
	TraceID           string     `json:"traceId,omitempty"`
	SpanID            string     `json:"spanId,omitempty"`
	ObservedTimestamp int64      `json:"observedTimeUnixNano"`
}

type keyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type otlpLogPayload struct {
	ResourceLogs []resourceLogs `json:"resourceLogs"`
}

type resourceLogs struct {
	Resource  otlpResource `json:"resource"`
	ScopeLogs []scopeLogs  `json:"scopeLogs"`
}

type otlpResource struct {
	Attributes []keyValue `json:"attributes"`
}

type scopeLogs struct {
	Scope      otlpScope   `json:"scope"`
	LogRecords []logRecord `json:"logRecords"`
}

type otlpScope struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewOTLPCore creates a core exporting to the collector at
// cfg.OTLPEndpoint. Returns nil when no endpoint is configured.
func NewOTLPCore(cfg *Config, level zapcore.LevelEnabler) *OTLPCore {
	if cfg == nil || cfg.OTLPEndpoint == "" {
		return nil
	}

	// The collector serves OTLP/HTTP on 4318; a gRPC endpoint on 4317
	// is rewritten so both addresses work in config.
	endpoint := cfg.OTLPEndpoint
	if strings.HasSuffix(endpoint, ":4317") {
		endpoint = strings.TrimSuffix(endpoint, ":4317") + ":4318"
	}
	httpEndpoint := fmt.Sprintf("http://%s/v1/logs", endpoint)

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchInterval := cfg.BatchInterval
	if batchInterval <= 0 {
		batchInterval = 1 * time.Second
	}
	timeout := cfg.OTLPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	core := &OTLPCore{
		LevelEnabler:  level,
		endpoint:      httpEndpoint,
		serviceName:   cfg.ServiceName,
		client:        &http.Client{Timeout: timeout},
		buffer:        make([]logRecord, 0, batchSize),
		batchSize:     batchSize,
		batchInterval: batchInterval,
		stopChan:      make(chan struct{}),
	}

	core.wg.Add(1)
	go core.flushLoop()

	return core
}

// With implements zapcore.Core. Fields are resolved at write time, so
// the same core is returned.
func (c *OTLPCore) With(fields []zapcore.Field) zapcore.Core {
	return c
}

// Check implements zapcore.Core.
func (c *OTLPCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write buffers the entry for export. trace_id and span_id fields are
// promoted onto the OTLP record for log/trace correlation.
func (c *OTLPCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	record := logRecord{
		Timestamp:         ent.Time.UnixNano(),
		ObservedTimestamp: time.Now().UnixNano(),
		SeverityNumber:    zapLevelToOTLP(ent.Level),
		SeverityText:      ent.Level.String(),
		Body:              map[string]string{"stringValue": ent.Message},
	}

	attrs := make([]keyValue, 0, len(fields)+2)
	if ent.Caller.Defined {
		attrs = append(attrs, keyValue{
			Key:   "caller",
			Value: map[string]string{"stringValue": ent.Caller.String()},
		})
	}
	if ent.LoggerName != "" {
		attrs = append(attrs, keyValue{
			Key:   "logger",
			Value: map[string]string{"stringValue": ent.LoggerName},
		})
	}

	for _, f := range fields {
		switch f.Key {
		case "trace_id":
			record.TraceID = f.String
			continue
		case "span_id":
			record.SpanID = f.String
			continue
		}
		if kv := fieldToKeyValue(f); kv.Key != "" {
			attrs = append(attrs, kv)
		}
	}
	record.Attributes = attrs

	c.bufferMu.Lock()
	c.buffer = append(c.buffer, record)
	shouldFlush := len(c.buffer) >= c.batchSize
	c.bufferMu.Unlock()

	if shouldFlush {
		go c.flush()
	}
	return nil
}

// Sync flushes buffered records.
func (c *OTLPCore) Sync() error {
	c.flush()
	return nil
}

// Close stops the background flush loop and drains the buffer.
func (c *OTLPCore) Close() error {
	close(c.stopChan)
	c.wg.Wait()
	c.flush()
	return nil
}

func (c *OTLPCore) flushLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopChan:
			return
		}
	}
}

func (c *OTLPCore) flush() {
	c.bufferMu.Lock()
	if len(c.buffer) == 0 {
		c.bufferMu.Unlock()
		return
	}
	records := make([]logRecord, len(c.buffer))
	copy(records, c.buffer)
	c.buffer = c.buffer[:0]
	c.bufferMu.Unlock()

	payload := otlpLogPayload{
		ResourceLogs: []resourceLogs{
			{
				Resource: otlpResource{
					Attributes: []keyValue{
						{Key: "service.name", Value: map[string]string{"stringValue": c.serviceName}},
						{Key: "service.namespace", Value: map[string]string{"stringValue": "forms-backend"}},
					},
				},
				ScopeLogs: []scopeLogs{
					{
						Scope:      otlpScope{Name: "go.uber.org/zap", Version: "1.27.0"},
						LogRecords: records,
					},
				},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("logger: failed to marshal OTLP payload: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		fmt.Printf("logger: failed to create OTLP request: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Export is best-effort; the primary core already wrote the entry.
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fmt.Printf("logger: OTLP export failed with status %d\n", resp.StatusCode)
	}
}

// zapLevelToOTLP maps zap levels onto OTLP severity numbers.
func zapLevelToOTLP(level zapcore.Level) int32 {
	switch level {
	case zapcore.DebugLevel:
		return 5
	case zapcore.InfoLevel:
		return 9
	case zapcore.WarnLevel:
		return 13
	case zapcore.ErrorLevel:
		return 17
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return 21
	default:
		return 0
	}
}

func fieldToKeyValue(f zapcore.Field) keyValue {
	switch f.Type {
	case zapcore.StringType:
		return keyValue{Key: f.Key, Value: map[string]string{"stringValue": f.String}}
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return keyValue{Key: f.Key, Value: map[string]int64{"intValue": f.Integer}}
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return keyValue{Key: f.Key, Value: map[string]uint64{"intValue": uint64(f.Integer)}}
	case zapcore.Float64Type, zapcore.Float32Type:
		return keyValue{Key: f.Key, Value: map[string]float64{"doubleValue": float64(f.Integer)}}
	case zapcore.BoolType:
		return keyValue{Key: f.Key, Value: map[string]bool{"boolValue": f.Integer == 1}}
	case zapcore.DurationType:
		return keyValue{Key: f.Key, Value: map[string]string{"stringValue": time.Duration(f.Integer).String()}}
	case zapcore.TimeType:
		ts := time.Unix(0, f.Integer)
		if loc, ok := f.Interface.(*time.Location); ok && loc != nil {
			ts = ts.In(loc)
		}
		return keyValue{Key: f.Key, Value: map[string]string{"stringValue": ts.Format(time.RFC3339Nano)}}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			return keyValue{Key: f.Key, Value: map[string]string{"stringValue": err.Error()}}
		}
		return keyValue{}
	case zapcore.StringerType:
		if s, ok := f.Interface.(fmt.Stringer); ok {
			return keyValue{Key: f.Key, Value: map[string]string{"stringValue": s.String()}}
		}
		return keyValue{}
	default:
		if f.Interface != nil {
			if data, err := json.Marshal(f.Interface); err == nil {
				return keyValue{Key: f.Key, Value: map[string]string{"stringValue": string(data)}}
			}
		}
		return keyValue{}
	}
}
