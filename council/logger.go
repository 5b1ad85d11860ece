package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is the structured, context-aware logging contract shared by the
// orchestration core, the health tracker, and every provider adapter. It
// mirrors the teacher framework's map-based field convention so log lines
// stay queryable (`jq 'select(.provider=="openai")'`) without a dependency
// on any particular logging backend.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with a component tag, so a single
// process can filter log lines by subsystem:
//
//	jq 'select(.component == "orchestration")'
//	jq 'select(.component | startswith("provider/"))'
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// NoOpLogger discards everything. It is the default when no logger is
// wired so components never have to nil-check before logging.
type NoOpLogger struct{}

func (NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})  {}
func (NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {}
func (NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})  {}
func (NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {}

func (n NoOpLogger) WithComponent(component string) Logger { return n }

// Span abstracts a single unit of traced work.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Telemetry abstracts span creation and metric recording, so orchestration
// and health-tracking code depend on an interface rather than a concrete
// OpenTelemetry provider.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

type noOpSpan struct{}

func (noOpSpan) End()                                 {}
func (noOpSpan) SetAttribute(key string, value interface{}) {}
func (noOpSpan) RecordError(err error)                {}

// NoOpTelemetry discards spans and metrics.
type NoOpTelemetry struct{}

func (NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noOpSpan{}
}
func (NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// LoggingConfig controls the level/format/output of a ProductionLogger.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
	Output string // "stdout" or "stderr"
}

// DevelopmentConfig toggles verbose, human-friendly formatting suited to a
// local terminal rather than a log aggregator.
type DevelopmentConfig struct {
	Pretty bool
}

// ProductionLogger is a minimal structured logger writing one JSON (or
// key=value) line per call. It satisfies ComponentAwareLogger.
type ProductionLogger struct {
	level     string
	format    string
	out       *log.Logger
	component string
}

// NewProductionLogger builds a ComponentAwareLogger for a named component.
// Output defaults to stdout; unrecognised Output values also fall back to
// stdout so a misconfigured deployment still gets logs somewhere.
func NewProductionLogger(cfg LoggingConfig, dev DevelopmentConfig, component string) ComponentAwareLogger {
	w := os.Stdout
	if cfg.Output == "stderr" {
		w = os.Stderr
	}
	format := cfg.Format
	if dev.Pretty {
		format = "text"
	}
	return &ProductionLogger{
		level:     strings.ToUpper(cfg.Level),
		format:    format,
		out:       log.New(w, "", log.LstdFlags),
		component: component,
	}
}

func (p *ProductionLogger) enabled(level string) bool {
	order := map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}
	min, ok := order[p.level]
	if !ok {
		min = order["INFO"]
	}
	return order[level] >= min
}

func (p *ProductionLogger) write(level, msg string, fields map[string]interface{}) {
	if !p.enabled(level) {
		return
	}
	if p.format == "text" {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s %s", level, p.component, msg)
		for k, v := range fields {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
		p.out.Println(b.String())
		return
	}
	entry := map[string]interface{}{
		"level":     level,
		"component": p.component,
		"msg":       msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	line, err := json.Marshal(entry)
	if err != nil {
		p.out.Println(level, p.component, msg)
		return
	}
	p.out.Println(string(line))
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{})  { p.write("INFO", msg, fields) }
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) { p.write("ERROR", msg, fields) }
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{})  { p.write("WARN", msg, fields) }
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) { p.write("DEBUG", msg, fields) }

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("INFO", msg, fields)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("ERROR", msg, fields)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("WARN", msg, fields)
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.write("DEBUG", msg, fields)
}

func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

// GetComponent returns the component tag this logger was built or cloned
// with, so callers can assert on wiring without inspecting log output.
func (p *ProductionLogger) GetComponent() string {
	return p.component
}
