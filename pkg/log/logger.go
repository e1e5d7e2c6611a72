package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LoggerType uint8

const (
	ConsoleLogger LoggerType = iota
	JSONLogger
)

var (
	Root        = zerolog.Nop()
	Internal    = zerolog.Nop()
	Conformance = zerolog.Nop()
	VM          = zerolog.Nop()
	Accumulate  = zerolog.Nop()
)

// Debug toggles. They only change what gets logged, never behaviour.
var (
	// TraceSteps logs every executed PVM instruction.
	TraceSteps bool
	// TraceStages logs each state transition stage.
	TraceStages bool
	// DumpMessages logs the raw bytes of every fuzz protocol message.
	DumpMessages bool
)

// Options for Logger
type Options struct {
	// Enable Debug loglevel, default Info
	LogLevel zerolog.Level
	Type     LoggerType
	// Out defaults to stdout
	Out io.Writer

	DebugSteps  bool
	DebugTraces bool
	DebugFS     bool
}

func ParseLogLevel(loglevel string) (zerolog.Level, error) {
	return zerolog.ParseLevel(loglevel)
}

func ParseLoggerType(t string) (LoggerType, error) {
	switch strings.ToLower(t) {
	case "", "console":
		return ConsoleLogger, nil
	case "json":
		return JSONLogger, nil
	}
	return 0, fmt.Errorf("unknown logger type %q", t)
}

func Init(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	switch opts.Type {
	case ConsoleLogger:
		Root = zerolog.New(newConsoleWriter(out)).Level(opts.LogLevel).
			With().Timestamp().Logger()
	default:
		Root = zerolog.New(out).Level(opts.LogLevel).
			With().Timestamp().Logger()
	}

	Internal = Root.With().Str("component", "internal").Logger()
	Conformance = Root.With().Str("component", "conformance").Logger()
	VM = Root.With().Str("component", "vm").Logger()
	Accumulate = Root.With().Str("component", "accumulate").Logger()

	TraceSteps = opts.DebugSteps
	TraceStages = opts.DebugTraces
	DumpMessages = opts.DebugFS
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	cw := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}

	cw.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}

	cw.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("message: \"%s\" |", i)
	}

	cw.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("\"%s\": ", i)
	}

	cw.FormatFieldValue = func(i interface{}) string {
		return fmt.Sprintf("\"%s\" |", i)
	}

	cw.FormatErrFieldValue = func(i interface{}) string {
		return fmt.Sprintf(" %s |", i)
	}
	return cw
}
