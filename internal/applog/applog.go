// Package applog provides the proxy's colorized terminal logger.
//
// Modeled on onurartan-mockserver's logger package: level-tagged,
// color-coded lines, with a dedicated access-log formatter for
// per-request lines and a boxed startup banner.
package applog

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
)

// Config toggles the verbosity of the logger, mirroring the proxy's
// simpleLogs and logAccessInTerminal feature flags.
type Config struct {
	Simple          bool
	AccessInTerminal bool
	ShowTimestamp   bool
}

var current = Config{ShowTimestamp: true}

// Configure updates the shared logger configuration.
func Configure(cfg Config) { current = cfg }

func prefix(tag string, c *color.Color) string {
	ts := ""
	if current.ShowTimestamp {
		ts = time.Now().Format("15:04:05.000") + " "
	}
	return ts + c.Sprintf("[%s]", tag)
}

// Success logs a green OK-tagged line.
func Success(msg string, args ...any) {
	fmt.Println(prefix("OK", color.New(color.FgGreen)), fmt.Sprintf(msg, args...))
}

// Error logs a red ERROR-tagged line.
func Error(msg string, args ...any) {
	fmt.Println(prefix("ERROR", color.New(color.FgRed, color.Bold)), fmt.Sprintf(msg, args...))
}

// Warn logs a yellow WARN-tagged line.
func Warn(msg string, args ...any) {
	fmt.Println(prefix("WARN", color.New(color.FgYellow)), fmt.Sprintf(msg, args...))
}

// Info logs a blue INFO-tagged line.
func Info(msg string, args ...any) {
	fmt.Println(prefix("INFO", color.New(color.FgCyan)), fmt.Sprintf(msg, args...))
}

// Access logs one completed request/response, honoring simpleLogs and
// logAccessInTerminal. Returns immediately (no-op) unless logAccessInTerminal
// is set, matching the proxy's feature flag semantics.
func Access(method, path string, status int, duration time.Duration) {
	if !current.AccessInTerminal {
		return
	}
	if current.Simple {
		fmt.Printf("%s %s %d %dms\n", method, path, status, duration.Milliseconds())
		return
	}

	methodColors := map[string]*color.Color{
		"GET":    color.New(color.FgHiGreen),
		"POST":   color.New(color.FgHiCyan),
		"PUT":    color.New(color.FgYellow),
		"DELETE": color.New(color.FgHiRed),
		"PATCH":  color.New(color.FgMagenta),
	}
	methodColor, ok := methodColors[method]
	if !ok {
		methodColor = color.New(color.FgWhite, color.Bold)
	}

	var statusColor *color.Color
	switch {
	case status >= 500:
		statusColor = color.New(color.FgRed, color.Bold)
	case status >= 400:
		statusColor = color.New(color.FgHiYellow)
	case status >= 300:
		statusColor = color.New(color.FgYellow)
	default:
		statusColor = color.New(color.FgGreen)
	}

	fmt.Printf(
		"%s %s %s %s\n",
		methodColor.Sprintf("%-7s", method),
		color.New(color.FgHiBlack).Sprint(path),
		statusColor.Sprintf("%d %s", status, http.StatusText(status)),
		color.New(color.FgMagenta).Sprintf("%.2fms", float64(duration.Microseconds())/1000),
	)
}

// Banner prints the boxed startup banner, in the style of the teacher's
// RunProxy/runRecord console banners.
func Banner(mode string, port int, ssl bool) {
	scheme := "http"
	if ssl {
		scheme = "https"
	}
	fmt.Println("┌──────────────────────────────────────────────────────────────────────────────┐")
	fmt.Println("|                                                                              |")
	fmt.Printf("|   local-traffic — reverse proxy                                              |\n")
	fmt.Printf("|   Mode: %-69s|\n", mode)
	fmt.Printf("|   Listening: %-64s|\n", fmt.Sprintf("%s://localhost:%d", scheme, port))
	fmt.Println("|                                                                              |")
	fmt.Println("└──────────────────────────────────────────────────────────────────────────────┘")
}
