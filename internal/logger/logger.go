// Package logger — единый вывод логов ledfloor (zerolog) с учётом quiet.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Quiet при true отключает информационные сообщения (Info, Debug); Warn и Error выводятся всегда.
var Quiet bool

var root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
	With().Timestamp().Logger()

// Setup настраивает уровень ("debug", "info", ...) и формат ("console" или "json").
func Setup(level, format string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("log level %q: %w", level, err)
		}
		lvl = l
	}
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	if format == "json" {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	root = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return nil
}

// SetOutput направляет логи в w (тесты)
func SetOutput(w io.Writer) {
	root = root.Output(w)
}

// For возвращает логгер компонента ("boardbus", "matrix", ...)
func For(component string) zerolog.Logger {
	l := root.With().Str("component", component).Logger()
	if Quiet {
		return l.Level(zerolog.WarnLevel)
	}
	return l
}

// Info выводит сообщение, если Quiet == false.
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	root.Info().Msgf(format, args...)
}

// Debug выводит отладочное сообщение, если Quiet == false.
func Debug(format string, args ...interface{}) {
	if Quiet {
		return
	}
	root.Debug().Msgf(format, args...)
}

// Warn выводит предупреждение всегда.
func Warn(format string, args ...interface{}) {
	root.Warn().Msgf(format, args...)
}

// Error выводит сообщение об ошибке всегда.
func Error(format string, args ...interface{}) {
	root.Error().Msgf(format, args...)
}
