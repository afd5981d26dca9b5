package queue

import (
	"fmt"

	"aigc/internal/infra"
)

// MachineryLogger routes machinery's own log lines into zerolog.
type MachineryLogger struct {
	logger infra.Logger
}

func NewMachineryLogger(logger infra.Logger) *MachineryLogger {
	return &MachineryLogger{logger: logger.With().Str("source", "machinery").Logger()}
}

// Print sends to Info
func (m *MachineryLogger) Print(args ...interface{}) {
	m.logger.Info().Msg(fmt.Sprint(args...))
}

// Printf sends to Info
func (m *MachineryLogger) Printf(format string, args ...interface{}) {
	m.logger.Info().Msgf(format, args...)
}

// Println sends to Info
func (m *MachineryLogger) Println(args ...interface{}) {
	m.logger.Info().Msg(fmt.Sprint(args...))
}

// Fatal sends to Fatal
func (m *MachineryLogger) Fatal(args ...interface{}) {
	m.logger.Fatal().Msg(fmt.Sprint(args...))
}

// Fatalf sends to Fatal
func (m *MachineryLogger) Fatalf(format string, args ...interface{}) {
	m.logger.Fatal().Msgf(format, args...)
}

// Fatalln sends to Fatal
func (m *MachineryLogger) Fatalln(args ...interface{}) {
	m.logger.Fatal().Msg(fmt.Sprint(args...))
}

// Panic sends to Panic
func (m *MachineryLogger) Panic(args ...interface{}) {
	m.logger.Panic().Msg(fmt.Sprint(args...))
}

// Panicf sends to Panic
func (m *MachineryLogger) Panicf(format string, args ...interface{}) {
	m.logger.Panic().Msgf(format, args...)
}

// Panicln sends to Panic
func (m *MachineryLogger) Panicln(args ...interface{}) {
	m.logger.Panic().Msg(fmt.Sprint(args...))
}
