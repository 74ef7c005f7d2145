package main

import (
	"io"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/rs/zerolog"
)

// installWarningSink routes library warnings to a zerolog logger on w.
// Warnings that carry structured fields are embedded as objects.
func installWarningSink(w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Str("component", "mllite").Logger()
	scigoErrors.SetZerologWarnFunc(func(warning error) {
		ev := logger.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(obj)
		}
		ev.Msg(warning.Error())
	})
	return logger
}
