package service

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func floatPtr(v float64) *float64 {
	return &v
}
