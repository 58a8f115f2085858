// Package logging builds the slog loggers used across lyricmotion.
package logging
