// Package logging builds the slog loggers used across cardloom. It offers a
// JSON handler for machine consumption and a compact console handler for
// interactive runs, plus helpers for component-scoped loggers and the
// standardized attribute keys telemetry consumers rely on.
package logging
