// Package logging configures slog for morie.
//
// With --debug, JSON logs are written to a size-rotated file under
// ~/.morie/logs/ and teed to stderr. Without it, only warnings and errors
// reach stderr as text. The viewer reads the rotated file back for
// `morie logs`.
package logging
