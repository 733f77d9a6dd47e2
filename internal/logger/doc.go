// Package logger wraps zap for the simulation binaries:
//   - a global sugared logger writing console-formatted entries to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and a level-pinning zap option,
//   - short helpers (Infof, DebugKV, ...) that pull the logger out of a context.
//
// Stdout is left to command output such as tables and resolved parameters.
package logger
