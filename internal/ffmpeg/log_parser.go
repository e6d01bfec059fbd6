package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from a line of ffmpeg stderr output.
// With "-loglevel level+..." ffmpeg prefixes lines as "[warning] message" or,
// for component logs, "[rtsp @ 0x...] [error] message". The component tag is
// kept in the returned message; the level tag is stripped.
func ParseLogLevel(line string) (level, msg string) {
	tag, rest, ok := leadingBracket(line)
	if !ok {
		return "info", line
	}

	if isLogLevel(tag) {
		return tag, rest
	}

	// Component-prefixed form: keep "[component @ ...] " and look for the
	// level tag right after it.
	if next, nrest, ok := leadingBracket(rest); ok && isLogLevel(next) {
		return next, "[" + tag + "] " + nrest
	}

	return "info", line
}

// leadingBracket splits "[tag] rest" into its parts.
func leadingBracket(line string) (tag, rest string, ok bool) {
	if len(line) < 3 || line[0] != '[' {
		return "", "", false
	}
	end := strings.Index(line, "] ")
	if end == -1 {
		return "", "", false
	}
	return line[1:end], line[end+2:], true
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
