package ffmpeg

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[error] Connection refused", "error", "Connection refused"},
		{"[warning] deprecated pixel format", "warning", "deprecated pixel format"},
		{"[rtsp @ 0x5601] [error] method DESCRIBE failed", "error", "[rtsp @ 0x5601] method DESCRIBE failed"},
		{"plain output line", "info", "plain output line"},
		{"[rtsp @ 0x5601] no level here", "info", "[rtsp @ 0x5601] no level here"},
		{"", "info", ""},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel {
			t.Errorf("ParseLogLevel(%q) level = %q, want %q", tt.line, level, tt.wantLevel)
		}
		if msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) msg = %q, want %q", tt.line, msg, tt.wantMsg)
		}
	}
}
