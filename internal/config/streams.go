package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// StreamSpec identifies one configured source. The position in the streams
// file is the stream's index for the life of the process.
type StreamSpec struct {
	URL  string `toml:"url"`
	Name string `toml:"name"`
}

// streamsFile is the on-disk shape of the stream list.
type streamsFile struct {
	Version int          `toml:"version"`
	Streams []StreamSpec `toml:"streams"`
}

// LoadStreams reads the ordered stream list from path. An unreadable,
// malformed, or empty list is an error: without sources there is nothing
// for the process to do, so callers treat this as fatal at startup.
func LoadStreams(path string) ([]StreamSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read streams config: %w", err)
	}

	var f streamsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse streams config: %w", err)
	}

	if len(f.Streams) == 0 {
		return nil, fmt.Errorf("streams config %s defines no streams", path)
	}

	for i, s := range f.Streams {
		if err := validateSpec(s); err != nil {
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}
	}

	return f.Streams, nil
}

// validateSpec checks one stream entry for the problems that would only
// surface as confusing worker failures later.
func validateSpec(s StreamSpec) error {
	if s.URL == "" {
		return fmt.Errorf("missing url")
	}
	if !strings.Contains(s.URL, "://") {
		return fmt.Errorf("url %q has no scheme", s.URL)
	}
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	return nil
}
