package decoder

import "bytes"

// JPEG stream markers.
var (
	jpegSOI = []byte{0xFF, 0xD8} // start of image
	jpegEOI = []byte{0xFF, 0xD9} // end of image
)

// splitJPEG is a bufio.SplitFunc that extracts complete JPEG images from an
// MJPEG byte stream (ffmpeg image2pipe output). Bytes between frames are
// discarded.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// No frame start in the window; keep the last byte in case it is
		// the first half of a split SOI marker.
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// Frame started but not finished; drop the junk before it and
		// wait for more data.
		return start, nil, nil
	}

	frameEnd := start + len(jpegSOI) + end + len(jpegEOI)
	return frameEnd, data[start:frameEnd], nil
}

// ValidJPEG reports whether b looks like a complete JPEG image
// (SOI prefix, EOI suffix). Used as the output-encoding check before a
// frame is published to the cache.
func ValidJPEG(b []byte) bool {
	return len(b) >= 4 && bytes.HasPrefix(b, jpegSOI) && bytes.HasSuffix(b, jpegEOI)
}
