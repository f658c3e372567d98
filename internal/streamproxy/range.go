package streamproxy

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is a resolved, validated [start, end] inclusive byte range.
type byteRange struct {
	start, end int64
}

// errRangeNotSatisfiable signals a 416 response should be sent.
var errRangeNotSatisfiable = fmt.Errorf("streamproxy: range not satisfiable")

// parseRange parses a `Range: bytes=<start>-<end>` header against a file of
// the given size and validates it per spec §4.6/§8: start <= end < size.
// Both the suffix form (bytes=-N, last N bytes) and the open-ended form
// (bytes=N-, from N to EOF) are supported. An absent header returns the
// whole file as [0, size-1].
func parseRange(header string, size int64) (byteRange, error) {
	if header == "" {
		if size <= 0 {
			return byteRange{}, errRangeNotSatisfiable
		}
		return byteRange{start: 0, end: size - 1}, nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, errRangeNotSatisfiable
	}
	spec := strings.TrimPrefix(header, prefix)

	// Multiple ranges are not supported; only the first is honored.
	if idx := strings.Index(spec, ","); idx >= 0 {
		spec = spec[:idx]
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return byteRange{}, errRangeNotSatisfiable
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	var start, end int64
	switch {
	case startStr == "" && endStr != "":
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, errRangeNotSatisfiable
		}
		if n > size {
			n = size
		}
		start = size - n
		end = size - 1
	case startStr != "" && endStr == "":
		// Open-ended range: from N to EOF.
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || s < 0 {
			return byteRange{}, errRangeNotSatisfiable
		}
		start = s
		end = size - 1
	case startStr != "" && endStr != "":
		s, err1 := strconv.ParseInt(startStr, 10, 64)
		e, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil || s < 0 {
			return byteRange{}, errRangeNotSatisfiable
		}
		start, end = s, e
	default:
		return byteRange{}, errRangeNotSatisfiable
	}

	if start > end || end >= size || start >= size || start < 0 {
		return byteRange{}, errRangeNotSatisfiable
	}

	return byteRange{start: start, end: end}, nil
}

// contentTypeTable is the explicit extension lookup of spec §4.6, used in
// place of mime.TypeByExtension so the mapping is exactly what the spec
// names and nothing more.
var contentTypeTable = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
}

// contentTypeForExt returns the spec §4.6 content type for ext (including
// the leading dot), or application/octet-stream if unmapped.
func contentTypeForExt(ext string) string {
	if ct, ok := contentTypeTable[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
