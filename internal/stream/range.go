package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/drivetune/internal/shared"
)

// ByteRange is an inclusive, 0-based byte range. End is -1 when it runs to an unknown end of file.
type ByteRange struct {
	Start int64
	End   int64
}

// ParseRange parses a single "bytes=start-end" range against a file of the given size
// (-1 when unknown). An empty header yields nil.
//
// An open end resolves to size-1 and a suffix range ("bytes=-n") to the last n bytes when
// the size is known. Ranges past the end of the file are passed through unvalidated.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, fmt.Errorf("%w: unsupported range unit in %q", shared.ErrInvalidRequest, header)
	}
	if strings.Contains(spec, ",") {
		return nil, fmt.Errorf("%w: multiple ranges are not supported", shared.ErrInvalidRequest)
	}

	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, fmt.Errorf("%w: malformed range %q", shared.ErrInvalidRequest, header)
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: malformed suffix range %q", shared.ErrInvalidRequest, header)
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: suffix range needs a known file size", shared.ErrInvalidRequest)
		}
		return &ByteRange{Start: max(size-n, 0), End: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("%w: malformed range start %q", shared.ErrInvalidRequest, header)
	}

	r := &ByteRange{Start: start, End: -1}
	if last != "" {
		end, err := strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return nil, fmt.Errorf("%w: malformed range end %q", shared.ErrInvalidRequest, header)
		}
		r.End = end
	} else if size >= 0 {
		r.End = size - 1
	}
	return r, nil
}

// Header renders the range for an upstream request.
func (r ByteRange) Header() string {
	if r.End < 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// Length is the number of bytes covered, or -1 when the end is unknown.
func (r ByteRange) Length() int64 {
	if r.End < 0 {
		return -1
	}
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range value for a response, or "" when the end is unknown.
func (r ByteRange) ContentRange(size int64) string {
	if r.End < 0 {
		return ""
	}
	total := "*"
	if size >= 0 {
		total = strconv.FormatInt(size, 10)
	}
	return fmt.Sprintf("bytes %d-%d/%s", r.Start, r.End, total)
}
