package export

import (
	"math"
	"os"
	"strings"
	"unicode"
)

const (
	slugMaxLen      = 50
	slugPlaceholder = "segment"
)

// Slug turns free text into a filename fragment. Letters, digits and marks
// are kept, runs of whitespace, '-' and '_' collapse to one '_', everything
// else is dropped. Over-long slugs are cut back to the last '_' boundary.
func Slug(s string, maxLen int) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if pendingSep && b.Len() > 0 {
				b.WriteRune('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r):
			pendingSep = true
		}
	}

	out := b.String()
	if maxLen > 0 {
		runes := []rune(out)
		if len(runes) > maxLen {
			out = string(runes[:maxLen])
			if i := strings.LastIndex(out, "_"); i > 0 {
				out = out[:i]
			}
		}
	}

	out = strings.Trim(out, "_")
	if out == "" {
		return slugPlaceholder
	}
	return out
}

// ValidateInputPath checks that the source video exists and is a regular file.
func ValidateInputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return Errorf(KindValidation, "input_video_path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Errorf(KindValidation, "Original video not found")
		}
		return &Error{Kind: KindValidation, Message: "invalid input_video_path", Err: err}
	}
	if info.IsDir() {
		return Errorf(KindValidation, "input_video_path is a directory")
	}
	return nil
}

// ValidateRequest rejects requests that must never become jobs.
func ValidateRequest(req Request) error {
	if len(req.Segments) == 0 {
		return Errorf(KindValidation, "No segments provided")
	}

	for i, s := range req.Segments {
		if math.IsNaN(s.Start) || math.IsNaN(s.End) || math.IsInf(s.Start, 0) || math.IsInf(s.End, 0) {
			return Errorf(KindValidation, "segment %d: start and end must be finite", i)
		}
		if s.Start < 0 {
			return Errorf(KindValidation, "segment %d: start must be >= 0", i)
		}
		if s.End <= s.Start {
			return Errorf(KindValidation, "segment %d: end must be greater than start", i)
		}
	}

	if t := req.Settings.Threshold(); t < 0 || math.IsNaN(t) {
		return Errorf(KindValidation, "pause_threshold must be >= 0")
	}

	return ValidateInputPath(req.InputVideoPath)
}
