package versions

import (
	"fmt"
	"regexp"
	"time"
)

const (
	DefaultNamePrefix = "Resume"
	nameDateLayout    = "2006-01-02"
	nameVersionSuffix = "v1.0"
)

var nameRe = regexp.MustCompile(`^(.+)_(\d{4}-\d{2}-\d{2})_(v\d+\.\d+)\.pdf$`)

// GenerateName builds the stored filename for an upload accepted at t,
// e.g. Resume_2026-10-19_v1.0.pdf.
func GenerateName(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	return fmt.Sprintf("%s_%s_%s.pdf", prefix, t.UTC().Format(nameDateLayout), nameVersionSuffix)
}

// ParsedName is the inverse of GenerateName.
type ParsedName struct {
	Prefix  string
	Date    time.Time
	Version string
}

// ParseName splits a generated filename. ok is false for foreign names.
func ParseName(name string) (ParsedName, bool) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, false
	}
	d, err := time.Parse(nameDateLayout, m[2])
	if err != nil {
		return ParsedName{}, false
	}
	return ParsedName{Prefix: m[1], Date: d, Version: m[3]}, true
}
