package fileInfo

import (
	"encoding/json"
	"strings"
)

const AllFiles = "all"

// Filter narrows a listing. Empty fields are absent.
type Filter struct {
	Filename    string
	Extension   string
	ContentType string
}

// Canonical returns the filter in the form used both for querying and for
// building the cache descriptor, so equivalent inputs share one cache entry.
func (f Filter) Canonical() Filter {
	c := Filter{
		Filename:    strings.ToLower(strings.TrimSpace(f.Filename)),
		Extension:   strings.ToLower(strings.TrimSpace(f.Extension)),
		ContentType: strings.ToLower(strings.TrimSpace(f.ContentType)),
	}
	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	return c
}

func (f Filter) IsEmpty() bool {
	c := f.Canonical()
	return c.Filename == "" && c.Extension == "" && c.ContentType == ""
}

type descriptor struct {
	Filename    *string `json:"filename"`
	ContentType *string `json:"content_type"`
	Extension   *string `json:"file_extension"`
}

// Descriptor is "all" for an empty filter, otherwise a JSON object with a
// fixed field order where absent fields are null.
func (f Filter) Descriptor() string {
	c := f.Canonical()
	if c.Filename == "" && c.Extension == "" && c.ContentType == "" {
		return AllFiles
	}
	body, _ := json.Marshal(descriptor{
		Filename:    optional(c.Filename),
		ContentType: optional(c.ContentType),
		Extension:   optional(c.Extension),
	})
	return string(body)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
