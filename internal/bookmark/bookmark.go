// Package bookmark renders selection results into the text formats that
// radio-monitoring clients read, and writes them atomically.
//
// Two shapes are supported. Template documents carry quoted region
// placeholders ("Tokyo) that are replaced by the selected receiver URL.
// Line documents are built one bookmark per line.
package bookmark

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Placeholder maps a template token name to the URL that replaces it.
type Placeholder struct {
	Name string
	URL  string
}

// Token is the literal text searched for in a template.
func (p Placeholder) Token() string {
	return `"` + p.Name
}

// Replacement is the text written in place of the token.
func (p Placeholder) Replacement() string {
	return `"` + p.URL + `/`
}

// Template is a bookmark document containing placeholders.
type Template struct {
	text string
}

// NewTemplate wraps template text.
func NewTemplate(text string) *Template {
	return &Template{text: text}
}

// ReadTemplate loads a template from disk.
func ReadTemplate(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	return NewTemplate(string(b)), nil
}

// Render replaces every occurrence of each placeholder's token, in order.
// The substitution is plain text over the whole document, so names must not
// collide with unrelated text. Placeholders without a URL are skipped.
func (t *Template) Render(subs []Placeholder) string {
	out := t.text
	for _, p := range subs {
		if p.Name == "" || p.URL == "" {
			continue
		}
		out = strings.ReplaceAll(out, p.Token(), p.Replacement())
	}
	return out
}

// Line is one entry of a line-oriented bookmark file. An empty Format
// result means the entry is left out.
type Line interface {
	Format() string
}

// StreamLine is a row of the stream bookmark list:
// description,band,url,frequency,mode,sdrtype.
type StreamLine struct {
	Description string
	Band        string
	URL         string
	Frequency   string
	Mode        string
	SDRType     string
}

// Format renders the row, or "" when there is no URL.
func (l StreamLine) Format() string {
	if l.URL == "" {
		return ""
	}
	return strings.Join([]string{l.Description, l.Band, l.URL, l.Frequency, l.Mode, l.SDRType}, ",") + "\n"
}

// ServerHeader opens a SuperSDR server list.
const ServerHeader = "# KiwiSDR bookmark format is...\n# server port frequency description\n"

// ServerLine is one SuperSDR server entry. The URL's scheme is dropped and
// every colon becomes a space, giving `"location" host port frequency`.
type ServerLine struct {
	Location  string
	URL       string
	Frequency string
}

// Format renders the entry, or "" when there is no URL.
func (l ServerLine) Format() string {
	if l.URL == "" {
		return ""
	}
	s := `"` + l.Location + `" ` + l.URL + " " + l.Frequency + "\n"
	s = strings.ReplaceAll(s, "http://", "")
	return strings.ReplaceAll(s, ":", " ")
}

// Lines joins the formatted lines after header, skipping empty ones.
func Lines[L Line](header string, lines []L) string {
	var b strings.Builder
	b.WriteString(header)
	for _, l := range lines {
		b.WriteString(l.Format())
	}
	return b.String()
}

// WriteFile replaces path with data. The data goes to a temp file in the
// same directory first and is renamed into place, so a failure never leaves
// a half-written bookmark file behind.
func WriteFile(path string, data string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
