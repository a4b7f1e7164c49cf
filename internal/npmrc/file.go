package npmrc

import (
	"fmt"
	"os"
	"strings"

	"github.com/akuity/npmauth/internal/io/fs"
)

const (
	lf   = "\n"
	crlf = "\r\n"
	bom  = "\uFEFF"
)

// Directive is a registry declaration found in an .npmrc file.
type Directive struct {
	// URL is the declared registry URL, normalized to end with a slash.
	URL string
	// Scope is the package scope the registry is declared for, e.g. "@myorg".
	// It is empty for the default registry.
	Scope string
	// Line is the zero-based index of the declaring line.
	Line int
}

// File is an .npmrc file parsed into classified lines. Mutations keep the
// number and order of existing lines intact: removed lines are blanked in
// place and new lines are only ever appended.
type File struct {
	Path  string
	Lines []Line
	// EOL is the line terminator detected in the original content.
	EOL string

	bom         bool
	trailingEOL bool
	changed     bool
}

// Parse reads and parses the .npmrc file at path.
func Parse(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return ParseBytes(path, data), nil
}

// ParseBytes parses the content of an .npmrc file.
func ParseBytes(path string, data []byte) *File {
	content := string(data)
	f := &File{
		Path: path,
		EOL:  lf,
	}
	// Editors on Windows like to start files with a byte order mark. It would
	// otherwise end up in the key of the first line.
	if strings.HasPrefix(content, bom) {
		f.bom = true
		content = strings.TrimPrefix(content, bom)
	}
	if strings.Contains(content, crlf) {
		f.EOL = crlf
	}
	if content == "" {
		return f
	}
	if strings.HasSuffix(content, lf) {
		f.trailingEOL = true
		content = strings.TrimSuffix(strings.TrimSuffix(content, lf), "\r")
	}
	texts := strings.Split(content, lf)
	f.Lines = make([]Line, len(texts))
	for i, text := range texts {
		if f.EOL == crlf {
			text = strings.TrimSuffix(text, "\r")
		}
		f.Lines[i] = ParseLine(text)
	}
	return f
}

// Directives returns the registry declarations of the file in file order.
func (f *File) Directives() []Directive {
	var directives []Directive
	for i, line := range f.Lines {
		if line.Kind != LineKindDeclaration {
			continue
		}
		d := Directive{
			URL:  NormalizeRegistry(line.Value()),
			Line: i,
		}
		if scope, _, found := strings.Cut(line.Key(), ":"); found {
			d.Scope = scope
		}
		directives = append(directives, d)
	}
	return directives
}

// Scrub blanks every credential line whose registry is the registry with the
// given nerf key or one below it, with or without a trailing slash and with or
// without a scheme. Lines whose trimmed text is in keep are left
// alone; they are exactly what the caller is about to inject. Declarations are
// never touched. It returns the number of blanked lines.
func (f *File) Scrub(nerf string, keep ...string) int {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[strings.TrimSpace(k)] = struct{}{}
	}
	var scrubbed int
	for i, line := range f.Lines {
		if line.Kind != LineKindCredential {
			continue
		}
		if !RegistryMatches(line.CredentialRegistry(), nerf) {
			continue
		}
		if _, ok := keepSet[strings.TrimSpace(line.Text)]; ok {
			continue
		}
		f.Lines[i] = Line{Kind: LineKindBlank}
		scrubbed++
	}
	if scrubbed > 0 {
		f.changed = true
	}
	return scrubbed
}

// Contains returns true if the file has a line whose trimmed text is equal to
// the trimmed text provided.
func (f *File) Contains(text string) bool {
	text = strings.TrimSpace(text)
	for _, line := range f.Lines {
		if strings.TrimSpace(line.Text) == text {
			return true
		}
	}
	return false
}

// Append adds lines at the end of the file. Texts containing line breaks are
// split into separate lines.
func (f *File) Append(texts ...string) {
	for _, text := range texts {
		for _, t := range strings.Split(strings.ReplaceAll(text, crlf, lf), lf) {
			if strings.TrimSpace(t) == "" {
				continue
			}
			f.Lines = append(f.Lines, ParseLine(t))
			f.changed = true
		}
	}
	if f.changed {
		f.trailingEOL = true
	}
}

// Changed returns true if the file was modified since it was parsed.
func (f *File) Changed() bool {
	return f.changed
}

// Bytes serializes the file using its original line terminator.
func (f *File) Bytes() []byte {
	var sb strings.Builder
	if f.bom {
		sb.WriteString(bom)
	}
	for i, line := range f.Lines {
		if i > 0 {
			sb.WriteString(f.EOL)
		}
		sb.WriteString(line.Text)
	}
	if f.trailingEOL && len(f.Lines) > 0 {
		sb.WriteString(f.EOL)
	}
	if sb.Len() == 0 {
		return nil
	}
	return []byte(sb.String())
}

// Write replaces the file on disk with the serialized content in a single
// atomic step.
func (f *File) Write() error {
	if err := fs.WriteFileAtomic(f.Path, f.Bytes(), 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", f.Path, err)
	}
	f.changed = false
	return nil
}
