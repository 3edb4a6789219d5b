package media

// Source is one input file as seen by the registration pipeline. A RAW file
// is parsed on first use and the container is shared by the preview and
// metadata stages. A Source is not safe for concurrent use.
type Source struct {
	Path string
	Role FileRole

	raw     *RawContainer
	rawErr  error
	rawRead bool
}

func NewSource(path string) *Source {
	return &Source{Path: path, Role: ClassifyPath(path)}
}

// Raw returns the parsed RAW container, reading the file at most once.
func (s *Source) Raw() (*RawContainer, error) {
	if !s.rawRead {
		s.raw, s.rawErr = openRawForDecode(s.Path)
		s.rawRead = true
	}
	return s.raw, s.rawErr
}
