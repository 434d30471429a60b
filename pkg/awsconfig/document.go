// Package awsconfig reads and writes the AWS shared config file
// (~/.aws/config) and maps its sections to SSO profiles.
package awsconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const (
	// permission for user to read/write.
	USER_READ_WRITE_PERM = 0600
	// permission for user to read/write/execute.
	USER_READ_WRITE_EXECUTE_PERM = 0700
)

// DefaultOutput is the output format written into the [default] section
// of a freshly created config file.
const DefaultOutput = "json"

// values such as "https://d-xxxx.awsapps.com/start#/" keep their '#'
var loadOptions = ini.LoadOptions{
	AllowNonUniqueSections:  false,
	SkipUnrecognizableLines: false,
	AllowNestedValues:       true,
	IgnoreInlineComment:     true,
}

// Document is a parsed config file. Section order and the key order
// inside each section are kept as they were read.
type Document struct {
	file *ini.File
}

// Empty returns a document without any sections.
func Empty() *Document {
	return &Document{file: ini.Empty(loadOptions)}
}

// Parse parses raw config file contents.
func Parse(data []byte) (*Document, error) {
	return parse("<memory>", data)
}

func parse(path string, data []byte) (*Document, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &Document{file: f}, nil
}

// Load reads the config file at path. It returns an error wrapping
// ErrNotFound when the file does not exist, it never creates it.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, &IOError{Op: "reading", Path: path, Err: err}
	}
	return parse(path, data)
}

// EnsureExists creates the config file at path, along with any missing
// parent directories, when it does not exist yet. The new file contains a
// single [default] section with the given region. An existing file is
// never touched. created reports whether a file was written.
func EnsureExists(path string, region string) (created bool, err error) {
	_, err = os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, &IOError{Op: "checking", Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), USER_READ_WRITE_EXECUTE_PERM); err != nil {
		return false, &IOError{Op: "creating directory for", Path: path, Err: err}
	}

	doc := Empty()
	section, err := doc.file.NewSection("default")
	if err != nil {
		return false, err
	}
	if _, err := section.NewKey("region", region); err != nil {
		return false, err
	}
	if _, err := section.NewKey("output", DefaultOutput); err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return false, err
	}

	// O_EXCL so that a file created between the Stat above and here is kept.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, USER_READ_WRITE_PERM)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, &IOError{Op: "creating", Path: path, Err: err}
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return false, &IOError{Op: "writing", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return false, &IOError{Op: "writing", Path: path, Err: err}
	}
	return true, nil
}

// Write replaces the file at path with the serialized document.
// The file keeps its existing permissions, new files are created 0600.
// If path is a symlink the link target is rewritten.
func Write(path string, doc *Document) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return &IOError{Op: "serializing", Path: path, Err: err}
	}

	target := path
	perm := os.FileMode(USER_READ_WRITE_PERM)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		target = resolved
		if info, err := os.Stat(resolved); err == nil {
			perm = info.Mode().Perm()
		}
	}

	if err := writeFileAtomic(target, buf.Bytes(), perm); err != nil {
		return &IOError{Op: "writing", Path: path, Err: err}
	}
	return nil
}

// WriteTo writes the document in ini format.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	return d.file.WriteTo(w)
}

// SectionNames returns the section names in document order. The implicit
// top level section is only included when it holds keys.
func (d *Document) SectionNames() []string {
	var names []string
	for _, section := range d.file.Sections() {
		if section.Name() == ini.DefaultSection && len(section.Keys()) == 0 {
			continue
		}
		names = append(names, section.Name())
	}
	return names
}

// HasSection reports whether a section with exactly this name exists.
func (d *Document) HasSection(name string) bool {
	_, err := d.file.GetSection(name)
	return err == nil
}

// Get returns the value of key in section.
func (d *Document) Get(section, key string) (string, bool) {
	s, err := d.file.GetSection(section)
	if err != nil || !s.HasKey(key) {
		return "", false
	}
	return s.Key(key).String(), true
}

// Keys returns the key/value pairs of a section in file order.
func (d *Document) Keys(section string) [][2]string {
	s, err := d.file.GetSection(section)
	if err != nil {
		return nil
	}
	var kvs [][2]string
	for _, k := range s.Keys() {
		kvs = append(kvs, [2]string{k.Name(), k.Value()})
	}
	return kvs
}

// EnsureSection adds an empty section called name unless it already
// exists. It reports whether the section was added.
func (d *Document) EnsureSection(name string) (bool, error) {
	if d.HasSection(name) {
		return false, nil
	}
	if _, err := d.file.NewSection(name); err != nil {
		return false, err
	}
	return true, nil
}
