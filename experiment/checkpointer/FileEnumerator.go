package checkpointer

import "fmt"

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	name      string
	extension string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	name := fmt.Sprintf("%v%v%v", f.name, f.i, f.extension)
	f.i++
	return name
}

// FilenameEnumerator returns a function which will return filenames
// with a counter integer suffix, starting at start. Each call returns a
// suffix one higher than the previous call. The filename parameter is
// the full filename with its path, and extension is appended verbatim,
// so it should include its leading dot.
func FilenameEnumerator(start int, filename, extension string) func() string {
	enum := fileEnumerator{i: start, name: filename, extension: extension}

	return enum.filename
}
