package kmknn

import "fmt"

// LoaderFunc reconstructs a Prebuilt from the blob set at prefix.
type LoaderFunc func(prefix string, opts Options) (*Prebuilt, error)

// registry maps an on-disk ALGORITHM tag to the loader that knows how to
// read it. Not thread-safe: registration is expected to happen once,
// from an init function or early in main, before any LoadPrebuilt call.
var registry = map[string]LoaderFunc{
	algorithmTag: func(prefix string, opts Options) (*Prebuilt, error) {
		return Load(prefix, opts)
	},
}

// RegisterLoader associates tag with loader for later LoadPrebuilt
// dispatch. Re-registering an existing tag overwrites it.
func RegisterLoader(tag string, loader LoaderFunc) {
	registry[tag] = loader
}

// LoadPrebuilt reads the ALGORITHM tag at prefix and dispatches to the
// registered loader for it.
func LoadPrebuilt(prefix string, opts Options) (*Prebuilt, error) {
	tag, err := readTag(prefix + "ALGORITHM")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	loader, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for tag %q", ErrTagMismatch, tag)
	}
	return loader(prefix, opts)
}
