package meta

import "errors"

var (
	// ErrNoGetter is wrapped by lookup failures for unreadable properties.
	ErrNoGetter = errors.New("no getter for property")

	// ErrNoSetter is wrapped by lookup failures for unwritable properties.
	ErrNoSetter = errors.New("no setter for property")

	// ErrAmbiguous is wrapped by invokers whose property resolved to more
	// than one equally plausible member. The failure surfaces on use, not
	// at build time, so a single conflicted property does not poison the
	// rest of the type's metadata.
	ErrAmbiguous = errors.New("ambiguous property")

	// ErrNotStruct is returned when a described type is not a struct.
	ErrNotStruct = errors.New("not a struct type")
)
