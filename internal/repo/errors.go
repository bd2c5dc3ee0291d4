package repo

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")

	// ErrAmbiguous is returned when a template id exists but does not belong
	// to the pipeline name it was requested under.
	ErrAmbiguous = errors.New("template id does not belong to pipeline")
)
