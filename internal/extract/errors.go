package extract

import "errors"

var (
	// ErrUnsupported indicates a media type the extractor cannot read.
	ErrUnsupported = errors.New("unsupported document type for extraction")
	// ErrMissingSource indicates the stored file could not be opened.
	ErrMissingSource = errors.New("stored file is missing")
	// ErrNoText indicates the document contained no readable text.
	ErrNoText = errors.New("no readable text found in document")
)
