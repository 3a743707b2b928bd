package ingest

import "errors"

var (
	ErrFileNotFound      = errors.New("file_not_found")
	ErrParseFailure      = errors.New("parse_failure")
	ErrUnsupportedFormat = errors.New("unsupported_format")
	ErrMissingHeaders    = errors.New("missing_headers")
)
