package discovery

import "errors"

var (
	// ErrNoSources is returned when the manifest directory is missing or
	// yields no URL at all.
	ErrNoSources = errors.New("no endpoint sources")
	// ErrUnsupportedManifest marks a file whose format is not understood.
	// Such files are logged and skipped.
	ErrUnsupportedManifest = errors.New("unsupported manifest format")
	// ErrParseManifest is returned when a supported file cannot be parsed.
	ErrParseManifest = errors.New("parse manifest")

	errUnknownExtension = errors.New("not a manifest file")
)
