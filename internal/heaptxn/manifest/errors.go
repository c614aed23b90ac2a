package manifest

import (
	"errors"
	"fmt"
)

var (
	ErrManifestNotFound           = errors.New("manifest: file not found")
	ErrManifestCorrupted          = errors.New("manifest: invalid catalog")
	ErrManifestUnsupportedVersion = errors.New("manifest: unsupported version")
	ErrManifestEncode             = errors.New("manifest: unable to encode to JSON")
	ErrManifestDecode             = errors.New("manifest: unable to decode from JSON")
	ErrManifestWrite              = errors.New("manifest: unable to write to file")
	ErrManifestAlreadyExists      = errors.New("manifest: file already exists")
)

// ManifestErrorKind classifies a ManifestError. Each kind unwraps to one sentinel.
type ManifestErrorKind int

const (
	ManifestErrorKindNotFound ManifestErrorKind = iota + 1
	ManifestErrorKindCorrupted
	ManifestErrorKindUnsupportedVersion
	ManifestErrorKindEncode
	ManifestErrorKindDecode
	ManifestErrorKindWrite
	ManifestErrorKindAlreadyExists
)

var kindInfo = map[ManifestErrorKind]struct {
	name     string
	sentinel error
}{
	ManifestErrorKindNotFound:           {"not_found", ErrManifestNotFound},
	ManifestErrorKindCorrupted:          {"corrupted", ErrManifestCorrupted},
	ManifestErrorKindUnsupportedVersion: {"unsupported_version", ErrManifestUnsupportedVersion},
	ManifestErrorKindEncode:             {"encode", ErrManifestEncode},
	ManifestErrorKindDecode:             {"decode", ErrManifestDecode},
	ManifestErrorKindWrite:              {"write", ErrManifestWrite},
	ManifestErrorKindAlreadyExists:      {"already_exists", ErrManifestAlreadyExists},
}

func (k ManifestErrorKind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return "unknown"
}

type ManifestError struct {
	Kind ManifestErrorKind
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the kind's sentinel; the underlying failure is CauseErr.
func (e *ManifestError) Unwrap() error {
	if info, ok := kindInfo[e.Kind]; ok {
		return info.sentinel
	}
	return e.Err
}

// CauseErr returns the underlying failure.
func (e *ManifestError) CauseErr() error { return e.Err }
