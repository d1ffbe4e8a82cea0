package videos

import (
	"errors"
	"fmt"

	"github.com/adreel/backend/internal/repositories"
)

var (
	// ErrHostUnavailable indicates the media host is not configured.
	ErrHostUnavailable = errors.New("media host unavailable")
	// ErrUnsupportedFormat indicates an upload is not an mp4 container.
	ErrUnsupportedFormat = errors.New("unsupported video format")
	// ErrUnreadableMedia indicates ffprobe rejected an upload's content.
	ErrUnreadableMedia = errors.New("unreadable video file")
	// ErrAssetStorageUnavailable indicates asset storage is not configured.
	ErrAssetStorageUnavailable = errors.New("asset storage unavailable")
)

// Kind classifies failures so callers can react without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation covers missing ids, missing files and unusable uploads.
	KindValidation
	// KindNotFound means the id has no record.
	KindNotFound
	// KindUpstream covers media host and media tooling failures.
	KindUpstream
	// KindPersistence covers record store failures.
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error tags an underlying error with the operation and its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnknown
}

func validationError(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

func upstreamError(op string, err error) error {
	if KindOf(err) != KindUnknown {
		return err
	}
	if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrUnreadableMedia) {
		return &Error{Kind: KindValidation, Op: op, Err: err}
	}
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

func storeError(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}
