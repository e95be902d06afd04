package port

import (
	"context"
	"errors"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// ErrUnsupportedContentType is returned by FileStore for content it refuses to accept.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// FileStore hands out pre-authorized upload locations for user files.
type FileStore interface {
	PresignUpload(ctx context.Context, ownerID, contentType string) (domain.UploadTarget, error)
}
