package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gamekeys/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ObjectStorage defines the object storage operations used for cover images.
// It is implemented by the infrastructure layer (S3, MinIO, in-memory).
type ObjectStorage interface {
	// GenerateUploadURL returns a presigned PUT URL and its expiration time.
	// contentLength is signed into the URL when positive.
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, contentLength int64, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL returns a presigned GET URL and its expiration time
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// CoverContentTypes maps the accepted cover image types to file extensions.
// SVG is not accepted since it can carry scripts.
var CoverContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// CoverKeyPrefix returns the storage prefix of a product's cover images
func CoverKeyPrefix(productID uuid.UUID) string {
	return "covers/" + productID.String() + "/"
}

// RequestCoverUpload returns a presigned URL the admin client uploads the cover to.
// The cover is attached with ConfirmCover once the upload finished.
func (s *ProductService) RequestCoverUpload(ctx context.Context, productID uuid.UUID, req CoverUploadRequest) (*CoverUploadResponse, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError("STORAGE_DISABLED", "Object storage is not configured")
	}

	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := CoverContentTypes[contentType]
	if !ok {
		return nil, shared.NewDomainError("INVALID_CONTENT_TYPE", "Cover must be a JPEG, PNG or WebP image")
	}
	if req.Size <= 0 || (s.config.MaxCoverSize > 0 && req.Size > s.config.MaxCoverSize) {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE",
			fmt.Sprintf("Cover size must be between 1 and %d bytes", s.config.MaxCoverSize))
	}

	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	storageKey := CoverKeyPrefix(productID) + uuid.NewString() + ext
	url, expiresAt, err := s.storage.GenerateUploadURL(ctx, storageKey, contentType, req.Size, s.config.CoverUploadExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &CoverUploadResponse{
		UploadURL:  url,
		StorageKey: storageKey,
		ExpiresAt:  expiresAt,
	}, nil
}

// ConfirmCover attaches an uploaded image as the product cover and removes
// the previous one
func (s *ProductService) ConfirmCover(ctx context.Context, productID uuid.UUID, req ConfirmCoverRequest) (*ProductResponse, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError("STORAGE_DISABLED", "Object storage is not configured")
	}
	if !strings.HasPrefix(req.StorageKey, CoverKeyPrefix(productID)) {
		return nil, shared.NewDomainError("INVALID_STORAGE_KEY", "Storage key does not belong to this product")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	exists, err := s.storage.ObjectExists(ctx, req.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify upload: %w", err)
	}
	if !exists {
		return nil, shared.NewDomainError("UPLOAD_NOT_FOUND", "Cover image has not been uploaded")
	}

	previous := product.CoverImageKey
	product.SetCoverImage(req.StorageKey)
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}

	if previous != "" && previous != req.StorageKey {
		if err := s.storage.DeleteObject(ctx, previous); err != nil {
			s.logger.Warn("Failed to delete previous cover image",
				zap.String("product_id", productID.String()),
				zap.String("storage_key", previous),
				zap.Error(err))
		}
	}

	return s.toResponse(ctx, product), nil
}

// RemoveCover detaches and deletes the product cover
func (s *ProductService) RemoveCover(ctx context.Context, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	previous := product.CoverImageKey
	if previous == "" {
		return s.toResponse(ctx, product), nil
	}

	product.SetCoverImage("")
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	if s.storage != nil {
		if err := s.storage.DeleteObject(ctx, previous); err != nil {
			s.logger.Warn("Failed to delete cover image",
				zap.String("product_id", productID.String()),
				zap.String("storage_key", previous),
				zap.Error(err))
		}
	}
	return s.toResponse(ctx, product), nil
}
