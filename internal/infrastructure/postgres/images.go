package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-account-api/internal/domain"
)

type ImageRepository struct {
	db DBTX
}

func NewImageRepository(db DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create fails with domain.ErrConflict when the account already has an image.
func (r *ImageRepository) Create(ctx context.Context, img *domain.ProfileImage) error {
	query :=
		`INSERT INTO profile_images (id, file_name, url, upload_date, user_id)
		 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, img.ImageID, img.FileName, img.URL, img.UploadDate, img.AccountID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("image for %s: %w", img.AccountID, domain.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *ImageRepository) FindByAccountID(ctx context.Context, accountID string) (*domain.ProfileImage, error) {
	query :=
		`SELECT id, file_name, url, upload_date, user_id FROM profile_images
		 WHERE user_id = $1`

	img := &domain.ProfileImage{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&img.ImageID, &img.FileName, &img.URL, &img.UploadDate, &img.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) Delete(ctx context.Context, img *domain.ProfileImage) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profile_images WHERE id = $1`, img.ImageID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("image %s: %w", img.ImageID, domain.ErrNotFound)
	}
	return nil
}
