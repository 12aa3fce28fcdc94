package domain

import (
	"io"
	"time"
)

// ProfileImage is the metadata row of the single image an account may own.
type ProfileImage struct {
	ImageID    string    `json:"id" dynamodbav:"image_id"`
	FileName   string    `json:"file_name" dynamodbav:"file_name"`
	URL        string    `json:"url" dynamodbav:"url"`
	UploadDate time.Time `json:"upload_date" dynamodbav:"upload_date"`
	AccountID  string    `json:"user_id" dynamodbav:"user_id"`
}

// ImageUpload is a blob submitted for attachment.
type ImageUpload struct {
	Reader      io.Reader
	FileName    string
	ContentType string
	Size        int64
}

// Allowed profile image content types.
var ImageContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}
