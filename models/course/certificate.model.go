package course

import (
	"time"

	"gorm.io/gorm"
)

// Certificate is issued at most once per (user, course). PdfPath stays nil until the render job stores the file.
type Certificate struct {
	gorm.Model
	UserID            uint      `json:"user_id" gorm:"uniqueIndex:idx_certificate_user_course;not null"`
	CourseID          uint      `json:"course_id" gorm:"uniqueIndex:idx_certificate_user_course;not null"`
	CertificateNumber string    `json:"certificate_number" gorm:"size:96;uniqueIndex;not null"`
	IssuedAt          time.Time `json:"issued_at"`
	PdfPath           *string   `json:"pdf_path"`
}

func (c *Certificate) PdfReady() bool {
	return c.PdfPath != nil && *c.PdfPath != ""
}
