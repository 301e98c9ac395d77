package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	FileKindReadme = "readme"
	FileKindDocs   = "docs"
	FileKindConfig = "config"
	FileKindImage  = "image"
)

type ProjectFile struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`

	Name      string `gorm:"column:name;not null" json:"name"`
	Bucket    string `gorm:"column:bucket" json:"bucket"`
	Path      string `gorm:"column:path" json:"path"`
	Kind      string `gorm:"column:kind;not null;default:'config'" json:"kind"`
	SizeBytes int64  `gorm:"column:size_bytes" json:"size_bytes"`

	// Content caches the text payload inline. The blob in object storage is a
	// best-effort optimization; at least one of the two must resolve.
	Content string `gorm:"column:content;type:text" json:"content,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ProjectFile) TableName() string { return "project_file" }

// HasStorageLocator reports whether the file can be fetched from the object
// storage collaborator at all.
func (f *ProjectFile) HasStorageLocator() bool {
	return f.Bucket != "" && f.Path != ""
}
