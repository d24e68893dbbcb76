package models

import "time"

// Project is the owning script/settings bundle a generation is created
// against. Script and aspect ratio act as defaults for a generation
// request that omits them.
type Project struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title         string    `json:"title"`
	Script        string    `gorm:"type:text" json:"script"`
	AspectRatio   string    `json:"aspectRatio"`
	EnhancePreset string    `json:"enhancePreset"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}
