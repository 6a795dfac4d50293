package models

import "time"

// Source kinds a video record can carry. The kind decides how playback
// and thumbnailing treat the Path column.
const (
	TypeLocal   = "local"   // Path is a filename under the videos directory
	TypeDirect  = "direct"  // Path is a direct URL to a media file
	TypeYouTube = "youtube" // Path is a YouTube URL
	TypeEmbed   = "embed"   // Path is an embeddable player URL
)

// Video represents one row in the videos table.
type Video struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	PersonName    *string   `json:"person_name,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Type          string    `json:"type"`
	Path          string    `json:"path"`
	Transcript    *string   `json:"transcript,omitempty"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	ColabTaskID   *string   `json:"colab_task_id,omitempty"`
	SourceName    *string   `json:"source_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Snippet is only populated on search results: a short highlighted
	// excerpt around the matched term. It is never persisted.
	Snippet string `json:"snippet,omitempty"`
}

// ValidType reports whether t is one of the recognised source kinds.
func ValidType(t string) bool {
	switch t {
	case TypeLocal, TypeDirect, TypeYouTube, TypeEmbed:
		return true
	}
	return false
}

// NewVideo carries the caller-supplied fields of a video being created.
type NewVideo struct {
	Title         string `json:"title" validate:"required"`
	PersonName    string `json:"person_name"`
	Category      string `json:"category"`
	Type          string `json:"type" validate:"required,oneof=local direct youtube embed"`
	Path          string `json:"path" validate:"required"`
	Transcript    string `json:"transcript"`
	ThumbnailPath string `json:"manual_thumbnail"`
	SourceName    string `json:"source_name"`
}
