package models

import (
	"time"
)

// SourceVideo is a downloaded source file. Clips reference it at creation time
// but survive its deletion: source files are bulky and get cleaned up while the
// processed catalog stays.
type SourceVideo struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	Source     string  `json:"source"` // "pexels", "pixabay", "archive.org", "local"
	SourceURL  string  `json:"source_url"`
	Identifier string  `json:"identifier"`
	Title      string  `json:"title"`
	License    string  `json:"license"`
	Query      string  `json:"query"` // search query that found it
	FilePath   string  `json:"file_path" gorm:"index"`
	Duration   float64 `json:"duration"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FileSize   int64   `json:"file_size"`
}

// Clip is the unit of tagging and search: a short segment cut from one source.
type Clip struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	SourceVideoID uint   `json:"source_video_id" gorm:"index"`
	SourceURL     string `json:"source_url"`
	SourceName    string `json:"source_name"`

	FilePath  string  `json:"file_path" gorm:"unique_index"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FileSize  int64   `json:"file_size"`

	// Heuristic analysis results
	MotionLevel    string   `json:"motion_level" gorm:"index"`
	MotionScore    float64  `json:"motion_score"`
	CameraMotion   bool     `json:"camera_motion"`
	ObjectMotion   bool     `json:"object_motion"`
	BPM            *float64 `json:"bpm" gorm:"index"`
	TempoCategory  *string  `json:"tempo_category"`
	TempoStability float64  `json:"tempo_stability"`
	EnergyLevel    float64  `json:"energy_level"`

	// Playback compatibility
	AutoplayCompatible bool   `json:"autoplay_compatible"`
	WebOptimized       bool   `json:"web_optimized"`
	VideoCodec         string `json:"video_codec"`
	AudioCodec         string `json:"audio_codec"`
	Container          string `json:"container"`

	// Latest categorization wins
	Category    string `json:"category" gorm:"index"`
	Subcategory string `json:"subcategory"`

	Tags      []Tag        `json:"tags"`
	Colors    []Color      `json:"colors"`
	Moods     []Mood       `json:"moods"`
	KeyFrames []KeyFrame   `json:"key_frames"`
	UseCases  []UseCase    `json:"use_cases"`
	Analyses  []AIAnalysis `json:"-"`
}

// Tag types: theme, style, keyword, energy, genre, search_query.
type Tag struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	ClipID     uint    `json:"-" gorm:"index"`
	TagType    string  `json:"tag_type" gorm:"index"`
	TagValue   string  `json:"tag_value" gorm:"index"`
	Confidence float64 `json:"confidence"`
}

type Color struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	ClipID     uint    `json:"-" gorm:"index"`
	Hex        string  `json:"hex"`
	Name       string  `json:"name" gorm:"index"`
	Percentage float64 `json:"percentage"` // [0,1], best-effort, not required to sum to 1
}

// Mood types: positive, negative, neutral. Search uses the first stored mood.
type Mood struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	ClipID      uint    `json:"-" gorm:"index"`
	MoodType    string  `json:"mood_type" gorm:"index"`
	Intensity   float64 `json:"intensity"` // [0,10]
	Description string  `json:"description"`
}

// AIAnalysis is an immutable snapshot of one tagging call. Append-only; the
// latest by AnalyzedAt is authoritative.
type AIAnalysis struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	ClipID     uint      `json:"-" gorm:"index"`
	Model      string    `json:"model"`
	ResultJSON string    `json:"result_json" sql:"type:text"`
	AnalyzedAt time.Time `json:"analyzed_at" gorm:"index"`
}

type KeyFrame struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	ClipID           uint    `json:"-" gorm:"index"`
	FrameIndex       int     `json:"frame_index"`
	Timestamp        float64 `json:"timestamp"` // offset within the clip, seconds
	FramePath        string  `json:"frame_path"`
	ThumbnailPath    string  `json:"thumbnail_path"`
	IsRepresentative bool    `json:"is_representative"`
}

// UseCase is derived and recomputable; safe to delete and regenerate.
type UseCase struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	ClipID           uint    `json:"-" gorm:"index"`
	Label            string  `json:"use_case"`
	SuitabilityScore float64 `json:"suitability_score"` // [0,100]
	Description      string  `json:"description"`
}

// Category rows form the taxonomy table (two levels: Parent == "" for main
// categories). Seeded at startup from the categorizer's taxonomy.
type Category struct {
	ID        uint       `gorm:"primary_key" json:"ID"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
	DeletedAt *time.Time `sql:"index" json:"-"`

	Name        string `json:"name" gorm:"unique_index"`
	Parent      string `json:"parent"`
	Description string `json:"description"`
}
