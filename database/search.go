package database

import (
	"math/rand"
	"strings"

	"github.com/jinzhu/gorm"

	"github.com/uaffan326-del/video-library-system/models"
)

// SearchFilters describes the read-only query surface over the clip catalog.
// All filters combine with AND. Zero values mean "no filter".
type SearchFilters struct {
	Keywords      []string
	Mood          string
	Color         string
	MotionLevel   string
	TempoCategory string
	AutoplayOnly  bool
	MinBPM        float64
	MaxBPM        float64
	Limit         int
}

const defaultSearchLimit = 50

// Empty reports whether no filter is set (Limit alone does not count).
func (f SearchFilters) Empty() bool {
	return len(f.Keywords) == 0 && f.Mood == "" && f.Color == "" && f.MotionLevel == "" &&
		f.TempoCategory == "" && !f.AutoplayOnly && f.MinBPM == 0 && f.MaxBPM == 0
}

// ParseKeywords splits a comma-separated query value into trimmed,
// lowercased keywords.
func ParseKeywords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SearchClips runs a combined filter query over Clip joined with Tag/Mood/Color.
func SearchClips(db *gorm.DB, f SearchFilters) ([]models.Clip, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := db.Model(&models.Clip{}).Select("DISTINCT clips.*")

	if len(f.Keywords) > 0 {
		q = q.Joins("JOIN tags ON tags.clip_id = clips.id AND tags.deleted_at IS NULL").
			Where("tags.tag_value IN (?)", f.Keywords)
	}
	if f.Mood != "" {
		// Only the first recorded mood counts; later rows are history.
		q = q.Joins("JOIN moods ON moods.clip_id = clips.id AND moods.deleted_at IS NULL").
			Where("moods.mood_type = ? AND moods.id = (SELECT MIN(m.id) FROM moods m WHERE m.clip_id = clips.id AND m.deleted_at IS NULL)", f.Mood)
	}
	if f.Color != "" {
		q = q.Joins("JOIN colors ON colors.clip_id = clips.id AND colors.deleted_at IS NULL").
			Where("colors.name = ? OR colors.hex = ?", f.Color, f.Color)
	}
	if f.MotionLevel != "" {
		q = q.Where("clips.motion_level = ?", f.MotionLevel)
	}
	if f.TempoCategory != "" {
		q = q.Where("clips.tempo_category = ?", f.TempoCategory)
	}
	if f.AutoplayOnly {
		q = q.Where("clips.autoplay_compatible = ?", true)
	}
	if f.MinBPM > 0 {
		q = q.Where("clips.bpm >= ?", f.MinBPM)
	}
	if f.MaxBPM > 0 {
		q = q.Where("clips.bpm <= ?", f.MaxBPM)
	}

	var clips []models.Clip
	if err := q.Limit(limit).Find(&clips).Error; err != nil {
		return nil, err
	}
	return clips, nil
}

// RandomClips samples count clips, optionally constrained by filters.
func RandomClips(db *gorm.DB, count int, f SearchFilters) ([]models.Clip, error) {
	if count <= 0 {
		count = 10
	}

	if len(f.Keywords) == 0 && f.Mood == "" && f.Color == "" && f.MotionLevel == "" &&
		f.TempoCategory == "" && !f.AutoplayOnly {
		var clips []models.Clip
		err := db.Order("RANDOM()").Limit(count).Find(&clips).Error
		return clips, err
	}

	// Over-fetch, then sample.
	f.Limit = count * 3
	clips, err := SearchClips(db, f)
	if err != nil {
		return nil, err
	}
	if len(clips) > count {
		rand.Shuffle(len(clips), func(i, j int) { clips[i], clips[j] = clips[j], clips[i] })
		clips = clips[:count]
	}
	return clips, nil
}

// GetClipDetails loads a clip with all its owned records.
func GetClipDetails(db *gorm.DB, id uint) (*models.Clip, error) {
	var clip models.Clip
	err := db.Preload("Tags").
		Preload("Colors").
		Preload("Moods").
		Preload("KeyFrames").
		Preload("UseCases").
		First(&clip, id).Error
	if err != nil {
		return nil, err
	}
	return &clip, nil
}

// LatestAnalysis returns the authoritative (most recent) AI analysis snapshot.
func LatestAnalysis(db *gorm.DB, clipID uint) (*models.AIAnalysis, error) {
	var analysis models.AIAnalysis
	err := db.Where("clip_id = ?", clipID).
		Order("analyzed_at desc").
		First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Theme word lists for naive lyric keyword extraction. Anything fancier
// belongs in a proper NLP pass.
var lyricThemes = []struct {
	theme string
	words []string
}{
	{"nature", []string{"tree", "forest", "mountain", "river", "ocean", "sea", "sky", "sun", "moon", "star"}},
	{"urban", []string{"city", "street", "building", "car", "traffic", "lights"}},
	{"love", []string{"heart", "love", "kiss", "embrace"}},
	{"dark", []string{"night", "dark", "shadow", "black"}},
	{"light", []string{"light", "bright", "shine", "glow"}},
	{"fire", []string{"fire", "flame", "burn"}},
	{"water", []string{"water", "rain", "ocean", "wave", "river"}},
	{"space", []string{"space", "star", "galaxy", "universe", "cosmos"}},
}

// ExtractLyricKeywords maps a lyric line to up to 3 theme keywords.
func ExtractLyricKeywords(lyric string) []string {
	lower := strings.ToLower(lyric)
	var found []string
	for _, t := range lyricThemes {
		for _, w := range t.words {
			if strings.Contains(lower, w) {
				found = append(found, t.theme)
				break
			}
		}
		if len(found) == 3 {
			break
		}
	}
	return found
}

// ClipForLyric picks a clip matching a lyric line: keyword+mood search first,
// then mood only, then anything.
func ClipForLyric(db *gorm.DB, lyric, moodHint string) (*models.Clip, error) {
	keywords := ExtractLyricKeywords(lyric)

	clips, err := SearchClips(db, SearchFilters{Keywords: keywords, Mood: moodHint, Limit: 5})
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 && moodHint != "" {
		clips, err = SearchClips(db, SearchFilters{Mood: moodHint, Limit: 5})
		if err != nil {
			return nil, err
		}
	}
	if len(clips) == 0 {
		clips, err = RandomClips(db, 1, SearchFilters{})
		if err != nil {
			return nil, err
		}
	}
	if len(clips) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &clips[rand.Intn(len(clips))], nil
}

// TagValues lists the distinct values used by filter UIs.
type TagValues struct {
	Themes   []string `json:"themes"`
	Styles   []string `json:"styles"`
	Energies []string `json:"energies"`
	Moods    []string `json:"moods"`
	Colors   []string `json:"colors"`
}

func GetTagValues(db *gorm.DB) (*TagValues, error) {
	tv := &TagValues{}

	if err := db.Model(&models.Tag{}).Where("tag_type = ?", "theme").
		Order("tag_value").Pluck("DISTINCT tag_value", &tv.Themes).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Tag{}).Where("tag_type = ?", "style").
		Order("tag_value").Pluck("DISTINCT tag_value", &tv.Styles).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Tag{}).Where("tag_type = ?", "energy").
		Order("tag_value").Pluck("DISTINCT tag_value", &tv.Energies).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Mood{}).Order("mood_type").
		Pluck("DISTINCT mood_type", &tv.Moods).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Color{}).Order("name").
		Pluck("DISTINCT name", &tv.Colors).Error; err != nil {
		return nil, err
	}
	return tv, nil
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalClips       int          `json:"total_clips"`
	TotalSources     int          `json:"total_sources"`
	UniqueTags       int          `json:"unique_tags"`
	UniqueColors     int          `json:"unique_colors"`
	TopThemes        []ValueCount `json:"top_themes"`
	MoodDistribution []ValueCount `json:"mood_distribution"`
	TopColors        []ValueCount `json:"top_colors"`
}

func GetStats(db *gorm.DB) (*Stats, error) {
	s := &Stats{}

	db.Model(&models.Clip{}).Count(&s.TotalClips)
	db.Model(&models.SourceVideo{}).Count(&s.TotalSources)

	row := db.Model(&models.Tag{}).Select("COUNT(DISTINCT tag_value)").Row()
	row.Scan(&s.UniqueTags)
	row = db.Model(&models.Color{}).Select("COUNT(DISTINCT name)").Row()
	row.Scan(&s.UniqueColors)

	var err error
	if s.TopThemes, err = valueCounts(db,
		`SELECT tag_value AS value, COUNT(*) AS count FROM tags
		 WHERE tag_type = 'theme' AND deleted_at IS NULL
		 GROUP BY tag_value ORDER BY count DESC LIMIT 10`); err != nil {
		return nil, err
	}
	if s.MoodDistribution, err = valueCounts(db,
		`SELECT mood_type AS value, COUNT(*) AS count FROM moods
		 WHERE deleted_at IS NULL
		 GROUP BY mood_type ORDER BY count DESC`); err != nil {
		return nil, err
	}
	if s.TopColors, err = valueCounts(db,
		`SELECT name AS value, COUNT(*) AS count FROM colors
		 WHERE deleted_at IS NULL
		 GROUP BY name ORDER BY count DESC LIMIT 10`); err != nil {
		return nil, err
	}
	return s, nil
}

func valueCounts(db *gorm.DB, query string) ([]ValueCount, error) {
	rows, err := db.Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}
