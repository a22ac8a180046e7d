package database

import (
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"

	"github.com/uaffan326-del/video-library-system/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	Migrate(db)
	return db
}

func seedClip(t *testing.T, db *gorm.DB, path string, mutate func(*models.Clip)) models.Clip {
	t.Helper()
	clip := models.Clip{FilePath: path, Duration: 5, MotionLevel: "moderate"}
	if mutate != nil {
		mutate(&clip)
	}
	if err := db.Create(&clip).Error; err != nil {
		t.Fatal(err)
	}
	return clip
}

func TestSearchClips_CombinedFilters(t *testing.T) {
	db := openTestDB(t)

	match := seedClip(t, db, "/clips/match.mp4", nil)
	db.Create(&models.Tag{ClipID: match.ID, TagType: "keyword", TagValue: "forest"})
	db.Create(&models.Mood{ClipID: match.ID, MoodType: "positive", Intensity: 7})
	db.Create(&models.Color{ClipID: match.ID, Name: "blue", Hex: "#2040c0"})

	// Same mood, wrong color.
	other := seedClip(t, db, "/clips/other.mp4", nil)
	db.Create(&models.Tag{ClipID: other.ID, TagType: "keyword", TagValue: "forest"})
	db.Create(&models.Mood{ClipID: other.ID, MoodType: "positive", Intensity: 5})
	db.Create(&models.Color{ClipID: other.ID, Name: "red", Hex: "#c02020"})

	clips, err := SearchClips(db, SearchFilters{Mood: "positive", Color: "blue"})
	assert.NoError(t, err)
	if assert.Len(t, clips, 1) {
		assert.Equal(t, match.ID, clips[0].ID)
	}
}

func TestSearchClips_PrimaryMoodOnly(t *testing.T) {
	db := openTestDB(t)

	clip := seedClip(t, db, "/clips/reanalyzed.mp4", nil)
	db.Create(&models.Mood{ClipID: clip.ID, MoodType: "positive", Intensity: 7})
	db.Create(&models.Mood{ClipID: clip.ID, MoodType: "negative", Intensity: 4})

	clips, err := SearchClips(db, SearchFilters{Mood: "positive"})
	assert.NoError(t, err)
	assert.Len(t, clips, 1)

	// Only the first recorded mood is searchable.
	clips, err = SearchClips(db, SearchFilters{Mood: "negative"})
	assert.NoError(t, err)
	assert.Empty(t, clips)
}

func TestSearchClips_KeywordList(t *testing.T) {
	db := openTestDB(t)

	forest := seedClip(t, db, "/clips/forest.mp4", nil)
	db.Create(&models.Tag{ClipID: forest.ID, TagType: "theme", TagValue: "nature"})
	seedClip(t, db, "/clips/untagged.mp4", nil)

	clips, err := SearchClips(db, SearchFilters{Keywords: []string{"nature", "city"}})
	assert.NoError(t, err)
	assert.Len(t, clips, 1)
}

func TestSearchClips_ScalarFilters(t *testing.T) {
	db := openTestDB(t)

	bpm := 128.0
	category := "fast"
	seedClip(t, db, "/clips/fast.mp4", func(c *models.Clip) {
		c.MotionLevel = "fast"
		c.BPM = &bpm
		c.TempoCategory = &category
		c.AutoplayCompatible = true
	})
	seedClip(t, db, "/clips/slow.mp4", func(c *models.Clip) {
		c.MotionLevel = "slow"
	})

	clips, err := SearchClips(db, SearchFilters{MotionLevel: "fast", AutoplayOnly: true, MinBPM: 100})
	assert.NoError(t, err)
	assert.Len(t, clips, 1)

	clips, err = SearchClips(db, SearchFilters{MaxBPM: 100})
	assert.NoError(t, err)
	assert.Empty(t, clips, "clips with no BPM or a higher BPM are excluded")
}

func TestRandomClips_Unfiltered(t *testing.T) {
	db := openTestDB(t)
	for _, path := range []string{"/a.mp4", "/b.mp4", "/c.mp4"} {
		seedClip(t, db, path, nil)
	}

	clips, err := RandomClips(db, 2, SearchFilters{})
	assert.NoError(t, err)
	assert.Len(t, clips, 2)
}

func TestGetClipDetails_PreloadsChildren(t *testing.T) {
	db := openTestDB(t)
	clip := seedClip(t, db, "/clips/detail.mp4", nil)
	db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "nature"})
	db.Create(&models.KeyFrame{ClipID: clip.ID, FrameIndex: 0, IsRepresentative: true})
	db.Create(&models.UseCase{ClipID: clip.ID, Label: "Nature Documentaries", SuitabilityScore: 60})

	loaded, err := GetClipDetails(db, clip.ID)
	assert.NoError(t, err)
	assert.Len(t, loaded.Tags, 1)
	assert.Len(t, loaded.KeyFrames, 1)
	assert.Len(t, loaded.UseCases, 1)
}

func TestLatestAnalysis_PicksNewest(t *testing.T) {
	db := openTestDB(t)
	clip := seedClip(t, db, "/clips/an.mp4", nil)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	db.Create(&models.AIAnalysis{ClipID: clip.ID, Model: "m", ResultJSON: `{"theme":"old"}`, AnalyzedAt: old})
	db.Create(&models.AIAnalysis{ClipID: clip.ID, Model: "m", ResultJSON: `{"theme":"new"}`, AnalyzedAt: newer})

	analysis, err := LatestAnalysis(db, clip.ID)
	assert.NoError(t, err)
	assert.Contains(t, analysis.ResultJSON, "new")
}

func TestExtractLyricKeywords(t *testing.T) {
	keywords := ExtractLyricKeywords("Under the moon by the ocean we dance")
	assert.Contains(t, keywords, "nature")
	assert.Contains(t, keywords, "water")
	assert.True(t, len(keywords) <= 3)

	assert.Empty(t, ExtractLyricKeywords("qwerty asdf"))
}

func TestClipForLyric_Fallbacks(t *testing.T) {
	db := openTestDB(t)

	t.Run("Empty Library", func(t *testing.T) {
		_, err := ClipForLyric(db, "fire in the sky", "")
		assert.Error(t, err)
	})

	clip := seedClip(t, db, "/clips/any.mp4", nil)

	t.Run("Random Fallback", func(t *testing.T) {
		// No tags match, but something must still come back.
		found, err := ClipForLyric(db, "xyzzy nothing matches", "")
		assert.NoError(t, err)
		assert.Equal(t, clip.ID, found.ID)
	})

	t.Run("Mood Fallback", func(t *testing.T) {
		moody := seedClip(t, db, "/clips/moody.mp4", nil)
		db.Create(&models.Mood{ClipID: moody.ID, MoodType: "negative", Intensity: 6})

		found, err := ClipForLyric(db, "xyzzy nothing matches", "negative")
		assert.NoError(t, err)
		assert.Equal(t, moody.ID, found.ID)
	})
}

func TestGetTagValues(t *testing.T) {
	db := openTestDB(t)
	clip := seedClip(t, db, "/clips/tv.mp4", nil)
	db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "nature"})
	db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "nature"})
	db.Create(&models.Tag{ClipID: clip.ID, TagType: "style", TagValue: "cinematic"})
	db.Create(&models.Mood{ClipID: clip.ID, MoodType: "positive"})
	db.Create(&models.Color{ClipID: clip.ID, Name: "green"})

	values, err := GetTagValues(db)
	assert.NoError(t, err)
	assert.Equal(t, []string{"nature"}, values.Themes, "duplicates collapse")
	assert.Equal(t, []string{"cinematic"}, values.Styles)
	assert.Equal(t, []string{"positive"}, values.Moods)
	assert.Equal(t, []string{"green"}, values.Colors)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	clip := seedClip(t, db, "/clips/st.mp4", nil)
	db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "nature"})
	db.Create(&models.Mood{ClipID: clip.ID, MoodType: "positive"})
	db.Create(&models.Color{ClipID: clip.ID, Name: "green"})
	db.Create(&models.SourceVideo{FilePath: "/downloads/src.mp4"})

	stats, err := GetStats(db)
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.TotalClips)
	assert.Equal(t, 1, stats.TotalSources)
	assert.Equal(t, 1, stats.UniqueTags)
	if assert.Len(t, stats.TopThemes, 1) {
		assert.Equal(t, "nature", stats.TopThemes[0].Value)
		assert.Equal(t, 1, stats.TopThemes[0].Count)
	}
	assert.Len(t, stats.MoodDistribution, 1)
}

func TestParseKeywords(t *testing.T) {
	assert.Equal(t, []string{"forest", "night sky"}, ParseKeywords("Forest, Night Sky ,"))
	assert.Nil(t, ParseKeywords(""))
}

func TestSearchFilters_Empty(t *testing.T) {
	assert.True(t, SearchFilters{Limit: 10}.Empty())
	assert.False(t, SearchFilters{Mood: "positive"}.Empty())
	assert.False(t, SearchFilters{AutoplayOnly: true}.Empty())
}
