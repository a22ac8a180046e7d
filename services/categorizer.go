package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/gorm"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/models"
)

// categoryDef is one node of the fixed taxonomy. Declaration order breaks
// score ties so repeated runs assign the same category.
type categoryDef struct {
	Name          string
	Keywords      []string
	Subcategories []string
}

var categoryTaxonomy = []categoryDef{
	{
		Name:          "Nature",
		Keywords:      []string{"nature", "natural", "outdoor", "landscape", "scenic", "wilderness"},
		Subcategories: []string{"Forest", "Ocean", "Mountains", "Sky", "Desert", "Wildlife", "Flowers", "Weather"},
	},
	{
		Name:          "Urban",
		Keywords:      []string{"city", "urban", "building", "street", "downtown", "metropolitan", "architecture"},
		Subcategories: []string{"City", "Street", "Architecture", "Traffic", "Night City", "Downtown"},
	},
	{
		Name:          "Abstract",
		Keywords:      []string{"abstract", "geometric", "pattern", "particle", "fluid", "fractal", "light"},
		Subcategories: []string{"Geometric", "Particles", "Fluid", "Patterns", "Light Effects", "Fractals"},
	},
	{
		Name:          "Space",
		Keywords:      []string{"space", "star", "planet", "galaxy", "cosmic", "universe", "nebula", "celestial"},
		Subcategories: []string{"Stars", "Planets", "Nebula", "Galaxy", "Astronaut", "Satellites"},
	},
	{
		Name:          "Water",
		Keywords:      []string{"water", "ocean", "sea", "river", "lake", "rain", "waves", "underwater"},
		Subcategories: []string{"Ocean", "River", "Lake", "Rain", "Waterfall", "Underwater"},
	},
	{
		Name:          "Fire",
		Keywords:      []string{"fire", "flame", "burn", "spark", "explosion", "heat", "candle"},
		Subcategories: []string{"Flames", "Sparks", "Explosion", "Candles", "Campfire"},
	},
	{
		Name:          "Technology",
		Keywords:      []string{"tech", "digital", "computer", "code", "data", "interface", "screen", "cyber"},
		Subcategories: []string{"Digital", "Code", "Interface", "Data", "Glitch", "Futuristic"},
	},
	{
		Name:          "People",
		Keywords:      []string{"people", "person", "human", "crowd", "portrait", "silhouette", "group"},
		Subcategories: []string{"Portraits", "Groups", "Activities", "Silhouettes", "Crowds"},
	},
	{
		Name:          "Textures",
		Keywords:      []string{"texture", "material", "surface", "wood", "metal", "fabric", "stone"},
		Subcategories: []string{"Wood", "Metal", "Fabric", "Stone", "Paper", "Glass"},
	},
	{
		Name:          "Motion",
		Keywords:      []string{"timelapse", "slow motion", "movement", "motion", "dynamic", "action"},
		Subcategories: []string{"Timelapse", "Slow Motion", "Spin", "Zoom", "Pan", "Tracking"},
	},
}

// useCaseRule scores a clip's fit for one editorial use. Absent conditions
// are skipped and do not count toward the maximum.
type useCaseRule struct {
	Label      string
	Keywords   []string
	Moods      []string
	Motion     []string
	Categories []string
	EnergyMin  *float64
	EnergyMax  *float64
}

func energyBound(v float64) *float64 { return &v }

var useCaseRules = []useCaseRule{
	{
		Label:      "Wedding Videos",
		Keywords:   []string{"romantic", "love", "elegant", "beautiful", "flower", "sunset"},
		Moods:      []string{"positive"},
		Motion:     []string{"slow", "moderate"},
		Categories: []string{"Nature", "Flowers", "Sky"},
	},
	{
		Label:     "Party/Event Videos",
		Keywords:  []string{"energetic", "vibrant", "colorful", "lights", "crowd", "celebration"},
		Moods:     []string{"positive"},
		Motion:    []string{"fast", "intense"},
		EnergyMin: energyBound(60),
	},
	{
		Label:     "Meditation/Relaxation",
		Keywords:  []string{"calm", "peaceful", "serene", "nature", "water", "forest"},
		Moods:     []string{"neutral"},
		Motion:    []string{"static", "slow"},
		EnergyMax: energyBound(30),
	},
	{
		Label:      "Corporate/Business",
		Keywords:   []string{"professional", "modern", "clean", "tech", "office", "city"},
		Moods:      []string{"neutral", "positive"},
		Motion:     []string{"slow", "moderate"},
		Categories: []string{"Urban", "Technology"},
	},
	{
		Label:     "Music Videos (Upbeat)",
		Keywords:  []string{"energetic", "dynamic", "colorful", "abstract", "lights"},
		Moods:     []string{"positive"},
		Motion:    []string{"fast", "intense"},
		EnergyMin: energyBound(50),
	},
	{
		Label:    "Music Videos (Emotional)",
		Keywords: []string{"dramatic", "emotional", "cinematic", "moody"},
		Moods:    []string{"negative", "neutral"},
		Motion:   []string{"slow", "moderate"},
	},
	{
		Label:     "Sports/Action",
		Keywords:  []string{"fast", "action", "dynamic", "intense", "movement"},
		Motion:    []string{"fast", "intense"},
		EnergyMin: energyBound(70),
	},
	{
		Label:      "Nature Documentaries",
		Keywords:   []string{"nature", "wildlife", "landscape", "scenic", "natural"},
		Categories: []string{"Nature", "Water", "Mountains", "Forest"},
		Motion:     []string{"slow", "moderate"},
	},
	{
		Label:      "Travel/Tourism",
		Keywords:   []string{"landscape", "scenic", "beautiful", "exotic", "destination"},
		Categories: []string{"Nature", "Urban", "Ocean", "Mountains"},
		Moods:      []string{"positive"},
	},
	{
		Label:      "Tech/Startup Presentations",
		Keywords:   []string{"tech", "digital", "modern", "innovative", "futuristic"},
		Categories: []string{"Technology", "Abstract"},
		Motion:     []string{"moderate", "fast"},
	},
	{
		Label:    "Horror/Thriller",
		Keywords: []string{"dark", "mysterious", "eerie", "fog", "shadows"},
		Moods:    []string{"negative"},
		Motion:   []string{"slow", "moderate"},
	},
	{
		Label:      "Children/Family Content",
		Keywords:   []string{"bright", "colorful", "cheerful", "playful", "fun"},
		Moods:      []string{"positive"},
		Categories: []string{"Nature", "Abstract"},
	},
}

// Categorizer assigns taxonomy categories and editorial use cases to clips
// from their stored tags and analysis results.
type Categorizer struct {
	db *gorm.DB
}

func NewCategorizer(db *gorm.DB) *Categorizer {
	return &Categorizer{db: db}
}

// SeedCategories ensures every taxonomy node exists in the categories table.
// Safe to run on every startup.
func (c *Categorizer) SeedCategories() error {
	for _, def := range categoryTaxonomy {
		if err := c.ensureCategory(def.Name, ""); err != nil {
			return err
		}
		for _, sub := range def.Subcategories {
			if err := c.ensureCategory(sub, def.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Categorizer) ensureCategory(name, parent string) error {
	var existing models.Category
	err := c.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return err
	}
	return c.db.Create(&models.Category{Name: name, Parent: parent}).Error
}

// CategorizeClip scores the taxonomy against the clip's tag values and
// stores the winner. Clips without tags become Uncategorized.
func (c *Categorizer) CategorizeClip(clip *models.Clip) (string, error) {
	var tags []models.Tag
	if err := c.db.Where("clip_id = ?", clip.ID).Find(&tags).Error; err != nil {
		return "", err
	}

	category, subcategory := classifyTags(tagText(tags))

	clip.Category = category
	clip.Subcategory = subcategory
	err := c.db.Model(clip).Updates(map[string]interface{}{
		"category":    category,
		"subcategory": subcategory,
	}).Error
	return category, err
}

// classifyTags is the pure scoring core: 2 points per keyword hit, 3 per
// subcategory hit, plus 5 when a subcategory matches directly. Ties go to
// the earlier taxonomy entry.
func classifyTags(tagText string) (category, subcategory string) {
	if strings.TrimSpace(tagText) == "" {
		return "Uncategorized", ""
	}

	bestScore := 0
	category = "Uncategorized"

	for _, def := range categoryTaxonomy {
		score := 0
		for _, keyword := range def.Keywords {
			if strings.Contains(tagText, keyword) {
				score += 2
			}
		}

		bestSub := ""
		bestSubScore := score
		for _, sub := range def.Subcategories {
			if strings.Contains(tagText, strings.ToLower(sub)) {
				score += 3
				if score+5 > bestSubScore {
					bestSub = sub
					bestSubScore = score + 5
				}
			}
		}

		if bestSub != "" && bestSubScore > bestScore {
			bestScore = bestSubScore
			category = def.Name
			subcategory = bestSub
		} else if score > bestScore {
			bestScore = score
			category = def.Name
			subcategory = ""
		}
	}
	return category, subcategory
}

// SuggestUseCases scores every rule and replaces the clip's stored use
// cases with those scoring at least 30. Idempotent per clip state.
func (c *Categorizer) SuggestUseCases(clip *models.Clip) ([]models.UseCase, error) {
	var tags []models.Tag
	if err := c.db.Where("clip_id = ?", clip.ID).Find(&tags).Error; err != nil {
		return nil, err
	}
	var moods []models.Mood
	if err := c.db.Where("clip_id = ?", clip.ID).Find(&moods).Error; err != nil {
		return nil, err
	}

	moodTypes := make([]string, len(moods))
	for i, m := range moods {
		moodTypes[i] = m.MoodType
	}

	suggestions := scoreUseCases(tagText(tags), moodTypes, clip.MotionLevel, clip.Category, clip.EnergyLevel)

	if err := c.db.Where("clip_id = ?", clip.ID).Delete(&models.UseCase{}).Error; err != nil {
		return nil, err
	}
	for i := range suggestions {
		suggestions[i].ClipID = clip.ID
		if err := c.db.Create(&suggestions[i]).Error; err != nil {
			return nil, err
		}
	}

	config.Log.WithField("clip_id", clip.ID).WithField("use_cases", len(suggestions)).
		Debug("Use cases suggested")
	return suggestions, nil
}

func scoreUseCases(tagText string, moods []string, motionLevel, category string, energy float64) []models.UseCase {
	categoryLower := strings.ToLower(category)

	var out []models.UseCase
	for _, rule := range useCaseRules {
		score, maxScore := 0, 0

		if len(rule.Keywords) > 0 {
			maxScore += len(rule.Keywords) * 2
			for _, keyword := range rule.Keywords {
				if strings.Contains(tagText, keyword) {
					score += 2
				}
			}
		}

		if len(rule.Moods) > 0 {
			maxScore += 3
			if containsAny(moods, rule.Moods) {
				score += 3
			}
		}

		if len(rule.Motion) > 0 && motionLevel != "" {
			maxScore += 2
			if containsString(rule.Motion, motionLevel) {
				score += 2
			}
		}

		if len(rule.Categories) > 0 && categoryLower != "" {
			maxScore += 3
			for _, cat := range rule.Categories {
				if strings.Contains(categoryLower, strings.ToLower(cat)) {
					score += 3
					break
				}
			}
		}

		if rule.EnergyMin != nil {
			maxScore += 2
			if energy >= *rule.EnergyMin {
				score += 2
			}
		}
		if rule.EnergyMax != nil {
			maxScore += 2
			if energy <= *rule.EnergyMax {
				score += 2
			}
		}

		if maxScore == 0 {
			continue
		}
		suitability := float64(score) / float64(maxScore) * 100
		if suitability < 30 {
			continue
		}
		out = append(out, models.UseCase{
			Label:            rule.Label,
			SuitabilityScore: round2(suitability),
			Description:      fmt.Sprintf("Suitable for %s", strings.ToLower(rule.Label)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SuitabilityScore > out[j].SuitabilityScore
	})
	return out
}

func tagText(tags []models.Tag) string {
	values := make([]string, len(tags))
	for i, t := range tags {
		values[i] = strings.ToLower(t.TagValue)
	}
	return strings.Join(values, " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(haystack, needles []string) bool {
	for _, h := range haystack {
		if containsString(needles, h) {
			return true
		}
	}
	return false
}
