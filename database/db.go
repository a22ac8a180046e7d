package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/uaffan326-del/video-library-system/models"
)

var DB *gorm.DB

func InitDB() {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "./data"
	}
	os.MkdirAll(dataPath, 0755)

	dbPath := filepath.Join(dataPath, "video_library.db")
	var err error
	DB, err = gorm.Open("sqlite3", dbPath)
	if err != nil {
		fmt.Printf("Failed to connect to database at %s: %v\n", dbPath, err)
		panic("Failed to connect to database")
	}

	Migrate(DB)
	fmt.Println("Database connection established and migrated")
}

// Migrate runs AutoMigrate for all models. Exposed so tests can set up
// in-memory databases.
func Migrate(db *gorm.DB) {
	db.AutoMigrate(
		&models.SourceVideo{},
		&models.Clip{},
		&models.Tag{},
		&models.Color{},
		&models.Mood{},
		&models.AIAnalysis{},
		&models.KeyFrame{},
		&models.UseCase{},
		&models.Category{},
	)
}

func CloseDB() {
	if DB != nil {
		DB.Close()
	}
}
