package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"

	"github.com/uaffan326-del/video-library-system/config"
	"github.com/uaffan326-del/video-library-system/database"
	"github.com/uaffan326-del/video-library-system/models"
	"github.com/uaffan326-del/video-library-system/services"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.InitLogger()

	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	database.Migrate(db)
	database.DB = db

	dir := t.TempDir()
	conf := &config.Config{
		DataPath:          dir,
		DownloadDir:       filepath.Join(dir, "downloads"),
		ClipsDir:          filepath.Join(dir, "clips"),
		FramesDir:         filepath.Join(dir, "frames"),
		ClipMinSeconds:    3,
		ClipMaxSeconds:    10,
		MaxClipsPerSource: 10,
	}
	orch := services.NewOrchestrator(db, conf, &services.Scraper{}, nil)

	r := gin.New()
	SetupRoutes(r, conf, orch)
	return r, db
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetClips_EmptyLibrary(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doRequest(r, "GET", "/api/clips", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestGetClips_Filtered(t *testing.T) {
	r, db := setupTestRouter(t)

	clip := models.Clip{FilePath: "/clips/f.mp4", MotionLevel: "fast"}
	db.Create(&clip)
	db.Create(&models.Clip{FilePath: "/clips/s.mp4", MotionLevel: "slow"})

	w := doRequest(r, "GET", "/api/clips?motion_level=fast", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestGetClipDetails(t *testing.T) {
	r, db := setupTestRouter(t)

	t.Run("Not Found", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/clips/999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Bad ID", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/clips/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Found", func(t *testing.T) {
		clip := models.Clip{FilePath: "/clips/d.mp4", Category: "Nature"}
		db.Create(&clip)
		db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "nature"})

		w := doRequest(r, "GET", "/api/clips/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "nature")
	})
}

func TestServeClipMedia_IntegrityFault(t *testing.T) {
	r, db := setupTestRouter(t)

	// Record exists, file does not: a 409, never a crash or empty 200.
	clip := models.Clip{FilePath: "/nonexistent/clip.mp4"}
	db.Create(&clip)

	w := doRequest(r, "GET", "/api/clips/1/media", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "missing")
}

func TestSearchByLyric(t *testing.T) {
	r, db := setupTestRouter(t)

	t.Run("Missing Body", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/search/lyric", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Empty Library", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/search/lyric", map[string]string{"lyric": "fire in the sky"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Match", func(t *testing.T) {
		clip := models.Clip{FilePath: "/clips/l.mp4"}
		db.Create(&clip)
		db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "fire"})

		w := doRequest(r, "POST", "/api/search/lyric", map[string]string{"lyric": "fire in the sky"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "fire")
	})
}

func TestGetTagsAndStats(t *testing.T) {
	r, db := setupTestRouter(t)
	clip := models.Clip{FilePath: "/clips/t.mp4"}
	db.Create(&clip)
	db.Create(&models.Tag{ClipID: clip.ID, TagType: "theme", TagValue: "space"})

	w := doRequest(r, "GET", "/api/tags", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "space")

	w = doRequest(r, "GET", "/api/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_clips")
}

func TestPipelineEndpoints(t *testing.T) {
	r, _ := setupTestRouter(t)

	t.Run("Status Idle", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/pipeline/status", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "idle")
	})

	t.Run("Start Without Queries", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/pipeline/start", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Stop Is Safe When Idle", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/pipeline/stop", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestExportEndpoints(t *testing.T) {
	r, _ := setupTestRouter(t)

	t.Run("Unknown Job", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/export/export_none", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("No Matching Clips", func(t *testing.T) {
		w := doRequest(r, "POST", "/api/export", map[string]string{"mood": "positive"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDownloadExport_PathTraversal(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := doRequest(r, "GET", "/api/downloads/..%2Fsecret.txt", nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestThumbnail_Validation(t *testing.T) {
	r, _ := setupTestRouter(t)

	t.Run("Invalid Time", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/thumbnails/clip.mp4?time=invalid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Traversal Blocked", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/thumbnails/..%2F..%2Fetc%2Fpasswd", nil)
		assert.NotEqual(t, http.StatusOK, w.Code)
	})

	t.Run("Missing File", func(t *testing.T) {
		w := doRequest(r, "GET", "/api/thumbnails/missing.mp4", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestResolveInside(t *testing.T) {
	base := string(os.PathSeparator) + filepath.Join("data", "clips")

	_, ok := resolveInside(base, "../escape.mp4")
	assert.False(t, ok)

	full, ok := resolveInside(base, "sub/clip.mp4")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(base, "sub", "clip.mp4"), full)
}
