package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/uaffan326-del/video-library-system/config"
)

// SourceFilters narrows search results before anything is downloaded.
// Zero-valued fields are not applied.
type SourceFilters struct {
	MinDuration float64
	MaxDuration float64
	MinWidth    int
	MinHeight   int
	MaxFileSize int64
}

// VideoRef is one downloadable search result from a stock footage source.
type VideoRef struct {
	Source      string
	Identifier  string
	Title       string
	PageURL     string
	DownloadURL string
	Duration    float64
	Width       int
	Height      int
	FileSize    int64
	License     string
}

// VideoSource searches one provider and downloads its results. Download
// failures surface as ErrSourceUnavailable so the pipeline can skip.
type VideoSource interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int, filters SourceFilters) ([]VideoRef, error)
	Download(ctx context.Context, ref VideoRef, outputPath string) error
}

// Scraper fans a query out to all configured sources and downloads results
// into the downloads directory. Re-downloads are skipped by filename.
type Scraper struct {
	sources     []VideoSource
	downloadDir string
}

func NewScraper(cfg *config.Config) *Scraper {
	httpClient := &http.Client{Timeout: 60 * time.Second}

	var sources []VideoSource
	if cfg.PexelsAPIKey != "" {
		sources = append(sources, &PexelsSource{apiKey: cfg.PexelsAPIKey, client: httpClient})
	}
	if cfg.PixabayAPIKey != "" {
		sources = append(sources, &PixabaySource{apiKey: cfg.PixabayAPIKey, client: httpClient})
	}
	// No key needed; always available.
	sources = append(sources, &ArchiveOrgSource{client: httpClient})

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	config.Log.WithField("sources", strings.Join(names, ",")).Info("Acquisition sources initialized")

	return &Scraper{sources: sources, downloadDir: cfg.DownloadDir}
}

// SearchAll collects up to maxPerSource results from every source. A failing
// source is logged and skipped; only all sources failing is an error.
func (s *Scraper) SearchAll(ctx context.Context, query string, maxPerSource int, filters SourceFilters) ([]VideoRef, error) {
	var all []VideoRef
	failures := 0
	for _, src := range s.sources {
		refs, err := src.Search(ctx, query, maxPerSource, filters)
		if err != nil {
			failures++
			config.Log.WithField("source", src.Name()).WithField("query", query).
				WithField("error", err.Error()).Warn("Source search failed")
			continue
		}
		all = append(all, refs...)
	}
	if failures == len(s.sources) {
		return nil, fmt.Errorf("%w: all sources failed for query %q", ErrSourceUnavailable, query)
	}
	return all, nil
}

// Download fetches one result into the downloads directory and returns the
// local path. Existing files are reused.
func (s *Scraper) Download(ctx context.Context, ref VideoRef) (string, error) {
	filename := fmt.Sprintf("%s_%s_%s.mp4", ref.Source, ref.Identifier, safeTitle(ref.Title))
	outputPath := filepath.Join(s.downloadDir, filename)

	if _, err := os.Stat(outputPath); err == nil {
		config.Log.WithField("file", filename).Debug("Already downloaded")
		return outputPath, nil
	}

	src := s.sourceByName(ref.Source)
	if src == nil {
		return "", fmt.Errorf("%w: unknown source %q", ErrSourceUnavailable, ref.Source)
	}
	if err := src.Download(ctx, ref, outputPath); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

func (s *Scraper) sourceByName(name string) VideoSource {
	for _, src := range s.sources {
		if src.Name() == name {
			return src
		}
	}
	return nil
}

func safeTitle(title string) string {
	if len(title) > 50 {
		title = title[:50]
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "video"
	}
	return b.String()
}

func (f SourceFilters) admits(duration float64, width, height int, size int64) bool {
	if f.MinDuration > 0 && duration > 0 && duration < f.MinDuration {
		return false
	}
	if f.MaxDuration > 0 && duration > 0 && duration > f.MaxDuration {
		return false
	}
	if f.MinWidth > 0 && width > 0 && width < f.MinWidth {
		return false
	}
	if f.MinHeight > 0 && height > 0 && height < f.MinHeight {
		return false
	}
	if f.MaxFileSize > 0 && size > 0 && size > f.MaxFileSize {
		return false
	}
	return true
}

// downloadTo streams a URL to disk. Any HTTP or IO failure is
// ErrSourceUnavailable.
func downloadTo(ctx context.Context, client *http.Client, rawURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download returned %d", ErrSourceUnavailable, resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned %d", ErrSourceUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad API response: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// PexelsSource queries the Pexels video API. Results carry multiple
// renditions; the largest one wins.
type PexelsSource struct {
	apiKey string
	client *http.Client
}

func (p *PexelsSource) Name() string { return "pexels" }

func (p *PexelsSource) Search(ctx context.Context, query string, maxResults int, filters SourceFilters) ([]VideoRef, error) {
	var payload struct {
		Videos []struct {
			ID         int     `json:"id"`
			URL        string  `json:"url"`
			Duration   float64 `json:"duration"`
			VideoFiles []struct {
				Link   string `json:"link"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"video_files"`
		} `json:"videos"`
	}

	endpoint := fmt.Sprintf("https://api.pexels.com/videos/search?query=%s&per_page=%d",
		url.QueryEscape(query), maxResults)
	headers := map[string]string{"Authorization": p.apiKey}
	if err := getJSON(ctx, p.client, endpoint, headers, &payload); err != nil {
		return nil, err
	}

	var refs []VideoRef
	for _, video := range payload.Videos {
		if len(refs) >= maxResults || len(video.VideoFiles) == 0 {
			continue
		}

		files := video.VideoFiles
		sort.Slice(files, func(i, j int) bool {
			return files[i].Width*files[i].Height > files[j].Width*files[j].Height
		})
		best := files[0]

		if !filters.admits(video.Duration, best.Width, best.Height, 0) {
			continue
		}
		refs = append(refs, VideoRef{
			Source:      "pexels",
			Identifier:  fmt.Sprintf("%d", video.ID),
			Title:       fmt.Sprintf("Pexels Video %d", video.ID),
			PageURL:     video.URL,
			DownloadURL: best.Link,
			Duration:    video.Duration,
			Width:       best.Width,
			Height:      best.Height,
			License:     "Pexels License (Free)",
		})
	}
	return refs, nil
}

func (p *PexelsSource) Download(ctx context.Context, ref VideoRef, outputPath string) error {
	return downloadTo(ctx, p.client, ref.DownloadURL, outputPath)
}

// PixabaySource queries the Pixabay video API. Renditions come as named
// quality tiers; the first available of large/medium/small/tiny wins.
type PixabaySource struct {
	apiKey string
	client *http.Client
}

func (p *PixabaySource) Name() string { return "pixabay" }

type pixabayRendition struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

func (p *PixabaySource) Search(ctx context.Context, query string, maxResults int, filters SourceFilters) ([]VideoRef, error) {
	var payload struct {
		Hits []struct {
			ID       int                         `json:"id"`
			PageURL  string                      `json:"pageURL"`
			Duration float64                     `json:"duration"`
			Tags     string                      `json:"tags"`
			Videos   map[string]pixabayRendition `json:"videos"`
		} `json:"hits"`
	}

	endpoint := fmt.Sprintf("https://pixabay.com/api/videos/?key=%s&q=%s&per_page=%d&video_type=all",
		url.QueryEscape(p.apiKey), url.QueryEscape(query), maxResults)
	if err := getJSON(ctx, p.client, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	var refs []VideoRef
	for _, hit := range payload.Hits {
		if len(refs) >= maxResults {
			break
		}

		var best *pixabayRendition
		for _, quality := range []string{"large", "medium", "small", "tiny"} {
			if r, ok := hit.Videos[quality]; ok && r.URL != "" {
				best = &r
				break
			}
		}
		if best == nil {
			continue
		}

		if !filters.admits(hit.Duration, best.Width, best.Height, best.Size) {
			continue
		}
		refs = append(refs, VideoRef{
			Source:      "pixabay",
			Identifier:  fmt.Sprintf("%d", hit.ID),
			Title:       fmt.Sprintf("Pixabay Video %d", hit.ID),
			PageURL:     hit.PageURL,
			DownloadURL: best.URL,
			Duration:    hit.Duration,
			Width:       best.Width,
			Height:      best.Height,
			FileSize:    best.Size,
			License:     "Pixabay License (Free)",
		})
	}
	return refs, nil
}

func (p *PixabaySource) Download(ctx context.Context, ref VideoRef, outputPath string) error {
	return downloadTo(ctx, p.client, ref.DownloadURL, outputPath)
}

// ArchiveOrgSource searches archive.org's movies collection via the
// advancedsearch endpoint, then lists each item's files to pick the
// smallest video. No API key required.
type ArchiveOrgSource struct {
	client *http.Client
}

func (a *ArchiveOrgSource) Name() string { return "archive.org" }

func (a *ArchiveOrgSource) Search(ctx context.Context, query string, maxResults int, filters SourceFilters) ([]VideoRef, error) {
	var payload struct {
		Response struct {
			Docs []struct {
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
			} `json:"docs"`
		} `json:"response"`
	}

	searchQuery := fmt.Sprintf("mediatype:movies AND %s", query)
	endpoint := fmt.Sprintf(
		"https://archive.org/advancedsearch.php?q=%s&fl[]=identifier&fl[]=title&rows=%d&output=json",
		url.QueryEscape(searchQuery), maxResults*2)
	if err := getJSON(ctx, a.client, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	var refs []VideoRef
	for _, doc := range payload.Response.Docs {
		if len(refs) >= maxResults {
			break
		}
		ref, err := a.pickFile(ctx, doc.Identifier, doc.Title, filters)
		if err != nil {
			config.Log.WithField("identifier", doc.Identifier).WithField("error", err.Error()).
				Debug("Skipping archive.org item")
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (a *ArchiveOrgSource) pickFile(ctx context.Context, identifier, title string, filters SourceFilters) (VideoRef, error) {
	var metadata struct {
		Files []struct {
			Name string `json:"name"`
			Size string `json:"size"`
		} `json:"files"`
	}
	endpoint := fmt.Sprintf("https://archive.org/metadata/%s", url.PathEscape(identifier))
	if err := getJSON(ctx, a.client, endpoint, nil, &metadata); err != nil {
		return VideoRef{}, err
	}

	type candidate struct {
		name string
		size int64
	}
	var candidates []candidate
	for _, file := range metadata.Files {
		name := strings.ToLower(file.Name)
		if !strings.HasSuffix(name, ".mp4") && !strings.HasSuffix(name, ".avi") &&
			!strings.HasSuffix(name, ".mov") && !strings.HasSuffix(name, ".mkv") {
			continue
		}
		var size int64
		fmt.Sscanf(file.Size, "%d", &size)
		candidates = append(candidates, candidate{name: file.Name, size: size})
	}
	if len(candidates) == 0 {
		return VideoRef{}, fmt.Errorf("no video files in item")
	}

	// Smallest file first keeps the bandwidth bill down.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].size < candidates[j].size })
	best := candidates[0]

	if !filters.admits(0, 0, 0, best.size) {
		return VideoRef{}, fmt.Errorf("file excluded by filters")
	}
	return VideoRef{
		Source:      "archive.org",
		Identifier:  identifier,
		Title:       title,
		PageURL:     fmt.Sprintf("https://archive.org/details/%s", identifier),
		DownloadURL: fmt.Sprintf("https://archive.org/download/%s/%s", identifier, best.name),
		FileSize:    best.size,
		License:     "Public Domain / Archive.org",
	}, nil
}

func (a *ArchiveOrgSource) Download(ctx context.Context, ref VideoRef, outputPath string) error {
	return downloadTo(ctx, a.client, ref.DownloadURL, outputPath)
}
