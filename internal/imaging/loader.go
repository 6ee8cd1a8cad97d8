package imaging

import (
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/field-boundary-mcp/internal/fault"
)

// ImageCache provides thread-safe caching of decoded tiles to avoid redundant disk reads.
//
// Every cached image is an *image.NRGBA clone with bounds starting at (0,0). Callers
// share the cached value and must treat it as read-only; pipeline stages never
// mutate their input image.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*image.NRGBA
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.NRGBA),
	}
}

// Load retrieves an image from the cache or decodes it from disk if not cached.
//
// EXIF orientation is applied so that pixel coordinates match what a viewer shows.
// Failures are reported as fault.DecodeFailure, whether the file is missing or
// its contents are not a PNG, JPEG or GIF image.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	if path == "" {
		return nil, fault.New(fault.DecodeFailure, "no image path provided")
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fault.Wrap(fault.DecodeFailure, err, "failed to decode image "+filepath.Base(path))
	}
	img := imaging.Clone(src)

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*image.NRGBA)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Decode reads an image from r and returns an NRGBA copy with bounds at (0,0).
//
// It is the reader-based counterpart of ImageCache.Load; the trace command uses it
// for a tile piped on stdin.
func Decode(r io.Reader) (*image.NRGBA, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fault.Wrap(fault.DecodeFailure, err, "failed to decode image")
	}
	return imaging.Clone(src), nil
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format: "png", "jpeg", "gif", or "unknown".
	// Detection is based on file extension, not file contents.
	Format string `json:"format"`

	// CenterX and CenterY locate the pixel the local projection treats as the map center.
	CenterX int `json:"center_x"`
	CenterY int `json:"center_y"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and reports its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fault.Wrap(fault.DecodeFailure, err, "failed to stat file")
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		CenterX:       bounds.Dx() / 2,
		CenterY:       bounds.Dy() / 2,
		FileSizeBytes: stat.Size(),
	}, nil
}
