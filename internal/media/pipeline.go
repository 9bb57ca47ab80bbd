package media

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"catalog-ingest/internal/models"
	"catalog-ingest/internal/util"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"
)

const (
	MaxImages   = 5
	maxSide     = 800
	jpegQuality = 85
	// 20 MiB
	maxImageBytes = 20 << 20
)

var ErrNotImage = errors.New("response is not an image")

// ImageStore persists image rows for a catalog entry
type ImageStore interface {
	CreateProductImage(ctx context.Context, img *models.ProductImage) error
	SetProductMainImage(ctx context.Context, productID int64, imageURL string) error
}

// Config configures the image pipeline
type Config struct {
	Dir       string
	URLPrefix string
	UserAgent string
	Referer   string
	Timeout   time.Duration
	Delay     time.Duration
	MaxImages int
}

// Pipeline downloads, normalizes and stores product images one at a time
type Pipeline struct {
	cfg     Config
	store   ImageStore
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewPipeline creates an image pipeline
func NewPipeline(cfg Config, store ImageStore) *Pipeline {
	if cfg.MaxImages <= 0 || cfg.MaxImages > MaxImages {
		cfg.MaxImages = MaxImages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.URLPrefix = strings.TrimRight(cfg.URLPrefix, "/")

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Pipeline{
		cfg:   cfg,
		store: store,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  util.Named("media"),
	}
}

// Process stores up to MaxImages of urls for productID and returns how many were saved.
// Failures of single images are logged and skipped; only context cancellation is returned.
func (p *Pipeline) Process(ctx context.Context, productID int64, urls []string) (int, error) {
	ctx, span := util.StartSpan(ctx, "media.Process", "product_id", strconv.FormatInt(productID, 10))
	defer span.End()

	if len(urls) > p.cfg.MaxImages {
		urls = urls[:p.cfg.MaxImages]
	}

	saved := 0
	for _, src := range urls {
		if len(src) < 10 {
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return saved, err
		}

		imageURL, err := p.saveOne(ctx, productID, src, saved)
		if err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			util.ImagesTotal.WithLabelValues("failed").Inc()
			p.logger.Warn("Image skipped",
				zap.Int64("product_id", productID),
				zap.String("url", src),
				zap.Error(err))
			continue
		}

		if saved == 0 {
			if err := p.store.SetProductMainImage(ctx, productID, imageURL); err != nil {
				p.logger.Error("Failed to set main image", zap.Int64("product_id", productID), zap.Error(err))
			}
		}
		saved++
		util.ImagesTotal.WithLabelValues("saved").Inc()
	}

	p.logger.Info("Images processed",
		zap.Int64("product_id", productID),
		zap.Int("candidates", len(urls)),
		zap.Int("saved", saved))
	return saved, nil
}

// saveOne handles a single URL. seq is the number of images already saved.
func (p *Pipeline) saveOne(ctx context.Context, productID int64, src string, seq int) (string, error) {
	data, err := p.download(ctx, src)
	if err != nil {
		return "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	// Fit never upscales
	img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)

	name := fmt.Sprintf("image-%d.jpg", seq+1)
	dir := filepath.Join(p.cfg.Dir, strconv.FormatInt(productID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}
	if err := imaging.Save(img, filepath.Join(dir, name), imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	row := &models.ProductImage{
		ProductID: productID,
		ImageURL:  path.Join(p.cfg.URLPrefix, strconv.FormatInt(productID, 10), name),
		IsMain:    seq == 0,
		SortOrder: seq,
	}
	if err := p.store.CreateProductImage(ctx, row); err != nil {
		return "", fmt.Errorf("failed to insert image row: %w", err)
	}
	return row.ImageURL, nil
}

func (p *Pipeline) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	if p.cfg.Referer != "" {
		req.Header.Set("Referer", p.cfg.Referer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, contentType)
	}
	return data, nil
}
