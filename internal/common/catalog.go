package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"streamprime-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// CatalogItem is one video as written in the catalog file. Price is a string
// so amounts keep their exact decimal form.
type CatalogItem struct {
	Id     string `yaml:"id"`
	Title  string `yaml:"title"`
	Price  string `yaml:"price"`
	Active *bool  `yaml:"active"`
}

type CatalogFile struct {
	Videos []CatalogItem `yaml:"videos"`
}

// ContentWriter is the storage the seeder writes through
type ContentWriter interface {
	UpsertContent(ctx context.Context, item models.ContentItem) error
}

// LoadCatalog reads the catalog file. Items without a price get defaultPrice
// and items without an active flag are active.
func LoadCatalog(catalogFile string, defaultPrice decimal.Decimal) ([]models.ContentItem, error) {
	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}
	return ParseCatalog(data, defaultPrice)
}

func ParseCatalog(data []byte, defaultPrice decimal.Decimal) ([]models.ContentItem, error) {
	var catalog CatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unable to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Videos))
	items := make([]models.ContentItem, 0, len(catalog.Videos))
	for i, video := range catalog.Videos {
		if video.Id == "" {
			return nil, fmt.Errorf("video at index %d missing id", i)
		}
		if seen[video.Id] {
			return nil, fmt.Errorf("duplicate video id %q", video.Id)
		}
		seen[video.Id] = true

		price := defaultPrice
		if video.Price != "" {
			p, err := decimal.NewFromString(video.Price)
			if err != nil {
				return nil, fmt.Errorf("video %s has invalid price %q: %w", video.Id, video.Price, err)
			}
			price = p
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("video %s price must be positive", video.Id)
		}
		if _, err := models.ToMinor(price); err != nil {
			return nil, fmt.Errorf("video %s: %w", video.Id, err)
		}

		active := true
		if video.Active != nil {
			active = *video.Active
		}
		title := video.Title
		if title == "" {
			title = video.Id
		}

		items = append(items, models.ContentItem{
			Id:     video.Id,
			Title:  title,
			Price:  price,
			Active: active,
		})
	}
	return items, nil
}

// SeedCatalog upserts every item. Counters on existing items are preserved.
func SeedCatalog(ctx context.Context, content ContentWriter, items []models.ContentItem) error {
	for _, item := range items {
		if err := content.UpsertContent(ctx, item); err != nil {
			return fmt.Errorf("failed to seed video %s: %w", item.Id, err)
		}
	}
	return nil
}
