package scraper

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"catalog-ingest/internal/models"
)

var (
	// ErrRejected marks a candidate that failed the data-quality gate
	ErrRejected     = errors.New("candidate rejected")
	ErrInvalidName  = fmt.Errorf("%w: missing or placeholder name", ErrRejected)
	ErrInvalidPrice = fmt.Errorf("%w: price must be positive", ErrRejected)
)

const minNameRunes = 3

// Validate decides whether a candidate may reach the catalog writer
func Validate(c *models.ProductCandidate) error {
	if c == nil {
		return ErrRejected
	}
	name := strings.TrimSpace(c.Name)
	if name == "" || name == NoName || utf8.RuneCountInString(name) < minNameRunes {
		return ErrInvalidName
	}
	if !c.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}
