package imageconv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// supportedExtensions are matched against the lowercased file name
var supportedExtensions = []string{".jpeg", ".png"}

// Conversion records one converted file
type Conversion struct {
	Source string
	Output string
}

// Result summarizes a batch run
type Result struct {
	Converted []Conversion
	Ignored   int
}

// Converter rewrites JPEG and PNG files in a directory as JPEG
type Converter struct {
	logger *zap.Logger
}

// NewConverter creates a converter
func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{logger: logger}
}

// Convert converts every supported file directly inside src into dst,
// creating dst if needed. The first decode or encode failure stops the
// batch; files converted before it remain in dst.
func (c *Converter) Convert(src, dst string) (*Result, error) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory %s: %w", src, err)
	}

	result := &Result{Converted: []Conversion{}}
	for _, entry := range entries {
		name := entry.Name()
		if !Supported(name) {
			result.Ignored++
			continue
		}

		// Stat follows symlinks, so linked images are converted too
		path := filepath.Join(src, name)
		info, err := os.Stat(path)
		if err != nil {
			return result, fmt.Errorf("failed to convert %s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			result.Ignored++
			continue
		}

		out := OutputName(name)
		if err := convertFile(path, filepath.Join(dst, out)); err != nil {
			return result, fmt.Errorf("failed to convert %s: %w", name, err)
		}

		c.logger.Info("Converted image",
			zap.String("source", name),
			zap.String("output", out))
		result.Converted = append(result.Converted, Conversion{Source: name, Output: out})
	}

	return result, nil
}

// Supported reports whether name has a convertible extension
func Supported(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// OutputName replaces the extension of name with .jpg
func OutputName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

func convertFile(in, out string) error {
	img, err := imaging.Open(in)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if err := imaging.Save(flatten(img), out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// flatten drops the alpha channel, keeping colour values unchanged
func flatten(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
