package media

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cenkalti/dominantcolor"
)

// DominantColor returns the dominant color of an image as #rrggbb, found by
// k-means clustering of its opaque pixels
func DominantColor(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return "", fmt.Errorf("empty image")
	}
	c := dominantcolor.Find(img)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}
