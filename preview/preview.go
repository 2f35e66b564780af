package preview

import (
	"FashionDetKit/converter"
	"FashionDetKit/logger"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"
)

var palette = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 255, G: 225, B: 25, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
}

type Options struct {
	// Dataset is the converted dataset root holding images/ and labels/.
	Dataset string
	Split   string
	Limit   int
	Output  string
}

// Render draws the labels of up to Limit images onto copies of the images
// and saves them as PNG. It returns the number of images rendered.
func Render(opts Options) (int, error) {
	labelDir := filepath.Join(opts.Dataset, "labels", opts.Split)
	imageDir := filepath.Join(opts.Dataset, "images", opts.Split)
	entries, err := os.ReadDir(labelDir)
	if err != nil {
		return 0, fmt.Errorf("read labels %s: %w", labelDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if opts.Limit > 0 && len(names) > opts.Limit {
		names = names[:opts.Limit]
	}
	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", opts.Output, err)
	}

	rendered := 0
	for _, name := range names {
		stem := strings.TrimSuffix(name, ".txt")
		if err := renderOne(filepath.Join(labelDir, name), filepath.Join(imageDir, stem+".jpg"), filepath.Join(opts.Output, stem+".png")); err != nil {
			logger.Log().Warn("preview skipped", zap.String("label", name), zap.Error(err))
			continue
		}
		rendered++
	}
	return rendered, nil
}

func renderOne(labelPath, imagePath, outPath string) error {
	data, err := os.ReadFile(labelPath)
	if err != nil {
		return err
	}
	img, err := gg.LoadImage(imagePath)
	if err != nil {
		return fmt.Errorf("load %s: %w", imagePath, err)
	}
	dc := gg.NewContextForImage(img)
	w, h := dc.Width(), dc.Height()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(2)

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		classID, box, err := converter.ParseLabelLine(line)
		if err != nil {
			return err
		}
		x1, y1, x2, y2 := box.Corners(w, h)
		dc.SetColor(palette[classID%len(palette)])
		dc.DrawRectangle(x1, y1, x2-x1, y2-y1)
		dc.Stroke()
		dc.DrawString(converter.Classes[classID], x1+3, y1+13)
	}
	return dc.SavePNG(outPath)
}
