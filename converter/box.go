package converter

import (
	"fmt"
	"strconv"
	"strings"
)

// CenterBox is a box in normalized center format, every field a fraction of
// the image dimension.
type CenterBox struct {
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// ToCenter converts an absolute [x1,y1,x2,y2] pixel box.
func ToCenter(x1, y1, x2, y2 float64, imgW, imgH int) CenterBox {
	w, h := float64(imgW), float64(imgH)
	return CenterBox{
		XCenter: ((x1 + x2) / 2) / w,
		YCenter: ((y1 + y2) / 2) / h,
		Width:   (x2 - x1) / w,
		Height:  (y2 - y1) / h,
	}
}

// Corners is the inverse of ToCenter.
func (b CenterBox) Corners(imgW, imgH int) (x1, y1, x2, y2 float64) {
	w, h := float64(imgW), float64(imgH)
	x1 = (b.XCenter - b.Width/2) * w
	x2 = (b.XCenter + b.Width/2) * w
	y1 = (b.YCenter - b.Height/2) * h
	y2 = (b.YCenter + b.Height/2) * h
	return
}

// Valid reports whether all four values lie in [0,1]. NaN fails.
func (b CenterBox) Valid() bool {
	for _, v := range [4]float64{b.XCenter, b.YCenter, b.Width, b.Height} {
		if !(v >= 0 && v <= 1) {
			return false
		}
	}
	return true
}

// LabelLine formats one YOLO label line.
func LabelLine(classID int, b CenterBox) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", classID, b.XCenter, b.YCenter, b.Width, b.Height)
}

// ParseLabelLine reads a line written by LabelLine.
func ParseLabelLine(line string) (int, CenterBox, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return 0, CenterBox{}, fmt.Errorf("label line %q: want 5 fields, got %d", line, len(fields))
	}
	classID, err := strconv.Atoi(fields[0])
	if err != nil || classID < 0 || classID >= len(Classes) {
		return 0, CenterBox{}, fmt.Errorf("label line %q: bad class id", line)
	}
	var v [4]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(fields[i+1], 64); err != nil {
			return 0, CenterBox{}, fmt.Errorf("label line %q: %w", line, err)
		}
	}
	return classID, CenterBox{XCenter: v[0], YCenter: v[1], Width: v[2], Height: v[3]}, nil
}
