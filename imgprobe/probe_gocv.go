//go:build gocv

package imgprobe

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCV decodes the whole image with gocv. Slower than Header, but accepts
// every format the linked OpenCV build supports.
type OpenCV struct{}

func (OpenCV) Size(path string) (int, int, error) {
	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()
	if mat.Empty() {
		return 0, 0, fmt.Errorf("opencv %s: %w", path, errors.New("decoded image is empty or unsupported format"))
	}
	return mat.Cols(), mat.Rows(), nil
}

func init() {
	Default = OpenCV{}
}
