package converter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCenterScenario(t *testing.T) {
	b := ToCenter(10, 20, 110, 220, 200, 400)
	assert.Equal(t, "0 0.300000 0.300000 0.500000 0.500000", LabelLine(0, b))
}

func TestCenterBoxRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		w := 1 + rng.Intn(4000)
		h := 1 + rng.Intn(4000)
		x1 := rng.Float64() * float64(w)
		x2 := x1 + rng.Float64()*(float64(w)-x1)
		y1 := rng.Float64() * float64(h)
		y2 := y1 + rng.Float64()*(float64(h)-y1)

		b := ToCenter(x1, y1, x2, y2, w, h)
		assert.True(t, b.Valid(), "box %v in %dx%d", b, w, h)
		gx1, gy1, gx2, gy2 := b.Corners(w, h)
		assert.InDelta(t, x1, gx1, 1e-6)
		assert.InDelta(t, y1, gy1, 1e-6)
		assert.InDelta(t, x2, gx2, 1e-6)
		assert.InDelta(t, y2, gy2, 1e-6)
	}
}

func TestCenterBoxValid(t *testing.T) {
	cases := []struct {
		name  string
		box   CenterBox
		valid bool
	}{
		{"full frame", CenterBox{0.5, 0.5, 1, 1}, true},
		{"zero size on edge", CenterBox{0, 1, 0, 0}, true},
		{"negative width", ToCenter(110, 20, 10, 220, 200, 400), false},
		{"wider than image", ToCenter(-50, 0, 250, 10, 200, 400), false},
		{"center outside", CenterBox{1.2, 0.5, 0.1, 0.1}, false},
		{"zero image width", ToCenter(0, 0, 0, 0, 0, 400), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.box.Valid())
		})
	}
}

func TestParseLabelLine(t *testing.T) {
	id, b, err := ParseLabelLine("3 0.750000 0.500000 0.500000 1.000000")
	assert.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Equal(t, CenterBox{0.75, 0.5, 0.5, 1}, b)

	for _, bad := range []string{"", "3 0.1 0.2 0.3", "9 0.1 0.1 0.1 0.1", "x 0.1 0.1 0.1 0.1", "1 a 0.1 0.1 0.1"} {
		_, _, err := ParseLabelLine(bad)
		assert.Error(t, err, bad)
	}
}
