package converter

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	root string
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, root: filepath.Join(t.TempDir(), "deepfashion2")}
}

func (f *fixture) dir(split, kind string) string {
	d := filepath.Join(f.root, split, kind)
	require.NoError(f.t, os.MkdirAll(d, 0o755))
	return d
}

func (f *fixture) image(split, stem string, w, h int) {
	var buf bytes.Buffer
	require.NoError(f.t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(split, "image"), stem+".jpg"), buf.Bytes(), 0o644))
}

func (f *fixture) raw(split, name string, data []byte) {
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(split, "image"), name), data, 0o644))
}

func (f *fixture) anno(split, stem, doc string) {
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir(split, "annos"), stem+".json"), []byte(doc), 0o644))
}

const topDoc = `{"source": "shop", "pair_id": 1, "item1": {"category_name": "short sleeve top", "bounding_box": [10,20,110,220]}}`

func listNames(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// standard builds a train split covering every per-file outcome and an empty
// validation split.
func standard(t *testing.T) *fixture {
	f := newFixture(t)
	f.image("train", "000001", 200, 400)
	f.anno("train", "000001", topDoc)

	f.image("train", "000002", 200, 400)
	f.anno("train", "000002", `{"item1": {"category_name": "bag", "bounding_box": [10,20,110,220]}}`)

	f.anno("train", "000003", topDoc)

	f.raw("train", "000004.jpg", []byte("garbage"))
	f.anno("train", "000004", topDoc)

	f.image("train", "000005", 640, 480)
	f.anno("train", "000005", `{
		"item1": {"category_name": "skirt", "bounding_box": [0,240,320,480]},
		"item2": {"category_name": "sling dress", "bounding_box": [320,0,640,480]},
		"item3": {"category_name": "vest", "bounding_box": [0,0,700,10]}
	}`)

	f.image("train", "000006", 100, 100)
	f.anno("train", "000006", `{"item1": `)

	f.dir("validation", "annos")
	f.dir("validation", "image")
	return f
}

func TestConvert(t *testing.T) {
	f := standard(t)
	out := filepath.Join(t.TempDir(), "yolo")

	stats, err := Convert(context.Background(), Options{Source: f.root, Output: out})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Images)
	assert.Equal(t, 3, stats.Annotations)
	assert.Equal(t, Drops{UnknownCategory: 1, OutOfBounds: 1, MissingImage: 1, UnreadableImage: 1, UnreadableAnnotation: 1}, stats.Drops)
	require.Len(t, stats.Splits, 2)
	assert.Equal(t, SplitStats{Name: "train", Files: 6, Images: 2, Annotations: 3}, stats.Splits[0])
	assert.Equal(t, SplitStats{Name: "val"}, stats.Splits[1])

	assert.Equal(t, []string{"000001.jpg", "000005.jpg"}, listNames(t, filepath.Join(out, "images", "train")))
	assert.Equal(t, []string{"000001.txt", "000005.txt"}, listNames(t, filepath.Join(out, "labels", "train")))
	assert.Empty(t, listNames(t, filepath.Join(out, "images", "val")))
	assert.Empty(t, listNames(t, filepath.Join(out, "labels", "val")))

	label, err := os.ReadFile(filepath.Join(out, "labels", "train", "000001.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.300000 0.300000 0.500000 0.500000", string(label))

	label, err = os.ReadFile(filepath.Join(out, "labels", "train", "000005.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1 0.250000 0.750000 0.500000 0.500000\n3 0.750000 0.500000 0.500000 1.000000", string(label))

	src, err := os.ReadFile(filepath.Join(f.root, "train", "image", "000005.jpg"))
	require.NoError(t, err)
	dst, err := os.ReadFile(filepath.Join(out, "images", "train", "000005.jpg"))
	require.NoError(t, err)
	assert.Equal(t, src, dst)

	m, err := ReadManifest(filepath.Join(out, "data.yaml"))
	require.NoError(t, err)
	abs, err := filepath.Abs(out)
	require.NoError(t, err)
	assert.Equal(t, abs, m.Path)
	assert.Equal(t, "images/train", m.Train)
	assert.Equal(t, "images/val", m.Val)
	assert.Equal(t, 6, m.NC)
	assert.Equal(t, Classes, m.Names)
	assert.Equal(t, 2, m.TotalImages)
	assert.Equal(t, 3, m.TotalAnnotations)
	assert.Equal(t, filepath.Join(out, "data.yaml"), stats.ManifestPath)
}

func TestConvertManifestMatchesOutput(t *testing.T) {
	f := standard(t)
	f.image("validation", "100001", 300, 300)
	f.anno("validation", "100001", `{"item1": {"category_name": "shorts", "bounding_box": [0,0,300,150]}, "item2": {"category_name": "vest", "bounding_box": [0,150,300,300]}}`)
	f.image("validation", "100002", 300, 300)
	f.anno("validation", "100002", `{"item1": {"category_name": "hat", "bounding_box": [0,0,30,30]}}`)
	out := filepath.Join(t.TempDir(), "yolo")

	stats, err := Convert(context.Background(), Options{Source: f.root, Output: out})
	require.NoError(t, err)

	var labelFiles, lines int
	for _, split := range []string{"train", "val"} {
		dir := filepath.Join(out, "labels", split)
		for _, name := range listNames(t, dir) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			labelFiles++
			lines += len(strings.Split(string(data), "\n"))

			_, err = os.Stat(filepath.Join(out, "images", split, strings.TrimSuffix(name, ".txt")+".jpg"))
			assert.NoError(t, err, "image for %s", name)
		}
	}
	m, err := ReadManifest(stats.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, labelFiles, m.TotalImages)
	assert.Equal(t, lines, m.TotalAnnotations)
	assert.Equal(t, 3, m.TotalImages)
	assert.Equal(t, 5, m.TotalAnnotations)

	_, err = os.Stat(filepath.Join(out, "labels", "val", "100002.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(out, "images", "val", "100002.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func readTree(t *testing.T, root string) map[string][]byte {
	files := map[string][]byte{}
	for _, sub := range []string{"images/train", "images/val", "labels/train", "labels/val"} {
		dir := filepath.Join(root, sub)
		for _, name := range listNames(t, dir) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			files[sub+"/"+name] = data
		}
	}
	return files
}

func TestConvertDeterministic(t *testing.T) {
	f := standard(t)
	for i := 0; i < 20; i++ {
		stem := "2" + strings.Repeat("0", 4) + string(rune('a'+i))
		f.image("validation", stem, 320+i, 240)
		f.anno("validation", stem, `{"item1": {"category_name": "long sleeve dress", "bounding_box": [3,7,101,203]}}`)
	}
	base := t.TempDir()

	serialOut := filepath.Join(base, "serial")
	serial, err := Convert(context.Background(), Options{Source: f.root, Output: serialOut})
	require.NoError(t, err)

	again, err := Convert(context.Background(), Options{Source: f.root, Output: serialOut})
	require.NoError(t, err)
	assert.Equal(t, serial, again)

	parallelOut := filepath.Join(base, "parallel")
	parallel, err := Convert(context.Background(), Options{Source: f.root, Output: parallelOut, Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Images, parallel.Images)
	assert.Equal(t, serial.Annotations, parallel.Annotations)
	assert.Equal(t, serial.Splits, parallel.Splits)
	assert.Equal(t, serial.Drops, parallel.Drops)
	assert.Equal(t, readTree(t, serialOut), readTree(t, parallelOut))

	serialManifest, err := ReadManifest(serial.ManifestPath)
	require.NoError(t, err)
	parallelManifest, err := ReadManifest(parallel.ManifestPath)
	require.NoError(t, err)
	serialManifest.Path, parallelManifest.Path = "", ""
	assert.Equal(t, serialManifest, parallelManifest)
}

func TestConvertMissingSplits(t *testing.T) {
	t.Run("validation missing", func(t *testing.T) {
		f := newFixture(t)
		f.image("train", "000001", 200, 400)
		f.anno("train", "000001", topDoc)
		out := filepath.Join(t.TempDir(), "yolo")

		stats, err := Convert(context.Background(), Options{Source: f.root, Output: out})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Images)
		assert.True(t, stats.Splits[1].Skipped)
		assert.DirExists(t, filepath.Join(out, "images", "val"))
		assert.DirExists(t, filepath.Join(out, "labels", "val"))
	})

	t.Run("source missing", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "yolo")
		stats, err := Convert(context.Background(), Options{Source: filepath.Join(t.TempDir(), "nope"), Output: out})
		require.NoError(t, err)
		assert.Zero(t, stats.Images)
		assert.Zero(t, stats.Annotations)
		assert.True(t, stats.Splits[0].Skipped)
		assert.True(t, stats.Splits[1].Skipped)

		m, err := ReadManifest(filepath.Join(out, "data.yaml"))
		require.NoError(t, err)
		assert.Zero(t, m.TotalImages)
		assert.Equal(t, 6, m.NC)
	})
}

func TestConvertUnwritableOutput(t *testing.T) {
	f := standard(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Convert(context.Background(), Options{Source: f.root, Output: blocker})
	require.Error(t, err)
	assert.Contains(t, err.Error(), blocker)
}

func TestConvertCancelled(t *testing.T) {
	f := standard(t)
	out := filepath.Join(t.TempDir(), "yolo")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Convert(ctx, Options{Source: f.root, Output: out, Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(out, "data.yaml"))
}

func TestManifestEncode(t *testing.T) {
	data, err := newManifest("/data/yolo", 4, 9).Encode()
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# DeepFashion2"))
	assert.Contains(t, text, "path: /data/yolo\n")
	assert.Contains(t, text, "train: images/train\n")
	assert.Contains(t, text, "val: images/val\n")
	assert.Contains(t, text, "nc: 6\n")
	assert.Contains(t, text, "names: [top, bottom, shoes, dress, outerwear, accessory]\n")
	assert.Contains(t, text, "total_images: 4\n")
	assert.Contains(t, text, "total_annotations: 9\n")
}
