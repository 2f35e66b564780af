package converter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationLines(t *testing.T) {
	t.Run("single instance", func(t *testing.T) {
		doc := `{"item1": {"category_name": "short sleeve top", "bounding_box": [10,20,110,220]}}`
		lines, drops, err := AnnotationLines([]byte(doc), 200, 400)
		require.NoError(t, err)
		assert.Equal(t, []string{"0 0.300000 0.300000 0.500000 0.500000"}, lines)
		assert.Equal(t, Drops{}, drops)
	})

	t.Run("document order and metadata", func(t *testing.T) {
		doc := `{
			"source": "user",
			"pair_id": 4,
			"item2": {"category_name": "trousers", "bounding_box": [0, 0, 100, 400]},
			"item1": {"category_name": "long sleeve outwear", "bounding_box": [100, 0, 200, 200]}
		}`
		lines, drops, err := AnnotationLines([]byte(doc), 200, 400)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"1 0.250000 0.500000 0.500000 1.000000",
			"4 0.750000 0.250000 0.500000 0.500000",
		}, lines)
		assert.Equal(t, Drops{}, drops)
	})

	t.Run("repeated key keeps last value", func(t *testing.T) {
		doc := `{
			"item1": {"category_name": "vest", "bounding_box": [0, 0, 20, 40]},
			"item2": {"category_name": "long sleeve dress", "bounding_box": [0, 0, 200, 400]},
			"item1": {"category_name": "skirt", "bounding_box": [0, 0, 40, 80]}
		}`
		lines, drops, err := AnnotationLines([]byte(doc), 200, 400)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"1 0.100000 0.100000 0.200000 0.200000",
			"3 0.500000 0.500000 1.000000 1.000000",
		}, lines)
		assert.Equal(t, Drops{}, drops)
	})

	t.Run("drops", func(t *testing.T) {
		doc := `{
			"item1": {"category_name": "bag", "bounding_box": [10,20,110,220]},
			"item2": {"category_name": "skirt", "bounding_box": [10,20,110]},
			"item3": {"category_name": "skirt", "bounding_box": ["a","b","c","d"]},
			"item4": {"category_name": "skirt"},
			"item5": {"category_name": "skirt", "bounding_box": [150,20,10,220]},
			"item6": {"category_name": "skirt", "bounding_box": [-100,20,300,220]},
			"item7": {"category_name": "vest dress", "bounding_box": [0,0,200,400]}
		}`
		lines, drops, err := AnnotationLines([]byte(doc), 200, 400)
		require.NoError(t, err)
		assert.Equal(t, []string{"3 0.500000 0.500000 1.000000 1.000000"}, lines)
		assert.Equal(t, Drops{UnknownCategory: 1, MalformedBox: 3, OutOfBounds: 2}, drops)
	})

	t.Run("not an object", func(t *testing.T) {
		_, _, err := AnnotationLines([]byte(`[1,2,3]`), 200, 400)
		assert.True(t, errors.Is(err, ErrUnreadableAnnotation))
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := AnnotationLines([]byte(`{"item1": {"category_name": "vest"`), 200, 400)
		assert.ErrorIs(t, err, ErrUnreadableAnnotation)
	})
}
