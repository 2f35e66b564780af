package converter

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// metadataKey holds dataset bookkeeping rather than a garment instance.
const metadataKey = "source"

var (
	ErrMissingSplit         = errors.New("source split not found")
	ErrMissingImage         = errors.New("image not found")
	ErrUnreadableImage      = errors.New("image cannot be decoded")
	ErrUnreadableAnnotation = errors.New("annotation cannot be parsed")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrMalformedBox         = errors.New("bounding box must have 4 numeric values")
	ErrOutOfBounds          = errors.New("normalized box outside [0,1]")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type instance struct {
	CategoryName string              `json:"category_name"`
	BoundingBox  jsoniter.RawMessage `json:"bounding_box"`
}

type entry struct {
	key string
	raw []byte
}

// readEntries returns the top-level members of an annotation document in
// document order, so that label lines come out in a stable order. A repeated
// key keeps its first position and its last value.
func readEntries(data []byte) ([]entry, error) {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	var entries []entry
	seen := map[string]int{}
	iter.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
		raw := append([]byte(nil), it.SkipAndReturnBytes()...)
		if i, dup := seen[key]; dup {
			entries[i].raw = raw
		} else {
			seen[key] = len(entries)
			entries = append(entries, entry{key: key, raw: raw})
		}
		return it.Error == nil
	})
	if iter.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableAnnotation, iter.Error)
	}
	return entries, nil
}

// labelLine converts one instance descriptor. A nil error with ok=false means
// the entry is not an instance at all (metadata such as pair_id).
func labelLine(raw []byte, imgW, imgH int) (line string, ok bool, err error) {
	var inst instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return "", false, nil
	}
	classID, known := ClassID(inst.CategoryName)
	if !known {
		return "", true, fmt.Errorf("%w: %q", ErrUnknownCategory, inst.CategoryName)
	}
	var bbox []float64
	if len(inst.BoundingBox) == 0 || json.Unmarshal(inst.BoundingBox, &bbox) != nil || len(bbox) != 4 {
		return "", true, ErrMalformedBox
	}
	box := ToCenter(bbox[0], bbox[1], bbox[2], bbox[3], imgW, imgH)
	if !box.Valid() {
		return "", true, ErrOutOfBounds
	}
	return LabelLine(classID, box), true, nil
}

// AnnotationLines converts a whole annotation document for an image of the
// given size. Dropped instances are tallied in drops.
func AnnotationLines(data []byte, imgW, imgH int) (lines []string, drops Drops, err error) {
	entries, err := readEntries(data)
	if err != nil {
		return nil, drops, err
	}
	for _, e := range entries {
		if e.key == metadataKey {
			continue
		}
		line, ok, err := labelLine(e.raw, imgW, imgH)
		if !ok {
			continue
		}
		if err != nil {
			drops.add(err)
			continue
		}
		lines = append(lines, line)
	}
	return lines, drops, nil
}
