package converter

import "errors"

// Drops counts instances and files skipped, by reason.
type Drops struct {
	UnknownCategory      int `json:"unknown_category"`
	MalformedBox         int `json:"malformed_box"`
	OutOfBounds          int `json:"out_of_bounds"`
	MissingImage         int `json:"missing_image"`
	UnreadableImage      int `json:"unreadable_image"`
	UnreadableAnnotation int `json:"unreadable_annotation"`
}

func (d *Drops) add(err error) {
	switch {
	case errors.Is(err, ErrUnknownCategory):
		d.UnknownCategory++
	case errors.Is(err, ErrMalformedBox):
		d.MalformedBox++
	case errors.Is(err, ErrOutOfBounds):
		d.OutOfBounds++
	case errors.Is(err, ErrMissingImage):
		d.MissingImage++
	case errors.Is(err, ErrUnreadableImage):
		d.UnreadableImage++
	case errors.Is(err, ErrUnreadableAnnotation):
		d.UnreadableAnnotation++
	}
}

func (d *Drops) merge(o Drops) {
	d.UnknownCategory += o.UnknownCategory
	d.MalformedBox += o.MalformedBox
	d.OutOfBounds += o.OutOfBounds
	d.MissingImage += o.MissingImage
	d.UnreadableImage += o.UnreadableImage
	d.UnreadableAnnotation += o.UnreadableAnnotation
}

// ByReason flattens the counters for metrics labels.
func (d Drops) ByReason() map[string]int {
	return map[string]int{
		"unknown_category":      d.UnknownCategory,
		"malformed_box":         d.MalformedBox,
		"out_of_bounds":         d.OutOfBounds,
		"missing_image":         d.MissingImage,
		"unreadable_image":      d.UnreadableImage,
		"unreadable_annotation": d.UnreadableAnnotation,
	}
}

type SplitStats struct {
	Name        string `json:"name"`
	Skipped     bool   `json:"skipped"`
	Files       int    `json:"files"`
	Images      int    `json:"images"`
	Annotations int    `json:"annotations"`
}

// Stats is the outcome of one conversion run.
type Stats struct {
	Images       int          `json:"images"`
	Annotations  int          `json:"annotations"`
	Splits       []SplitStats `json:"splits"`
	Drops        Drops        `json:"drops"`
	ManifestPath string       `json:"manifest_path"`
}
