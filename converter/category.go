package converter

// Classes is the target vocabulary. Label files refer to classes by index,
// so the order must never change.
var Classes = []string{"top", "bottom", "shoes", "dress", "outerwear", "accessory"}

// No source category maps to shoes (2) or accessory (5).
var categoryMapping = map[string]int{
	"short sleeve top":     0,
	"long sleeve top":      0,
	"short sleeve outwear": 4,
	"long sleeve outwear":  4,
	"vest":                 0,
	"sling":                0,
	"shorts":               1,
	"trousers":             1,
	"skirt":                1,
	"short sleeve dress":   3,
	"long sleeve dress":    3,
	"vest dress":           3,
	"sling dress":          3,
}

// ClassID resolves a source category name. ok is false for names outside the
// mapping; such instances are dropped.
func ClassID(category string) (id int, ok bool) {
	id, ok = categoryMapping[category]
	return
}
