package converter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const manifestName = "data.yaml"

const manifestHeader = `# DeepFashion2 YOLO dataset configuration
# 13 DeepFashion2 categories mapped to 6 garment types
`

// Manifest is the data.yaml read by the training framework.
type Manifest struct {
	Path             string   `yaml:"path"`
	Train            string   `yaml:"train"`
	Val              string   `yaml:"val"`
	NC               int      `yaml:"nc"`
	Names            []string `yaml:"names,flow"`
	TotalImages      int      `yaml:"total_images"`
	TotalAnnotations int      `yaml:"total_annotations"`
}

func newManifest(absOutput string, images, annotations int) Manifest {
	return Manifest{
		Path:             absOutput,
		Train:            "images/train",
		Val:              "images/val",
		NC:               len(Classes),
		Names:            append([]string(nil), Classes...),
		TotalImages:      images,
		TotalAnnotations: annotations,
	}
}

func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(manifestHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeManifest(dir string, m Manifest) (string, error) {
	data, err := m.Encode()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, manifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}
	return path, nil
}

// ReadManifest loads a data.yaml written by Convert.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
