package mil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gomlx/go-coreml/proto/coreml/milspec"
	"github.com/gomlx/go-coreml/proto/coreml/spec"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"

	"github.com/gomlx/kernelscope/program"
)

// specificationVersion is the CoreML specification version written by SavePackage (iOS 17).
const specificationVersion = 8

// manifest is the Manifest.json of an .mlpackage.
type manifest struct {
	FileFormatVersion   string                  `json:"fileFormatVersion"`
	ItemInfoEntries     map[string]manifestItem `json:"itemInfoEntries"`
	RootModelIdentifier string                  `json:"rootModelIdentifier"`
}

type manifestItem struct {
	Author      string `json:"author"`
	Description string `json:"description"`
	Name        string `json:"name"`
	Path        string `json:"path"`
}

// IsPackage reports whether path names an .mlpackage directory.
func IsPackage(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir() && fileExists(filepath.Join(path, "Manifest.json"))
}

// IsMILFile reports whether path looks like a MIL input: an .mlpackage
// directory, an .mlmodel file or a serialized MIL program (.pb).
func IsMILFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mlmodel", ".pb":
		return true
	}
	return IsPackage(path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads a MIL program from an .mlpackage directory, an .mlmodel file or
// a serialized milspec.Program, and converts it with FromProgram.
func Load(path, function string, d program.Dialect) (*program.Program, error) {
	p, err := ReadProgram(path)
	if err != nil {
		return nil, err
	}
	out, err := FromProgram(p, function, d)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return out, nil
}

// ReadProgram reads the MIL program stored at path.
func ReadProgram(path string) (*milspec.Program, error) {
	if IsPackage(path) {
		modelPath, err := packageModelPath(path)
		if err != nil {
			return nil, err
		}
		return readModel(modelPath)
	}
	if strings.EqualFold(filepath.Ext(path), ".mlmodel") {
		return readModel(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read mil program")
	}
	p := &milspec.Program{}
	if err := proto.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "%s: unmarshal mil program", path)
	}
	return p, nil
}

// packageModelPath returns the path of the root model of an .mlpackage.
func packageModelPath(packagePath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(packagePath, "Manifest.json"))
	if err != nil {
		return "", errors.Wrap(err, "read manifest")
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", errors.Wrapf(err, "%s: decode manifest", packagePath)
	}
	item, ok := m.ItemInfoEntries[m.RootModelIdentifier]
	if !ok {
		return "", errors.Errorf("%s: manifest has no entry for root model %q", packagePath, m.RootModelIdentifier)
	}
	return filepath.Join(packagePath, "Data", filepath.FromSlash(item.Path)), nil
}

func readModel(path string) (*milspec.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	model := &spec.Model{}
	if err := proto.Unmarshal(data, model); err != nil {
		return nil, errors.Wrapf(err, "%s: unmarshal model", path)
	}
	p := model.GetMlProgram()
	if p == nil {
		return nil, errors.Errorf("%s: model is not an ML program", path)
	}
	return p, nil
}

// SavePackage writes p as a minimal .mlpackage: Data/com.apple.CoreML/model.mlmodel
// and Manifest.json. Weights aren't written.
func SavePackage(p *milspec.Program, packagePath string) error {
	dataDir := filepath.Join(packagePath, "Data", "com.apple.CoreML")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return errors.Wrap(err, "create package")
	}

	model := &spec.Model{
		SpecificationVersion: specificationVersion,
		Type:                 &spec.Model_MlProgram{MlProgram: p},
	}
	data, err := proto.Marshal(model)
	if err != nil {
		return errors.Wrap(err, "marshal model")
	}
	if err := os.WriteFile(filepath.Join(dataDir, "model.mlmodel"), data, 0644); err != nil {
		return errors.Wrap(err, "write model")
	}

	modelUUID := uuid.New().String()
	m := manifest{
		FileFormatVersion: "1.0.0",
		ItemInfoEntries: map[string]manifestItem{
			modelUUID: {
				Author:      "com.apple.CoreML",
				Description: "CoreML Model Specification",
				Name:        "model.mlmodel",
				Path:        "com.apple.CoreML/model.mlmodel",
			},
		},
		RootModelIdentifier: modelUUID,
	}
	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal manifest")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(packagePath, "Manifest.json"), manifestData, 0644), "write manifest")
}

// WriteProgram writes p as a serialized milspec.Program.
func WriteProgram(p *milspec.Program, path string) error {
	data, err := proto.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal mil program")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write mil program")
}
