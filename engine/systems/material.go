package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

/** @brief The name of the default material. */
const DefaultMaterialName string = "defaultmesh"

type MaterialSystemConfig struct {
	MaxMaterialCount int
}

// MaterialSystem maps names onto pipelines. Pipelines and layouts are owned
// by whoever created them and released through the deletion queue.
type MaterialSystem struct {
	config    *MaterialSystemConfig
	materials map[string]*metadata.Material
}

func NewMaterialSystem(config *MaterialSystemConfig) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		return nil, errors.New("material system config.MaxMaterialCount must be > 0")
	}
	return &MaterialSystem{
		config:    config,
		materials: make(map[string]*metadata.Material, config.MaxMaterialCount),
	}, nil
}

func (ms *MaterialSystem) Create(name string, pipeline gpu.Pipeline, layout gpu.PipelineLayout) (*metadata.Material, error) {
	if _, ok := ms.materials[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateName, "material %s", name)
	}
	if len(ms.materials) >= ms.config.MaxMaterialCount {
		return nil, errors.Newf("material system is full (%d materials)", ms.config.MaxMaterialCount)
	}
	m := &metadata.Material{Name: name, Pipeline: pipeline, Layout: layout}
	ms.materials[name] = m
	return m, nil
}

// Get returns the material registered under name and panics if there is
// none.
func (ms *MaterialSystem) Get(name string) *metadata.Material {
	m, ok := ms.materials[name]
	if !ok {
		panic(errors.AssertionFailedf("material %q is not registered", name))
	}
	return m
}

func (ms *MaterialSystem) Lookup(name string) (*metadata.Material, bool) {
	m, ok := ms.materials[name]
	return m, ok
}

func (ms *MaterialSystem) Len() int {
	return len(ms.materials)
}

func (ms *MaterialSystem) Shutdown() error {
	ms.materials = map[string]*metadata.Material{}
	return nil
}
