package systems

import (
	"runtime"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/frame"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

type SystemManager struct {
	JobSystem      *JobSystem
	MeshSystem     *MeshSystem
	MaterialSystem *MaterialSystem
}

func NewSystemManager(dev gpu.Device, upload *frame.UploadContext, queue *deletion.Queue) (*SystemManager, error) {
	workers := runtime.NumCPU()
	js, err := NewJobSystem(workers, workers*4)
	if err != nil {
		return nil, err
	}
	ms, err := NewMeshSystem(&MeshSystemConfig{
		MaxMeshCount: 1000,
	}, dev, upload, queue)
	if err != nil {
		return nil, err
	}
	mats, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount: 1000,
	})
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		JobSystem:      js,
		MeshSystem:     ms,
		MaterialSystem: mats,
	}, nil
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.MaterialSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.MeshSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
