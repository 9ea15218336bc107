package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/util"
	"go.uber.org/zap"
)

var _ Storage = new(FileStorage)

// FileStorage serves flows decoded from the .json/.yaml files of a
// directory. Files are read in name order. A reload that fails keeps the
// previously loaded flows.
type FileStorage struct {
	dir    string
	memory *MemoryStorage
	tw     *util.TickWorker
}

func NewFileStorage(dir string) (*FileStorage, error) {
	fs := &FileStorage{
		dir:    dir,
		memory: NewMemoryStorage(),
	}
	if err := fs.Reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStorage) Reload() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return fmt.Errorf("reading flow dir %s: %w", fs.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var flows []*model.FlowDefinition
	seen := make(map[string]string)
	for _, name := range names {
		path := filepath.Join(fs.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		decoded, err := DecodeFile(name, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, f := range decoded {
			if other, ok := seen[f.Id]; ok {
				return fmt.Errorf("%w: flow %q defined in %s and %s", ErrInvalidFlow, f.Id, other, name)
			}
			seen[f.Id] = name
		}
		flows = append(flows, decoded...)
	}
	fs.memory.Replace(flows)
	logger.Info("flows loaded", zap.String("dir", fs.dir), zap.Int("files", len(names)), zap.Int("flows", len(flows)))
	return nil
}

// StartReload re-reads the directory every interval until Stop is called.
func (fs *FileStorage) StartReload(interval time.Duration, wg *sync.WaitGroup) {
	fs.tw = util.NewTickWorker("flow-file-reload", interval, func() {
		if err := fs.Reload(); err != nil {
			logger.Error("error reloading flows, keeping previous set", zap.String("dir", fs.dir), zap.Error(err))
		}
	}, wg)
	fs.tw.Start()
}

func (fs *FileStorage) Stop() error {
	if fs.tw != nil {
		fs.tw.Stop()
	}
	return nil
}

func (fs *FileStorage) GetFlowsForOwner(ctx context.Context, ownerId string, status model.FlowStatus) ([]*model.FlowDefinition, error) {
	return fs.memory.GetFlowsForOwner(ctx, ownerId, status)
}

func (fs *FileStorage) GetFlowById(ctx context.Context, flowId string) (*model.FlowDefinition, error) {
	return fs.memory.GetFlowById(ctx, flowId)
}
