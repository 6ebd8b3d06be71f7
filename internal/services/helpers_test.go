package services

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"ifc-service/internal/conversion"
	"ifc-service/internal/lock"
	"ifc-service/internal/objtag"
	"ifc-service/internal/repository"
	"ifc-service/internal/storage"
)

const (
	converterOK = `#!/bin/sh
printf '<COLLADA/>' > "$2"
echo "converted $1"
`
	converterFails = `#!/bin/sh
echo "IfcOpenShell: unable to parse $1" >&2
exit 3
`
	modelerOK = `#!/bin/sh
while [ "$1" != "--" ]; do shift; done
shift
printf 'o IfcWall\nv 0 0 0\no IfcSlab\nv 1 0 0\no IfcDoor\n' > "$2"
`
)

type recordingMirror struct {
	mu      sync.Mutex
	uploads []string
	removed []string
}

func (m *recordingMirror) Upload(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, key)
	return nil
}

func (m *recordingMirror) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, key)
	return nil
}

type env struct {
	files   *repository.GormFileRepository
	markers *repository.GormMarkerRepository
	store   *storage.ArtifactStore
	mirror  *recordingMirror
	locker  *lock.MemoryLocker
	svc     *FileService
	marks   *MarkerService
}

type envOptions struct {
	converter string
	rename    objtag.RewriteOptions
	maxUpload int64
}

func newEnv(t *testing.T, opts envOptions) *env {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools require a POSIX shell")
	}
	if opts.converter == "" {
		opts.converter = converterOK
	}

	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	converter := filepath.Join(bin, "IfcConvert")
	modeler := filepath.Join(bin, "blender")
	require.NoError(t, os.WriteFile(converter, []byte(opts.converter), 0o755))
	require.NoError(t, os.WriteFile(modeler, []byte(modelerOK), 0o755))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(db))

	logger := zaptest.NewLogger(t)
	store, err := storage.NewArtifactStore(filepath.Join(root, "uploads"))
	require.NoError(t, err)
	pipeline, err := conversion.NewPipeline(conversion.Config{
		ConverterPath: converter,
		ModelerPath:   modeler,
		ArtifactDir:   store.BaseDir(),
		WorkDir:       filepath.Join(root, "work"),
	}, logger)
	require.NoError(t, err)

	e := &env{
		files:   repository.NewGormFileRepository(db),
		markers: repository.NewGormMarkerRepository(db),
		store:   store,
		mirror:  &recordingMirror{},
		locker:  lock.NewMemoryLocker(time.Minute),
	}
	e.svc = NewFileService(FileServiceOptions{
		Files:          e.files,
		Markers:        e.markers,
		Store:          store,
		Pipeline:       pipeline,
		Mirror:         e.mirror,
		Locker:         e.locker,
		RenameOptions:  opts.rename,
		MaxUploadBytes: opts.maxUpload,
		Logger:         logger,
	})
	e.marks = NewMarkerService(e.markers, e.files, func(id string) string {
		return "http://ifc.local/api/ifc/files/" + id + "/download"
	}, logger)
	return e
}
