package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ifc-service/internal/conversion"
	"ifc-service/internal/extraction"
	"ifc-service/internal/lock"
	"ifc-service/internal/models"
	"ifc-service/internal/objtag"
	"ifc-service/internal/repository"
	"ifc-service/internal/storage"
)

// UploadRecorder observes accepted upload sizes.
type UploadRecorder interface {
	RecordUpload(bytes int64)
}

// ConversionRun is the outcome of one pipeline run for a stored file.
type ConversionRun struct {
	File   *models.ModelFile
	Result *conversion.Result
}

// FileServiceOptions holds the collaborators of a FileService.
type FileServiceOptions struct {
	Files    repository.FileRepository
	Markers  repository.MarkerRepository
	Store    *storage.ArtifactStore
	Pipeline *conversion.Pipeline
	Locker   lock.Locker
	Mirror   storage.Mirror
	Uploads  UploadRecorder

	RenameOptions  objtag.RewriteOptions
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// FileService manages uploaded IFC models and their conversion.
type FileService struct {
	files    repository.FileRepository
	markers  repository.MarkerRepository
	store    *storage.ArtifactStore
	pipeline *conversion.Pipeline
	locker   lock.Locker
	mirror   storage.Mirror
	uploads  UploadRecorder

	renameOpts objtag.RewriteOptions
	maxUpload  int64
	logger     *zap.Logger
}

// NewFileService creates a new FileService. Locker, Mirror and Uploads are optional.
func NewFileService(opts FileServiceOptions) *FileService {
	s := &FileService{
		files:      opts.Files,
		markers:    opts.Markers,
		store:      opts.Store,
		pipeline:   opts.Pipeline,
		locker:     opts.Locker,
		mirror:     opts.Mirror,
		uploads:    opts.Uploads,
		renameOpts: opts.RenameOptions,
		maxUpload:  opts.MaxUploadBytes,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.locker == nil {
		s.locker = lock.NewMemoryLocker(30 * time.Minute)
	}
	if s.mirror == nil {
		s.mirror = storage.NopMirror{}
	}
	return s
}

// isAllowedUpload checks if a filename is an IFC model or a compressed one.
func isAllowedUpload(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), conversion.ExtIFC) || extraction.IsArchive(filename)
}

// Upload stores an IFC model (or the single model inside an .ifczip/.zip),
// registers it and runs the conversion pipeline. When the pipeline fails
// the record is kept and returned together with the pipeline error.
func (s *FileService) Upload(ctx context.Context, filename string, r io.Reader) (*ConversionRun, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "no selected file")
	}
	if !isAllowedUpload(filename) {
		return nil, ErrUnsupportedType
	}
	stem := sanitizeStem(filename)
	if err := conversion.ValidateStem(stem); err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "filename %q: %v", filename, err)
	}
	name := stem + conversion.ExtIFC
	key := name

	unlock, err := s.lockStem(ctx, stem)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, stem, unlock)

	if _, err := s.files.GetByFilename(ctx, name); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup filename")
	}
	if exists, err := s.store.Exists(ctx, key); err != nil {
		return nil, errors.Wrap(err, "check artifact")
	} else if exists {
		return nil, ErrAlreadyExists
	}

	// Staged under a private key until the record exists.
	partKey := "." + stem + "." + uuid.NewString() + ".part"
	size, err := s.save(ctx, filename, partKey, r)
	if err != nil {
		_ = s.store.Delete(ctx, partKey)
		return nil, err
	}
	partPath, _ := s.store.Path(partKey)
	if s.uploads != nil {
		s.uploads.RecordUpload(size)
	}

	path, _ := s.store.Path(key)
	file := &models.ModelFile{
		ID:         uuid.New(),
		Filename:   name,
		Stem:       stem,
		Path:       path,
		Size:       size,
		UploadedAt: time.Now().UTC(),
		Stage:      string(conversion.StageUploaded),
	}
	if err := s.files.Create(ctx, file); err != nil {
		_ = s.store.Delete(ctx, partKey)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, errors.Wrap(err, "insert file record")
	}
	if err := s.store.Import(ctx, partPath, key); err != nil {
		_ = s.store.Delete(ctx, partKey)
		if delErr := s.files.Delete(context.WithoutCancel(ctx), file.ID); delErr != nil {
			s.logger.Error("failed to roll back file record", zap.String("id", file.ID.String()), zap.Error(delErr))
		}
		return nil, errors.Wrap(err, "store uploaded file")
	}
	s.logger.Info("file uploaded",
		zap.String("id", file.ID.String()),
		zap.String("filename", name),
		zap.Int64("size", size))

	return s.run(ctx, file)
}

func (s *FileService) save(ctx context.Context, filename, key string, r io.Reader) (int64, error) {
	if !extraction.IsArchive(filename) {
		n, err := s.store.Save(ctx, key, r, s.maxUpload)
		if errors.Is(err, storage.ErrTooLarge) {
			return 0, errors.Wrapf(ErrTooLarge, "limit is %d bytes", s.maxUpload)
		}
		return n, errors.Wrap(err, "failed to write uploaded file")
	}

	tmpDir, err := os.MkdirTemp("", "ifc-upload-*")
	if err != nil {
		return 0, errors.Wrap(err, "could not create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "upload"+filepath.Ext(filename))
	out, err := os.Create(archivePath)
	if err != nil {
		return 0, errors.Wrap(err, "could not create temporary file")
	}
	src := r
	if s.maxUpload > 0 {
		src = io.LimitReader(r, s.maxUpload+1)
	}
	n, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to write uploaded file")
	}
	if s.maxUpload > 0 && n > s.maxUpload {
		return 0, errors.Wrapf(ErrTooLarge, "limit is %d bytes", s.maxUpload)
	}

	extracted, err := extraction.ExtractIFC(ctx, archivePath, filepath.Join(tmpDir, "out"), s.maxUpload)
	if err != nil {
		if errors.Is(err, extraction.ErrTooLarge) {
			return 0, errors.Wrapf(ErrTooLarge, "extracted model limit is %d bytes", s.maxUpload)
		}
		if errors.Is(err, extraction.ErrNoModel) || errors.Is(err, extraction.ErrMultipleModels) {
			return 0, errors.Wrap(ErrInvalidInput, err.Error())
		}
		return 0, errors.Wrap(err, "extract archive")
	}
	info, err := os.Stat(extracted)
	if err != nil {
		return 0, err
	}
	if err := s.store.Import(ctx, extracted, key); err != nil {
		return 0, errors.Wrap(err, "store extracted model")
	}
	return info.Size(), nil
}

// lockStem takes the per-stem lease. A held lease yields ErrBusy.
func (s *FileService) lockStem(ctx context.Context, stem string) (lock.Unlock, error) {
	unlock, err := s.locker.TryLock(ctx, stem)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrBusy
		}
		return nil, errors.Wrap(err, "acquire stem lock")
	}
	return unlock, nil
}

func (s *FileService) release(ctx context.Context, stem string, unlock lock.Unlock) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("failed to release stem lock", zap.String("stem", stem), zap.Error(err))
	}
}

// convert runs the pipeline for file while holding its stem lock.
func (s *FileService) convert(ctx context.Context, file *models.ModelFile) (*ConversionRun, error) {
	unlock, err := s.lockStem(ctx, file.Stem)
	if err != nil {
		return &ConversionRun{File: file}, err
	}
	defer s.release(ctx, file.Stem, unlock)
	return s.run(ctx, file)
}

// run executes the pipeline and records the outcome. The caller holds the stem lock.
func (s *FileService) run(ctx context.Context, file *models.ModelFile) (*ConversionRun, error) {
	result, runErr := s.pipeline.Run(ctx, file.Stem)

	file.Stage = string(result.Stage)
	file.ConversionOutput = result.Stdout
	file.ConversionError = ""
	file.ErrorKind = ""
	file.MeshPath = ""
	file.ObjectCount = 0
	if runErr != nil {
		file.ConversionError = runErr.Error()
		file.ErrorKind = string(conversion.KindOf(runErr))
	} else {
		file.MeshPath = result.MeshPath
		file.ObjectCount = result.ObjectCount
		if result.Stderr != "" {
			s.logger.Debug("conversion stderr", zap.String("stem", file.Stem), zap.String("stderr", result.Stderr))
		}
		s.mirrorMesh(ctx, file)
	}

	if err := s.files.Update(context.WithoutCancel(ctx), file); err != nil {
		s.logger.Error("failed to update file record", zap.String("id", file.ID.String()), zap.Error(err))
		if runErr == nil {
			runErr = errors.Wrap(err, "update file record")
		}
	}
	return &ConversionRun{File: file, Result: result}, runErr
}

func (s *FileService) mirrorMesh(ctx context.Context, file *models.ModelFile) {
	key := storage.MirrorKey(file.ID.String(), file.Stem)
	if err := s.mirror.Upload(ctx, key, file.MeshPath); err != nil {
		s.logger.Warn("failed to mirror mesh", zap.String("key", key), zap.Error(err))
		return
	}
	file.MirrorKey = key
}

// parseID parses a record id.
func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.Wrapf(ErrInvalidInput, "invalid id %q", id)
	}
	return parsed, nil
}

// ListFiles returns every registered file.
func (s *FileService) ListFiles(ctx context.Context) ([]models.ModelFile, error) {
	files, err := s.files.List(ctx)
	return files, errors.Wrap(err, "list files")
}

// GetFile returns the file with the given id.
func (s *FileService) GetFile(ctx context.Context, id string) (*models.ModelFile, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.files.Get(ctx, parsed)
}

// Reconvert reruns the pipeline for an existing file from the first stage.
func (s *FileService) Reconvert(ctx context.Context, id string) (*ConversionRun, error) {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.convert(ctx, file)
}

// formats maps download formats to artifact extensions.
var formats = map[string]string{
	"ifc": conversion.ExtIFC,
	"dae": conversion.ExtDAE,
	"obj": conversion.ExtOBJ,
}

// ArtifactPath returns the on-disk path and download name of a file's
// artifact in format ("ifc" when empty).
func (s *FileService) ArtifactPath(ctx context.Context, id, format string) (string, string, error) {
	if format == "" {
		format = "ifc"
	}
	ext, ok := formats[strings.ToLower(format)]
	if !ok {
		return "", "", errors.Wrapf(ErrInvalidInput, "unknown format %q", format)
	}
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return "", "", err
	}
	key := file.Stem + ext
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", "", err
	}
	if !exists {
		return "", "", ErrMissingOnDisk
	}
	path, err := s.store.Path(key)
	return path, key, err
}

// DeleteFile removes a file record, its markers, artifacts and mirror copy.
func (s *FileService) DeleteFile(ctx context.Context, id string) error {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}
	unlock, err := s.lockStem(ctx, file.Stem)
	if err != nil {
		return err
	}
	defer s.release(ctx, file.Stem, unlock)

	if err := s.removeFile(ctx, file); err != nil {
		return err
	}
	s.logger.Info("file deleted", zap.String("id", id), zap.String("stem", file.Stem))
	return nil
}

func (s *FileService) removeFile(ctx context.Context, file *models.ModelFile) error {
	if _, err := s.markers.DeleteByFile(ctx, file.ID); err != nil {
		return errors.Wrap(err, "delete markers")
	}
	if err := s.store.Delete(ctx,
		file.Stem+conversion.ExtIFC,
		file.Stem+conversion.ExtDAE,
		file.Stem+conversion.ExtOBJ,
	); err != nil {
		return errors.Wrap(err, "delete artifacts")
	}
	if file.MirrorKey != "" {
		if err := s.mirror.Remove(ctx, file.MirrorKey); err != nil {
			s.logger.Warn("failed to remove mirrored mesh", zap.String("key", file.MirrorKey), zap.Error(err))
		}
	}
	if err := s.files.Delete(ctx, file.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return errors.Wrap(err, "delete file record")
	}
	return nil
}

// DropAll removes every file and marker. It is an administrative reset.
func (s *FileService) DropAll(ctx context.Context) (int, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list files")
	}
	for i := range files {
		if err := s.removeFile(ctx, &files[i]); err != nil {
			return i, err
		}
	}
	if _, err := s.markers.DeleteAll(ctx); err != nil {
		return len(files), errors.Wrap(err, "delete markers")
	}
	s.logger.Warn("all files dropped", zap.Int("count", len(files)))
	return len(files), nil
}

func (s *FileService) meshOf(ctx context.Context, id string) (*models.ModelFile, error) {
	file, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !file.Converted() {
		return nil, ErrNotConverted
	}
	if _, err := os.Stat(file.MeshPath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissingOnDisk
		}
		return nil, err
	}
	return file, nil
}

// ListObjects returns the tagged objects of a file's mesh.
func (s *FileService) ListObjects(ctx context.Context, id string) ([]objtag.Object, error) {
	file, err := s.meshOf(ctx, id)
	if err != nil {
		return nil, err
	}
	objects, err := objtag.List(file.MeshPath)
	return objects, errors.Wrap(err, "read mesh")
}

// RenameObjects renames tagged objects of a file's mesh. Unknown tags are
// reported, or rejected with conversion.ErrNoMatchingIdentifier in strict mode.
func (s *FileService) RenameObjects(ctx context.Context, id string, updates []objtag.Update) (*objtag.RewriteReport, error) {
	if len(updates) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "no updates given")
	}
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return nil, errors.Wrap(ErrInvalidInput, err.Error())
		}
	}
	file, err := s.meshOf(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockStem(ctx, file.Stem)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, file.Stem, unlock)

	report, err := s.pipeline.ApplyRenames(file.MeshPath, updates, s.renameOpts)
	if err != nil {
		if errors.Is(err, objtag.ErrNoMatchingIdentifier) {
			return report, err
		}
		return nil, errors.Wrap(err, "rewrite mesh")
	}
	s.logger.Info("objects renamed",
		zap.String("id", id),
		zap.Ints("applied", report.Applied),
		zap.Ints("unmatched", report.Unmatched))

	if len(report.Applied) > 0 && file.MirrorKey != "" {
		if err := s.mirror.Upload(ctx, file.MirrorKey, file.MeshPath); err != nil {
			s.logger.Warn("failed to mirror renamed mesh", zap.String("key", file.MirrorKey), zap.Error(err))
		}
	}
	return report, nil
}
