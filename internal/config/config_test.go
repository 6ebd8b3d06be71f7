package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postgresEnv = []string{
	"DB_HOST=db",
	"DB_USER=ifc",
	"DB_NAME=ifc",
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(postgresEnv)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "/app/uploads", cfg.ArtifactDir)
	assert.Equal(t, "/app/IfcConvert/work", cfg.WorkDir)
	assert.Equal(t, "/app/IfcConvert/IfcConvert", cfg.IfcConvertPath)
	assert.Equal(t, "blender", cfg.BlenderPath)
	assert.Equal(t, 512, cfg.MaxUploadMB)
	assert.Equal(t, 30*time.Minute, cfg.LockTTL)
	assert.False(t, cfg.RenameStrict)
	assert.False(t, cfg.RenamePreserveTags)
	assert.False(t, cfg.MinioEnabled())
	assert.False(t, cfg.RedisEnabled())

	pc := cfg.PipelineConfig()
	assert.Equal(t, cfg.IfcConvertPath, pc.ConverterPath)
	assert.Equal(t, cfg.BlenderPath, pc.ModelerPath)
	assert.NoError(t, pc.Validate())
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(append(postgresEnv,
		"RENAME_STRICT=true",
		"RENAME_PRESERVE_TAGS=1",
		"LOCK_TTL=90s",
		"REDIS_HOST=redis",
		"PUBLIC_URL=https://ifc.example.org/",
		"LOG_LEVEL=debug",
	))
	require.NoError(t, err)

	assert.True(t, cfg.RenameStrict)
	assert.True(t, cfg.RenamePreserveTags)
	assert.Equal(t, 90*time.Second, cfg.LockTTL)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "https://ifc.example.org/api/ifc/files/abc/download", cfg.DownloadURL("abc"))

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
	}{
		{name: "postgres incomplete", environ: []string{"DB_HOST=db"}},
		{name: "unknown driver", environ: append(postgresEnv, "DB_DRIVER=oracle")},
		{name: "partial minio", environ: append(postgresEnv, "MINIO_ENDPOINT=minio:9000")},
		{name: "bad bool", environ: append(postgresEnv, "RENAME_STRICT=maybe")},
		{name: "bad duration", environ: append(postgresEnv, "LOCK_TTL=soon")},
		{name: "bad level", environ: append(postgresEnv, "LOG_LEVEL=loud")},
		{name: "zero upload limit", environ: append(postgresEnv, "MAX_UPLOAD_MB=0")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.environ)
			assert.Error(t, err)
		})
	}
}

func TestParse_Mongo(t *testing.T) {
	cfg, err := Parse([]string{"DB_DRIVER=mongo"})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://mongo:27017", cfg.MongoURI)
	assert.Equal(t, "ifc", cfg.MongoDatabase)
}
