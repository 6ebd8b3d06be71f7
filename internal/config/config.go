package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ifc-service/internal/conversion"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all configuration values from environment.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`
	// PublicURL prefixes download links embedded in marker payloads.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://mongo:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"ifc"`

	// Conversion settings
	ArtifactDir    string `env:"ARTIFACT_DIR" envDefault:"/app/uploads"`
	WorkDir        string `env:"WORK_DIR" envDefault:"/app/IfcConvert/work"`
	IfcConvertPath string `env:"IFCCONVERT_PATH" envDefault:"/app/IfcConvert/IfcConvert"`
	BlenderPath    string `env:"BLENDER_PATH" envDefault:"blender"`
	MaxUploadMB    int    `env:"MAX_UPLOAD_MB" envDefault:"512"`

	RenameStrict       bool `env:"RENAME_STRICT" envDefault:"false"`
	RenamePreserveTags bool `env:"RENAME_PRESERVE_TAGS" envDefault:"false"`

	RedisHost string        `env:"REDIS_HOST"`
	RedisPort string        `env:"REDIS_PORT" envDefault:"6379"`
	LockTTL   time.Duration `env:"LOCK_TTL" envDefault:"30m"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET"`
	MinioSSL       bool   `env:"MINIO_SSL" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig loads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse(os.Environ())
}

// Parse builds a Config from environ, which has the form of os.Environ.
func Parse(environ []string) (*Config, error) {
	var cfg Config
	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields for the selected backends.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return fmt.Errorf("database configuration is incomplete")
		}
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("mongo configuration is incomplete")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: postgres, mongo)", c.DBDriver)
	}

	minio := []string{c.MinioEndpoint, c.MinioAccessKey, c.MinioSecretKey, c.MinioBucket}
	set := 0
	for _, v := range minio {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(minio) {
		return fmt.Errorf("minio configuration is incomplete")
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// MinioEnabled reports whether tagged meshes are mirrored to object storage.
func (c *Config) MinioEnabled() bool { return c.MinioEndpoint != "" }

// RedisEnabled reports whether stem locks are shared through Redis.
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// PipelineConfig returns the settings the conversion pipeline runs with.
func (c *Config) PipelineConfig() conversion.Config {
	return conversion.Config{
		ConverterPath: c.IfcConvertPath,
		ModelerPath:   c.BlenderPath,
		ArtifactDir:   c.ArtifactDir,
		WorkDir:       c.WorkDir,
	}
}

// DownloadURL returns the public download link for a file record.
func (c *Config) DownloadURL(fileID string) string {
	return fmt.Sprintf("%s/api/ifc/files/%s/download", strings.TrimRight(c.PublicURL, "/"), fileID)
}

// NewLogger builds a JSON zap logger at LOG_LEVEL.
func NewLogger(c *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectMongo opens a MongoDB client and returns the configured database.
func ConnectMongo(ctx context.Context, cfg *Config) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return client, client.Database(cfg.MongoDatabase), nil
}
