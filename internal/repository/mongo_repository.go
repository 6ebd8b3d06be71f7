package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"ifc-service/internal/models"
)

const (
	filesCollection   = "files"
	markersCollection = "markers"
)

type fileDocument struct {
	ID               string    `bson:"_id"`
	Filename         string    `bson:"filename"`
	Stem             string    `bson:"stem"`
	Path             string    `bson:"path"`
	Size             int64     `bson:"size"`
	UploadedAt       time.Time `bson:"uploaded_at"`
	Stage            string    `bson:"stage"`
	ConversionOutput string    `bson:"conversion_output,omitempty"`
	ConversionError  string    `bson:"conversion_error,omitempty"`
	ErrorKind        string    `bson:"error_kind,omitempty"`
	MeshPath         string    `bson:"mesh_path,omitempty"`
	ObjectCount      int       `bson:"object_count"`
	MirrorKey        string    `bson:"mirror_key,omitempty"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toFileDocument(f *models.ModelFile) fileDocument {
	return fileDocument{
		ID:               f.ID.String(),
		Filename:         f.Filename,
		Stem:             f.Stem,
		Path:             f.Path,
		Size:             f.Size,
		UploadedAt:       f.UploadedAt,
		Stage:            f.Stage,
		ConversionOutput: f.ConversionOutput,
		ConversionError:  f.ConversionError,
		ErrorKind:        f.ErrorKind,
		MeshPath:         f.MeshPath,
		ObjectCount:      f.ObjectCount,
		MirrorKey:        f.MirrorKey,
		UpdatedAt:        f.UpdatedAt,
	}
}

func (d fileDocument) model() (models.ModelFile, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.ModelFile{}, err
	}
	return models.ModelFile{
		ID:               id,
		Filename:         d.Filename,
		Stem:             d.Stem,
		Path:             d.Path,
		Size:             d.Size,
		UploadedAt:       d.UploadedAt,
		Stage:            d.Stage,
		ConversionOutput: d.ConversionOutput,
		ConversionError:  d.ConversionError,
		ErrorKind:        d.ErrorKind,
		MeshPath:         d.MeshPath,
		ObjectCount:      d.ObjectCount,
		MirrorKey:        d.MirrorKey,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

type markerDocument struct {
	ID            string    `bson:"_id"`
	FileID        string    `bson:"file_id"`
	Building      string    `bson:"building"`
	Room          string    `bson:"room"`
	X             float64   `bson:"x"`
	Y             float64   `bson:"y"`
	Z             float64   `bson:"z"`
	YRot          float64   `bson:"yrot"`
	FileReference string    `bson:"file_reference"`
	Payload       string    `bson:"payload"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toMarkerDocument(m *models.Marker) markerDocument {
	return markerDocument{
		ID:            m.ID.String(),
		FileID:        m.FileID.String(),
		Building:      m.Building,
		Room:          m.Room,
		X:             m.X,
		Y:             m.Y,
		Z:             m.Z,
		YRot:          m.YRot,
		FileReference: m.FileReference,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
	}
}

func (d markerDocument) model() (models.Marker, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.Marker{}, err
	}
	fileID, err := uuid.Parse(d.FileID)
	if err != nil {
		return models.Marker{}, err
	}
	return models.Marker{
		ID:            id,
		FileID:        fileID,
		Building:      d.Building,
		Room:          d.Room,
		X:             d.X,
		Y:             d.Y,
		Z:             d.Z,
		YRot:          d.YRot,
		FileReference: d.FileReference,
		Payload:       d.Payload,
		CreatedAt:     d.CreatedAt,
	}, nil
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func byID(id uuid.UUID) bson.D {
	return bson.D{{Key: "_id", Value: id.String()}}
}

// EnsureMongoIndexes creates the unique and lookup indexes the mongo repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(filesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "filename", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "stem", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(markersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "file_id", Value: 1}},
	})
	return err
}

// collection is the part of *mongo.Collection the repositories use.
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error)
}

// MongoFileRepository stores ModelFiles in a MongoDB collection.
type MongoFileRepository struct {
	coll collection
}

// NewMongoFileRepository creates a MongoFileRepository on db.
func NewMongoFileRepository(db *mongo.Database) *MongoFileRepository {
	return &MongoFileRepository{coll: db.Collection(filesCollection)}
}

func (r *MongoFileRepository) Create(ctx context.Context, file *models.ModelFile) error {
	if file.UpdatedAt.IsZero() {
		file.UpdatedAt = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, toFileDocument(file))
	return translateMongo(err)
}

func (r *MongoFileRepository) findOne(ctx context.Context, filter bson.D) (*models.ModelFile, error) {
	var doc fileDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	file, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *MongoFileRepository) Get(ctx context.Context, id uuid.UUID) (*models.ModelFile, error) {
	return r.findOne(ctx, byID(id))
}

func (r *MongoFileRepository) GetByFilename(ctx context.Context, filename string) (*models.ModelFile, error) {
	return r.findOne(ctx, bson.D{{Key: "filename", Value: filename}})
}

func (r *MongoFileRepository) List(ctx context.Context) ([]models.ModelFile, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []fileDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	files := make([]models.ModelFile, 0, len(docs))
	for _, doc := range docs {
		file, err := doc.model()
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func (r *MongoFileRepository) Update(ctx context.Context, file *models.ModelFile) error {
	file.UpdatedAt = time.Now()
	res, err := r.coll.ReplaceOne(ctx, byID(file.ID), toFileDocument(file))
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoFileRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// MongoMarkerRepository stores Markers in a MongoDB collection.
type MongoMarkerRepository struct {
	coll collection
}

// NewMongoMarkerRepository creates a MongoMarkerRepository on db.
func NewMongoMarkerRepository(db *mongo.Database) *MongoMarkerRepository {
	return &MongoMarkerRepository{coll: db.Collection(markersCollection)}
}

func (r *MongoMarkerRepository) Create(ctx context.Context, marker *models.Marker) error {
	if marker.CreatedAt.IsZero() {
		marker.CreatedAt = time.Now()
	}
	_, err := r.coll.InsertOne(ctx, toMarkerDocument(marker))
	return translateMongo(err)
}

func (r *MongoMarkerRepository) Get(ctx context.Context, id uuid.UUID) (*models.Marker, error) {
	var doc markerDocument
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		return nil, translateMongo(err)
	}
	marker, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &marker, nil
}

func (r *MongoMarkerRepository) find(ctx context.Context, filter bson.D) ([]models.Marker, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []markerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	markers := make([]models.Marker, 0, len(docs))
	for _, doc := range docs {
		marker, err := doc.model()
		if err != nil {
			return nil, err
		}
		markers = append(markers, marker)
	}
	return markers, nil
}

func (r *MongoMarkerRepository) List(ctx context.Context) ([]models.Marker, error) {
	return r.find(ctx, bson.D{})
}

func (r *MongoMarkerRepository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]models.Marker, error) {
	return r.find(ctx, bson.D{{Key: "file_id", Value: fileID.String()}})
}

func (r *MongoMarkerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoMarkerRepository) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "file_id", Value: fileID.String()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoMarkerRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
