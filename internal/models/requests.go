package models

import "time"

// MarkerRequest is the body of a marker creation request.
type MarkerRequest struct {
	FileID   string  `json:"file_id"`
	Building string  `json:"building"`
	Room     string  `json:"room"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	YRot     float64 `json:"yrot"`
}

// RenameRequest is one entry of an object rename request.
type RenameRequest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RenameResponse reports which tags a rename request touched.
type RenameResponse struct {
	Applied   []int `json:"applied"`
	Unmatched []int `json:"unmatched"`
}

// FileSummary is the public view of a ModelFile.
type FileSummary struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Stage       string    `json:"stage"`
	ObjectCount int       `json:"object_count"`
	ErrorKind   string    `json:"error_kind,omitempty"`
}

// Summary returns the public view of f.
func (f *ModelFile) Summary() FileSummary {
	return FileSummary{
		ID:          f.ID.String(),
		Filename:    f.Filename,
		UploadedAt:  f.UploadedAt,
		Stage:       f.Stage,
		ObjectCount: f.ObjectCount,
		ErrorKind:   f.ErrorKind,
	}
}
