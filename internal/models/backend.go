package models

// UploadResult is the outcome of a resume upload. Callers must check Error before trusting Filename.
type UploadResult struct {
	Filename string
	Error    string
}

// Failed reports whether the upload was rejected or never reached the backend.
func (u UploadResult) Failed() bool {
	return u.Error != ""
}
