package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/syllabus-dashboard/internal/models"
)

// DefaultMaxUploadBytes is the 10 MiB upload ceiling.
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

// allowedTypes maps each accepted extension to the content types it may sniff as.
var allowedTypes = map[string][]string{
	".pdf":  {"application/pdf"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".txt":  {"text/plain"},
}

// AcceptedExtensions lists the extensions offered to the user.
var AcceptedExtensions = []string{".pdf", ".docx", ".doc", ".txt"}

// ValidateFiles applies the client-side checks to a submission: exactly one file, an accepted
// type, and a size within maxBytes. A batch of several files is rejected as a whole.
func ValidateFiles(files []models.UploadFile, maxBytes int64) (models.UploadFile, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	switch {
	case len(files) == 0:
		return models.UploadFile{}, &ValidationError{Reason: ReasonMissing, Message: "file is required"}
	case len(files) > 1:
		return models.UploadFile{}, &ValidationError{
			Reason:  ReasonCount,
			Message: fmt.Sprintf("only one file can be uploaded at a time, got %d", len(files)),
		}
	}

	file := files[0]
	ext := strings.ToLower(filepath.Ext(file.Name))
	expected, ok := allowedTypes[ext]
	if !ok {
		return models.UploadFile{}, &ValidationError{
			Reason:  ReasonType,
			Message: fmt.Sprintf("file type %q not supported, use PDF, Word (.docx, .doc) or text", ext),
		}
	}

	if file.EffectiveSize() > maxBytes {
		return models.UploadFile{}, &ValidationError{
			Reason:  ReasonSize,
			Message: fmt.Sprintf("file exceeds the %d MB limit", maxBytes/(1024*1024)),
		}
	}

	if len(file.Data) > 0 && !contentMatches(file.Data, expected) {
		return models.UploadFile{}, &ValidationError{
			Reason:  ReasonType,
			Message: fmt.Sprintf("file content does not match its %s extension", ext),
		}
	}

	return file, nil
}

func contentMatches(data []byte, expected []string) bool {
	for detected := mimetype.Detect(data); detected != nil; detected = detected.Parent() {
		for _, candidate := range expected {
			if detected.Is(candidate) {
				return true
			}
		}
	}
	return false
}
