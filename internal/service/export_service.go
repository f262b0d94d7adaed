package service

import (
	"errors"
	"strings"

	"github.com/noah-isme/syllabus-dashboard/internal/dto"
	"github.com/noah-isme/syllabus-dashboard/pkg/syllabusapi"
)

// ExportFormats lists the offered formats in display order.
var ExportFormats = []syllabusapi.ExportFormat{syllabusapi.ExportICS, syllabusapi.ExportCSV, syllabusapi.ExportJSON}

// ErrUnsupportedFormat indicates an export format outside ExportFormats.
var ErrUnsupportedFormat = errors.New("export format must be one of ics, csv or json")

// Linker resolves the download location of an export.
type Linker interface {
	ExportURL(format syllabusapi.ExportFormat, syllabusID *uint) (string, error)
}

// ExportService resolves export downloads. Retrieval itself happens in the browser.
type ExportService interface {
	Link(format string, syllabusID *uint) (string, error)
	Links(syllabusID *uint) []dto.ExportLink
}

type exportService struct {
	linker Linker
}

// NewExportService constructs the export service.
func NewExportService(linker Linker) ExportService {
	return &exportService{linker: linker}
}

func (s *exportService) Link(format string, syllabusID *uint) (string, error) {
	link, err := s.linker.ExportURL(syllabusapi.ExportFormat(strings.ToLower(strings.TrimSpace(format))), syllabusID)
	if errors.Is(err, syllabusapi.ErrUnsupportedFormat) {
		return "", ErrUnsupportedFormat
	}
	return link, err
}

func (s *exportService) Links(syllabusID *uint) []dto.ExportLink {
	links := make([]dto.ExportLink, 0, len(ExportFormats))
	for _, format := range ExportFormats {
		link, err := s.linker.ExportURL(format, syllabusID)
		if err != nil {
			continue
		}
		links = append(links, dto.ExportLink{Format: string(format), URL: link})
	}
	return links
}
