package filecheck

import "github.com/doc2md/backend/internal/models"

// DefaultMaxSecondarySize is the secondary-service size ceiling (50 MiB).
const DefaultMaxSecondarySize int64 = 50 << 20

// AllowList is the set of accepted MIME types and extensions for a service.
type AllowList struct {
	MimeTypes  []string `json:"mimeTypes"`
	Extensions []string `json:"extensions"`
	// MaxSize is the exclusive upper bound in bytes; zero means unlimited.
	MaxSize int64 `json:"maxSize,omitempty"`
}

var primaryAllowList = AllowList{
	MimeTypes: []string{
		"application/pdf",
		"image/jpeg",
		"image/png",
		"image/webp",
		"image/svg+xml",
		"text/html",
		"application/xml",
		"text/xml",
		"text/csv",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel.sheet.macroenabled.12",
		"application/vnd.ms-excel.sheet.binary.macroenabled.12",
		"application/vnd.ms-excel",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.apple.numbers",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text",
	},
	Extensions: []string{
		".pdf", ".jpeg", ".jpg", ".png", ".webp", ".svg",
		".html", ".htm", ".xml", ".csv",
		".xlsx", ".xlsm", ".xlsb", ".xls", ".ods", ".numbers",
		".docx", ".odt",
	},
}

var secondaryAllowList = AllowList{
	MimeTypes: []string{
		"application/pdf",
		"image/png",
		"image/jpeg",
		"image/avif",
		"image/webp",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	},
	Extensions: []string{".pdf", ".png", ".jpg", ".jpeg", ".avif", ".webp", ".docx", ".pptx"},
	MaxSize:    DefaultMaxSecondarySize,
}

// AllowListFor returns a copy of the allow-list for service.
func AllowListFor(service models.ServiceSelection) AllowList {
	var src AllowList
	switch service {
	case models.ServiceCloudflare:
		src = primaryAllowList
	case models.ServiceMistral:
		src = secondaryAllowList
	default:
		return AllowList{}
	}
	return AllowList{
		MimeTypes:  append([]string(nil), src.MimeTypes...),
		Extensions: append([]string(nil), src.Extensions...),
		MaxSize:    src.MaxSize,
	}
}
