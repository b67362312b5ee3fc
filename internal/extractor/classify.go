package extractor

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Category is one of the classification buckets from spec §4.4 Step 5 /
// §6. It is data the extractor attaches; turning it into a rendered
// preview is a consumer's job.
type Category string

const (
	CategoryText         Category = "text"
	CategoryCode         Category = "code"
	CategoryImage        Category = "image"
	CategoryVideo        Category = "video"
	CategoryAudio        Category = "audio"
	CategoryPDF          Category = "pdf"
	CategoryDocument     Category = "document"
	CategorySpreadsheet  Category = "spreadsheet"
	CategoryPresentation Category = "presentation"
	CategoryFont         Category = "font"
	CategoryUnsupported  Category = "unsupported"
)

// extensionTable maps a lowercased file extension to its category, the
// same "classification table is data, not logic" shape the teacher uses
// for its RAR/7z detection regexes, generalized to the broader category
// set this engine needs.
var extensionTable = map[string]Category{
	".txt": CategoryText, ".md": CategoryText, ".log": CategoryText,

	".go": CategoryCode, ".js": CategoryCode, ".ts": CategoryCode, ".py": CategoryCode,
	".java": CategoryCode, ".c": CategoryCode, ".h": CategoryCode, ".cpp": CategoryCode,
	".rs": CategoryCode, ".rb": CategoryCode, ".php": CategoryCode, ".json": CategoryCode,
	".yaml": CategoryCode, ".yml": CategoryCode, ".xml": CategoryCode, ".html": CategoryCode,
	".css": CategoryCode, ".sh": CategoryCode,

	".png": CategoryImage, ".jpg": CategoryImage, ".jpeg": CategoryImage, ".gif": CategoryImage,
	".svg": CategoryImage, ".webp": CategoryImage, ".bmp": CategoryImage, ".ico": CategoryImage,
	".avif": CategoryImage,

	".mp4": CategoryVideo, ".webm": CategoryVideo, ".mov": CategoryVideo, ".avi": CategoryVideo,
	".mkv": CategoryVideo, ".flv": CategoryVideo, ".wmv": CategoryVideo, ".m4v": CategoryVideo,
	".3gp": CategoryVideo, ".3g2": CategoryVideo, ".mpg": CategoryVideo, ".mpeg": CategoryVideo,
	".ogg": CategoryVideo,

	".mp3": CategoryAudio, ".wav": CategoryAudio, ".flac": CategoryAudio, ".aac": CategoryAudio,
	".m4a": CategoryAudio, ".opus": CategoryAudio, ".wma": CategoryAudio, ".aiff": CategoryAudio,
	".aif": CategoryAudio, ".mid": CategoryAudio, ".midi": CategoryAudio,

	".pdf": CategoryPDF,

	".docx": CategoryDocument, ".doc": CategoryDocument, ".odt": CategoryDocument,
	".rtf": CategoryDocument, ".pages": CategoryDocument,

	".xlsx": CategorySpreadsheet, ".xls": CategorySpreadsheet, ".ods": CategorySpreadsheet,
	".csv": CategorySpreadsheet, ".tsv": CategorySpreadsheet, ".numbers": CategorySpreadsheet,

	".pptx": CategoryPresentation, ".ppt": CategoryPresentation, ".odp": CategoryPresentation,
	".key": CategoryPresentation,

	".woff": CategoryFont, ".woff2": CategoryFont, ".ttf": CategoryFont, ".otf": CategoryFont,
	".eot": CategoryFont,
}

// Classify maps filename's extension to a Category. The classification is
// data-driven, not content-sniffed, matching spec §4.4 Step 5.
func Classify(filename string) Category {
	ext := strings.ToLower(filepath.Ext(filename))
	if cat, ok := extensionTable[ext]; ok {
		return cat
	}
	return CategoryUnsupported
}

// SniffMIME falls back to content sniffing when an entry's extension is
// absent or ambiguous, grounded in the other example repos' use of
// gabriel-vasile/mimetype for exactly this purpose.
func SniffMIME(data []byte) string {
	return mimetype.Detect(data).String()
}
