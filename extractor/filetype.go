package extractor

import (
	"path/filepath"
	"strings"

	"teraext/internal"
)

// extensionCategories maps lowercase file extensions to display categories.
// Applied only to non-directory entries.
var extensionCategories = map[string]internal.FileCategory{
	"mp4": internal.CategoryVideo, "mkv": internal.CategoryVideo,
	"avi": internal.CategoryVideo, "mov": internal.CategoryVideo,
	"wmv": internal.CategoryVideo, "flv": internal.CategoryVideo,
	"webm": internal.CategoryVideo, "m4v": internal.CategoryVideo,
	"3gp": internal.CategoryVideo, "mpg": internal.CategoryVideo,
	"mpeg": internal.CategoryVideo, "ts": internal.CategoryVideo,

	"jpg": internal.CategoryImage, "jpeg": internal.CategoryImage,
	"png": internal.CategoryImage, "gif": internal.CategoryImage,
	"bmp": internal.CategoryImage, "webp": internal.CategoryImage,
	"svg": internal.CategoryImage, "tiff": internal.CategoryImage,
	"heic": internal.CategoryImage,

	"mp3": internal.CategoryAudio, "wav": internal.CategoryAudio,
	"flac": internal.CategoryAudio, "aac": internal.CategoryAudio,
	"ogg": internal.CategoryAudio, "m4a": internal.CategoryAudio,
	"wma": internal.CategoryAudio, "opus": internal.CategoryAudio,

	"pdf": internal.CategoryDocument, "doc": internal.CategoryDocument,
	"docx": internal.CategoryDocument, "xls": internal.CategoryDocument,
	"xlsx": internal.CategoryDocument, "ppt": internal.CategoryDocument,
	"pptx": internal.CategoryDocument, "txt": internal.CategoryDocument,
	"md": internal.CategoryDocument, "csv": internal.CategoryDocument,
	"epub": internal.CategoryDocument,

	"zip": internal.CategoryArchive, "rar": internal.CategoryArchive,
	"7z": internal.CategoryArchive, "tar": internal.CategoryArchive,
	"gz": internal.CategoryArchive, "bz2": internal.CategoryArchive,
	"xz": internal.CategoryArchive, "iso": internal.CategoryArchive,
}

// ClassifyName maps a filename to its category by extension.
func ClassifyName(name string) internal.FileCategory {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if category, ok := extensionCategories[ext]; ok {
		return category
	}
	return internal.CategoryOther
}
