package attachments

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "portal-backend/internal/errors"
)

// MaxAttachmentSize caps uploads at 50 MiB. Exactly 50 MiB is accepted.
const MaxAttachmentSize = 50 << 20

// Documents, text, images and archives only.
var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".ods": true, ".odp": true,
	".rtf": true,
	".txt": true, ".md": true, ".csv": true, ".json": true, ".xml": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".svg": true, ".webp": true,
	".zip": true, ".tar": true, ".gz": true, ".7z": true,
}

var executableExtensions = map[string]bool{
	".exe": true, ".dll": true, ".bat": true, ".cmd": true, ".sh": true,
	".ps1": true, ".msi": true, ".com": true, ".scr": true, ".vbs": true,
	".js": true, ".jar": true, ".app": true, ".deb": true, ".rpm": true,
	".bin": true, ".run": true,
}

var executableMIMETypes = map[string]bool{
	"application/x-msdownload":      true,
	"application/x-sh":              true,
	"application/x-executable":      true,
	"application/x-dosexec":         true,
	"application/x-mach-binary":     true,
	"application/x-elf":             true,
	"application/vnd.microsoft.portable-executable": true,
	"text/x-shellscript":            true,
}

const shellMetachars = "<>:\"|?*&;$`(){}[]~#%^!'"

// SanitizeFilename reduces an untrusted upload name to a safe basename:
// path separators and traversal collapse to the final component, control
// characters and shell metacharacters are dropped, leading dots stripped,
// length capped at 255. An empty result becomes "upload".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = name[strings.LastIndex(name, "/")+1:]
	name = strings.ReplaceAll(name, "..", "")

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if strings.ContainsRune(shellMetachars, r) {
			continue
		}
		b.WriteRune(r)
	}
	name = strings.TrimLeft(b.String(), ".")

	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 32 {
			ext = ""
		}
		name = name[:255-len(ext)] + ext
	}
	if name == "" {
		return "upload"
	}
	return name
}

// ValidateUpload checks size, extension allow-list and executable rejection
// for a sanitized filename.
func ValidateUpload(filename, contentType string, size int64) error {
	if size > MaxAttachmentSize {
		return apperrors.Validation(fmt.Sprintf("file exceeds the %d MiB limit", MaxAttachmentSize>>20))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if executableExtensions[ext] {
		return apperrors.Validation("executable files are not allowed")
	}

	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if executableMIMETypes[mime] {
		return apperrors.Validation("executable files are not allowed")
	}

	if !allowedExtensions[ext] {
		return apperrors.Validation(fmt.Sprintf("file type %q is not allowed", ext))
	}
	return nil
}
