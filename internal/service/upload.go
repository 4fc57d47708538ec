package service

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxUploadSize is the per-file limit for uploaded images
const maxUploadSize = 5 << 20 // 5 MiB

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Upload is an uploaded image file received at the boundary
type Upload struct {
	Filename string
	Data     []byte
}

// checkUpload validates a single file against the type and size constraints
func checkUpload(u Upload) error {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("file %q has an unsupported type; allowed: png, jpg, jpeg, gif", u.Filename)
	}
	if len(u.Data) > maxUploadSize {
		return fmt.Errorf("file %q exceeds the 5 MB size limit", u.Filename)
	}
	return nil
}

// checkUploads validates every file before anything is saved, so a single bad
// file rejects the whole request
func checkUploads(uploads []Upload) error {
	for _, u := range uploads {
		if err := checkUpload(u); err != nil {
			return err
		}
	}
	return nil
}
