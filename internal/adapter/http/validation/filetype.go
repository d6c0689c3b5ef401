// Package validation checks uploaded videos before they reach the job queue.
package validation

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrDisallowedFileType is returned when an upload is not a supported video.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedExtensions are the containers the upscaler accepts.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

var allowedMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-matroska": true,
	"video/x-msvideo":  true,
	"video/avi":        true,
}

const magicBytesBufferSize = 512

// AllowedExtension reports whether name carries a supported video extension.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateMagicBytes sniffs the first 512 bytes of reader and rewinds it.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mime = detectVideoMagicBytes(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	return mime, allowedMIMETypes[mime], nil
}

// detectVideoMagicBytes recognizes the containers http.DetectContentType
// misses or reports generically.
func detectVideoMagicBytes(buf []byte) string {
	if len(buf) < 12 {
		return ""
	}

	// EBML header; the doctype decides between WebM and Matroska.
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		if strings.Contains(string(buf), "matroska") {
			return "video/x-matroska"
		}
		return "video/webm"
	}

	if string(buf[0:4]) == "RIFF" && string(buf[8:12]) == "AVI " {
		return "video/x-msvideo"
	}

	// ISO base media: [size]["ftyp"][brand]
	if string(buf[4:8]) == "ftyp" {
		if string(buf[8:12]) == "qt  " {
			return "video/quicktime"
		}
		return "video/mp4"
	}

	// Older QuickTime files start with a moov, mdat or wide atom.
	switch string(buf[4:8]) {
	case "moov", "mdat", "wide", "free":
		return "video/quicktime"
	}

	return ""
}
