package api

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dutchcoders/go-clamd"
	"github.com/gabriel-vasile/mimetype"
)

// UploadPolicy is the boundary validation applied before a photo becomes a job.
type UploadPolicy struct {
	MaxBytes          int64
	AllowedExtensions []string
	AllowedMIMETypes  []string
	ClamdAddr         string
}

var errMaliciousFile = errors.New("malicious file detected")

// uploadExtension returns the lowercased extension of a client supplied filename, or ""
// when the name is unusable.
func uploadExtension(filename string) string {
	if filename == "" || !utf8.ValidString(filename) || len(filename) > 255 {
		return ""
	}
	if strings.ContainsAny(filename, "\x00") {
		return ""
	}
	return strings.ToLower(filepath.Ext(filename))
}

func (p UploadPolicy) allowsExtension(ext string) bool {
	return ext != "" && slices.Contains(p.AllowedExtensions, ext)
}

// sniffMIME detects the content type from the bytes themselves and checks it against
// the whitelist, honouring mimetype's alias handling.
func (p UploadPolicy) sniffMIME(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	for _, allowed := range p.AllowedMIMETypes {
		if mt.Is(allowed) {
			return mt.String(), true
		}
	}
	return mt.String(), false
}

// scan streams data through clamd when an address is configured.
func (p UploadPolicy) scan(data []byte) error {
	if strings.TrimSpace(p.ClamdAddr) == "" {
		return nil
	}
	abort := make(chan bool)
	defer close(abort)

	results, err := clamd.NewClamd(p.ClamdAddr).ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return fmt.Errorf("scan upload: %w", err)
	}
	infected := false
	for result := range results {
		if result.Status != clamd.RES_OK {
			infected = true
		}
	}
	if infected {
		return errMaliciousFile
	}
	return nil
}
