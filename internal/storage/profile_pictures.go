package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/spf13/afero"
)

const profileDir = "/profiles"

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

var (
	ErrFileTooLarge        = database.Validation("file too large")
	ErrUnsupportedType     = database.Validation("only JPEG, PNG and GIF images are allowed")
	ErrContentTypeMismatch = database.Validation("file content does not match its content type")
)

// ProfilePictures stores uploaded avatars under profiles/ on fs and maps
// them to URLs below urlPrefix.
type ProfilePictures struct {
	fs        afero.Fs
	maxBytes  int64
	urlPrefix string
}

func NewProfilePictures(fs afero.Fs, maxBytes int64, urlPrefix string) *ProfilePictures {
	return &ProfilePictures{
		fs:        fs,
		maxBytes:  maxBytes,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}
}

// NewOsProfilePictures roots the store at dir on the local disk.
func NewOsProfilePictures(dir string, maxBytes int64, urlPrefix string) *ProfilePictures {
	return NewProfilePictures(afero.NewBasePathFs(afero.NewOsFs(), dir), maxBytes, urlPrefix)
}

// Save validates and writes one picture for userID and returns its public
// URL path. Earlier pictures are left in place.
func (p *ProfilePictures) Save(userID uuid.UUID, declaredType string, r io.Reader) (string, error) {
	declaredType = normalizeContentType(declaredType)
	ext, ok := allowedImageTypes[declaredType]
	if !ok {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return "", ErrFileTooLarge
	}

	if !mimetype.Detect(data).Is(declaredType) {
		return "", ErrContentTypeMismatch
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	name := fmt.Sprintf("%s_%s%s", userID, hex.EncodeToString(suffix), ext)

	if err := p.fs.MkdirAll(profileDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := afero.WriteReader(p.fs, path.Join(profileDir, name), bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return p.urlPrefix + path.Join(profileDir, name), nil
}

// FileSystem exposes stored files for http.FileServer. Directories are
// reported as missing so stored names cannot be enumerated.
func (p *ProfilePictures) FileSystem() http.FileSystem {
	return filesOnly{afero.NewHttpFs(p.fs).Dir("/")}
}

type filesOnly struct {
	http.FileSystem
}

func (fs filesOnly) Open(name string) (http.File, error) {
	f, err := fs.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

func (p *ProfilePictures) URLPrefix() string {
	return p.urlPrefix
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "image/jpg" || ct == "image/pjpeg" {
		return "image/jpeg"
	}
	return ct
}
