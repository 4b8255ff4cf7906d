package render

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// PhotoFileName is the file each user's profile photo is stored under.
const PhotoFileName = "profile_photo.jpg"

// MaxPhotoBytes bounds a stored profile photo.
const MaxPhotoBytes = 10 << 20

// PhotoStore keeps at most one profile photo per user under <dir>/<userID>/.
type PhotoStore struct {
	dir string
}

// NewPhotoStore creates a store rooted at dir.
func NewPhotoStore(dir string) *PhotoStore {
	return &PhotoStore{dir: dir}
}

// Path returns where userID's photo lives.
func (p *PhotoStore) Path(userID string) string {
	return filepath.Join(p.dir, sanitizeUserID(userID), PhotoFileName)
}

// Save writes the photo read from src, replacing any previous one.
func (p *PhotoStore) Save(userID string, src io.Reader) (path string, err error) {
	path = p.Path(userID)
	err = os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create photo directory for %s", userID)
		return "", err
	}

	tmp := path + ".part"
	var f *os.File
	f, err = os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		err = errors.Wrap(err, "failed to create photo file")
		return "", err
	}
	n, err := io.Copy(f, io.LimitReader(src, MaxPhotoBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > MaxPhotoBytes {
		err = errors.Errorf("photo exceeds %d bytes", MaxPhotoBytes)
	}
	if err == nil && n == 0 {
		err = errors.New("photo is empty")
	}
	if err != nil {
		_ = os.Remove(tmp)
		err = errors.Wrap(err, "failed to store photo")
		return "", err
	}

	err = os.Rename(tmp, path)
	if err != nil {
		_ = os.Remove(tmp)
		err = errors.Wrap(err, "failed to store photo")
		return "", err
	}
	return path, nil
}

// Remove deletes a stored photo. A missing file is not an error.
func (p *PhotoStore) Remove(path string) (err error) {
	if path == "" {
		return nil
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		err = errors.Wrapf(err, "failed to remove photo: %s", path)
		return err
	}
	_ = os.Remove(filepath.Dir(path))
	return nil
}

// sanitizeUserID maps an id like "whatsapp:+9477..." to a safe directory name.
func sanitizeUserID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
