// Package media stores uploaded images under the uploads directory.
package media

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// PublicPrefix is the URL prefix under which stored files are served.
const PublicPrefix = "/uploads/"

var (
	ErrUnsupportedImage = xerrors.Message("Unsupported image format")
	ErrImageTooLarge    = xerrors.Message("Image is too large")
)

type Store struct {
	dir      string
	maxWidth int
	maxBytes int64
}

func NewStore(dir string, maxWidth int, maxBytes int64) *Store {
	return &Store{dir: dir, maxWidth: maxWidth, maxBytes: maxBytes}
}

func (s *Store) Dir() string {
	return s.dir
}

// SaveFile stores a multipart upload and returns its public path.
func (s *Store) SaveFile(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", xerrors.New(err)
	}
	defer f.Close()
	return s.Save(f, fh.Filename)
}

// Save decodes an image, fixes its EXIF orientation, shrinks it to the
// configured width and writes it to <dir>/<uuid>/<name>.
func (s *Store) Save(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", xerrors.New(err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", xerrors.Newf("%w: more than %d bytes", ErrImageTooLarge, s.maxBytes)
	}

	format := detectFormat(data)
	if format == "" {
		return "", xerrors.New(ErrUnsupportedImage)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", xerrors.Newf("%w: %s", ErrUnsupportedImage, err.Error())
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	encoded, ext, err := encodeImage(img, format)
	if err != nil {
		return "", xerrors.New(err)
	}

	id := uuid.NewString()
	name := safeName(filename, ext)
	if err := os.MkdirAll(filepath.Join(s.dir, id), 0o755); err != nil {
		return "", xerrors.New(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, id, name), encoded, 0o644); err != nil {
		return "", xerrors.New(err)
	}

	return PublicPrefix + id + "/" + name, nil
}

// Remove deletes a stored file given its public path. Paths outside the
// uploads prefix and already-missing files are ignored.
func (s *Store) Remove(publicPath string) error {
	local, ok := s.LocalPath(publicPath)
	if !ok {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(local)); err != nil && !os.IsNotExist(err) {
		return xerrors.New(err)
	}
	return nil
}

// LocalPath maps a public /uploads/<id>/<name> path to the file on disk.
func (s *Store) LocalPath(publicPath string) (string, bool) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(publicPath, PublicPrefix))
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || uuid.Validate(parts[0]) != nil || parts[1] == ".." {
		return "", false
	}
	return filepath.Join(s.dir, parts[0], parts[1]), true
}

func safeName(filename, ext string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "image"
	}
	return base + ext
}

func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func encodeImage(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		err := png.Encode(&buf, img)
		return buf.Bytes(), ".png", err
	case "gif":
		err := gif.Encode(&buf, img, nil)
		return buf.Bytes(), ".gif", err
	default:
		// webp has no pure Go encoder
		err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
		return buf.Bytes(), ".jpg", err
	}
}

func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
