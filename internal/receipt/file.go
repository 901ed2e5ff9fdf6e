// Package receipt implements receipt ingestion: reading an image file,
// producing a preview, encoding it for the scan endpoint and turning the
// extracted data into an expense draft.
package receipt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"expensetracker/internal/core"
)

// DefaultFormat is sent when the file name carries no extension.
const DefaultFormat = "jpeg"

// AcceptedExtensions lists the image types the scanner accepts.
var AcceptedExtensions = []string{"jpeg", "jpg", "png", "gif", "bmp"}

var (
	ErrUnsupportedFile = errors.New("unsupported receipt file")
	ErrEmptyFile       = errors.New("empty receipt file")
)

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
}

// File is a single selected receipt image.
type File struct {
	Name string
	Data []byte
}

// LoadFile reads a receipt image from disk.
func LoadFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat receipt: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedFile, path)
	}
	if ext := extension(path); ext != "" {
		if err := checkExtension(path, ext); err != nil {
			return File{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read receipt: %w", err)
	}
	return NewFile(filepath.Base(path), data)
}

// NewFile wraps already loaded image bytes. A name without an extension is
// accepted when the content sniffs as one of the accepted image types.
func NewFile(name string, data []byte) (File, error) {
	ext := extension(name)
	if ext != "" {
		if err := checkExtension(name, ext); err != nil {
			return File{}, err
		}
	}
	if len(data) == 0 {
		return File{}, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if ext == "" && sniffFormat(data) == "" {
		return File{}, fmt.Errorf("%w: %q is not a recognised image (accepted: %s)",
			ErrUnsupportedFile, name, strings.Join(AcceptedExtensions, ", "))
	}
	return File{Name: name, Data: data}, nil
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func checkExtension(name, ext string) error {
	if _, ok := mimeTypes[ext]; !ok {
		return fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFile, name, strings.Join(AcceptedExtensions, ", "))
	}
	return nil
}

// sniffFormat maps the detected content type of data to a format token, or
// returns "" when it is not an accepted image.
func sniffFormat(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	}
	return ""
}

// DetectFormat returns the text after the last dot of name, as written, or
// DefaultFormat when there is none.
func DetectFormat(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return DefaultFormat
	}
	return name[i+1:]
}

// Format is the image format token sent with the scan request. Names
// without an extension fall back to the sniffed content type.
func (f File) Format() string {
	if extension(f.Name) == "" {
		if format := sniffFormat(f.Data); format != "" {
			return format
		}
	}
	return DetectFormat(f.Name)
}

// MIMEType maps the file extension to its image media type.
func (f File) MIMEType() string {
	if mt, ok := mimeTypes[strings.ToLower(f.Format())]; ok {
		return mt
	}
	return "image/jpeg"
}

// DataURL renders the file as "data:<mime>;base64,<payload>", the same
// representation used for display.
func (f File) DataURL() string {
	return "data:" + f.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// Image builds the scan request payload: the base64 body with any data URL
// prefix stripped, plus the detected format.
func (f File) Image() core.ReceiptImage {
	return core.ReceiptImage{
		ImageBase64: StripDataURLPrefix(f.DataURL()),
		ImageFormat: f.Format(),
	}
}

// StripDataURLPrefix drops everything up to and including the first comma
// of a data URL. Plain base64 input is returned unchanged.
func StripDataURLPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}

// DecodeImage reverses Image, returning the raw file bytes.
func DecodeImage(img core.ReceiptImage) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(StripDataURLPrefix(img.ImageBase64))
	if err != nil {
		return nil, fmt.Errorf("decode receipt image: %w", err)
	}
	return data, nil
}
