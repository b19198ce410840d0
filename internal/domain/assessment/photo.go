package assessment

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxPhotos is the number of photos accepted per check
const MaxPhotos = 5

// Photo is a decoded data URI
type Photo struct {
	MIMEType string
	Data     []byte
}

// DataURI re-encodes the photo as data:<mime>;base64,<data>
func (p Photo) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64()
}

// Base64 returns the standard base64 payload
func (p Photo) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// ParsePhoto decodes a base64 image data URI. maxBytes <= 0 disables the
// size check.
func ParsePhoto(uri string, maxBytes int) (Photo, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return Photo{}, ErrMalformedDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Photo{}, ErrMalformedDataURI
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mimeType == "" {
		return Photo{}, ErrMalformedDataURI
	}
	mimeType = strings.ToLower(mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		return Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	if len(data) == 0 {
		return Photo{}, ErrMalformedDataURI
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return Photo{}, ErrPhotoTooLarge
	}

	return Photo{MIMEType: mimeType, Data: data}, nil
}

// ParsePhotos decodes up to MaxPhotos data URIs
func ParsePhotos(uris []string, maxBytes int) ([]Photo, error) {
	if len(uris) > MaxPhotos {
		return nil, ErrTooManyPhotos
	}
	photos := make([]Photo, 0, len(uris))
	for i, uri := range uris {
		photo, err := ParsePhoto(uri, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("photo %d: %w", i+1, err)
		}
		photos = append(photos, photo)
	}
	return photos, nil
}
