package creation

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/hpungsan/muse/internal/errors"
)

// MaxImages is the capacity of the reference image sequence.
const MaxImages = 3

const (
	imageDataPrefix = "data:image/"
	base64Marker    = ";base64,"
)

// Image is a reference photograph encoded as a data URI (data:image/...;base64,...).
type Image string

// Validate checks the data URI shape without decoding the payload.
func (img Image) Validate() error {
	s := string(img)
	if s == "" {
		return errors.NewInvalidImage(-1, "image is empty")
	}
	if !strings.HasPrefix(s, imageDataPrefix) {
		return errors.NewInvalidImage(-1, "not an image data URI")
	}
	i := strings.Index(s, base64Marker)
	if i < 0 {
		return errors.NewInvalidImage(-1, "image data URI is not base64 encoded")
	}
	if i == len(imageDataPrefix) {
		return errors.NewInvalidImage(-1, "image data URI has no subtype")
	}
	if len(s) == i+len(base64Marker) {
		return errors.NewInvalidImage(-1, "image data URI has no payload")
	}
	return nil
}

// MIMEType returns the declared media type, e.g. "image/png". Empty if malformed.
func (img Image) MIMEType() string {
	s := string(img)
	if !strings.HasPrefix(s, "data:") {
		return ""
	}
	i := strings.Index(s, base64Marker)
	if i < 0 {
		return ""
	}
	return s[len("data:"):i]
}

// Decode returns the raw image bytes.
func (img Image) Decode() ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	s := string(img)
	payload := s[strings.Index(s, base64Marker)+len(base64Marker):]
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.NewInvalidImage(-1, fmt.Sprintf("invalid base64 payload: %v", err))
	}
	return data, nil
}

// ImageFromBytes sniffs raw upload bytes and encodes them as a data URI.
// Content that is not an image, or larger than maxBytes (when > 0), is rejected.
func ImageFromBytes(data []byte, maxBytes int64) (Image, error) {
	if len(data) == 0 {
		return "", errors.NewInvalidImage(-1, "image is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", ErrImageTooLarge(maxBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", errors.NewInvalidImage(-1, fmt.Sprintf("unsupported file type %s", mt.String()))
	}
	mime := strings.SplitN(mt.String(), ";", 2)[0]
	return Image("data:" + mime + base64Marker + base64.StdEncoding.EncodeToString(data)), nil
}

// ErrImageTooLarge is the INVALID_IMAGE error for an upload over maxBytes.
// Whole mebibyte limits read as "5MB"; anything else is humanized.
func ErrImageTooLarge(maxBytes int64) error {
	limit := humanize.IBytes(uint64(maxBytes))
	if maxBytes > 0 && maxBytes%(1024*1024) == 0 {
		limit = fmt.Sprintf("%dMB", maxBytes/(1024*1024))
	}
	return errors.NewInvalidImage(-1, fmt.Sprintf("File is too large. Maximum size is %s.", limit))
}

// Images is the ordered reference sequence. Position 0 is the main reference;
// later positions are auxiliary hints.
type Images []Image

// Validate checks the count invariant and every entry, reporting the first bad index.
func (imgs Images) Validate() error {
	if len(imgs) > MaxImages {
		return errors.NewOverCapacity(MaxImages)
	}
	for i, img := range imgs {
		if err := img.Validate(); err != nil {
			return errors.NewInvalidImage(i, err.(*errors.MuseError).Message)
		}
	}
	return nil
}

// Main returns the main reference, or "" if the sequence is empty.
func (imgs Images) Main() Image {
	if len(imgs) == 0 {
		return ""
	}
	return imgs[0]
}

// Auxiliary returns a copy of the references after the main one.
func (imgs Images) Auxiliary() []Image {
	if len(imgs) <= 1 {
		return nil
	}
	return append([]Image(nil), imgs[1:]...)
}

// Clone returns an independent copy.
func (imgs Images) Clone() Images {
	if imgs == nil {
		return nil
	}
	return append(Images(nil), imgs...)
}

// Add returns a new sequence with img appended. A 4th image is rejected
// with OVER_CAPACITY and the receiver is never modified.
func (imgs Images) Add(img Image) (Images, error) {
	if len(imgs) >= MaxImages {
		return imgs, errors.NewOverCapacity(MaxImages)
	}
	if err := img.Validate(); err != nil {
		return imgs, errors.NewInvalidImage(len(imgs), err.(*errors.MuseError).Message)
	}
	out := make(Images, 0, len(imgs)+1)
	out = append(out, imgs...)
	return append(out, img), nil
}

// Remove returns a new sequence without index i; later images shift down
// and keep their relative order.
func (imgs Images) Remove(i int) (Images, error) {
	if i < 0 || i >= len(imgs) {
		return imgs, errors.NewInvalidRequest(fmt.Sprintf("image index %d out of range [0,%d)", i, len(imgs)))
	}
	out := make(Images, 0, len(imgs)-1)
	out = append(out, imgs[:i]...)
	return append(out, imgs[i+1:]...), nil
}
