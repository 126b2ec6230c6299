// Package pdfdoc decodes and rasterizes uploaded PDF documents.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrPasswordProtected indicates the document is encrypted and cannot be processed.
	ErrPasswordProtected = errors.New("document is password protected")

	// ErrMalformed indicates the bytes are not a decodable PDF.
	ErrMalformed = errors.New("document is malformed")
)

// TooLargeError indicates the encoded upload exceeds the byte ceiling.
type TooLargeError struct {
	Size int64
	Max  int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("document is %d bytes, maximum is %d", e.Size, e.Max)
}

// TooManyPagesError indicates the document exceeds the page-count ceiling.
type TooManyPagesError struct {
	Count int
	Max   int
}

func (e *TooManyPagesError) Error() string {
	return fmt.Sprintf("document has %d pages, maximum is %d", e.Count, e.Max)
}

// Limits bounds what Inspect accepts. Zero values disable the corresponding check.
type Limits struct {
	MaxBytes int64
	MaxPages int
}

// Info describes an accepted document.
type Info struct {
	PageCount int
}

// Inspect validates raw PDF bytes and returns the page count.
// The byte ceiling is enforced before decoding, the page ceiling after
// counting. Side-effect free.
func Inspect(data []byte, limits Limits) (Info, error) {
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return Info{}, &TooLargeError{Size: int64(len(data)), Max: limits.MaxBytes}
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, classifyDecodeError(err)
	}

	if limits.MaxPages > 0 && count > limits.MaxPages {
		return Info{}, &TooManyPagesError{Count: count, Max: limits.MaxPages}
	}

	return Info{PageCount: count}, nil
}

// classifyDecodeError maps pdfcpu failures onto the typed inspection errors.
// pdfcpu does not export sentinel errors for these cases, so classification
// is by message.
func classifyDecodeError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return fmt.Errorf("%w: %s", ErrPasswordProtected, err)
	}
	return fmt.Errorf("%w: %s", ErrMalformed, err)
}
