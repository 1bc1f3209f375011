package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/starford/vizbase/internal/capture"
)

var errTooLarge = errors.New("image too large")

// readImage returns the PNG carried by r, either as the raw request body or
// as the multipart field "file".
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, capture.MaxImageSize+1<<20)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(capture.MaxImageSize); err != nil {
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing 'file' field in multipart form")
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(io.LimitReader(src, capture.MaxImageSize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errTooLarge
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > capture.MaxImageSize {
		return nil, errTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return data, nil
}
