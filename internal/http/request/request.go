// Package request разбирает тело запроса на создание или изменение подписки.
// Поддерживаются JSON и multipart/form-data с необязательным файлом счёта.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// InvoiceField имя поля multipart-формы с файлом счёта.
const InvoiceField = "invoice"

// ErrDecode тело запроса не удалось разобрать.
var ErrDecode = errors.New("invalid request body")

// Body разобранное тело запроса.
type Body struct {
	// Upload файл счёта, nil если файл не передан.
	Upload *models.Upload
	file   multipart.File
	form   *multipart.Form
}

// Close освобождает файл и временные данные формы.
func (b *Body) Close() {
	if b.file != nil {
		_ = b.file.Close()
	}
	if b.form != nil {
		_ = b.form.RemoveAll()
	}
}

// Decode читает тело r в dst. Для multipart-формы непустые значения полей переносятся
// в dst по их json-именам, а файл из поля invoice возвращается в Body.Upload.
// Размер тела ограничен maxBytes.
func Decode(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) (*Body, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return &Body{}, nil
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	body := &Body{form: r.MultipartForm}

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 && v[0] != "" {
			fields[k] = v[0]
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		body.Close()
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	file, header, err := r.FormFile(InvoiceField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return body, nil
	case err != nil:
		body.Close()
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	body.file = file
	body.Upload = &models.Upload{Filename: header.Filename, Content: file}
	return body, nil
}
