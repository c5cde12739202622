package request

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

func multipartRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(InvoiceField, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/subscriptions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDecode_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions",
		strings.NewReader(`{"name":"Netflix","cost":10.5,"category":"streaming"}`))
	req.Header.Set("Content-Type", "application/json")

	var in models.SubscriptionInput
	body, err := Decode(httptest.NewRecorder(), req, 1<<20, &in)
	require.NoError(t, err)
	defer body.Close()

	assert.Nil(t, body.Upload)
	assert.Equal(t, "Netflix", in.Name)
	require.NotNil(t, in.Cost)
	assert.Equal(t, "10.5", in.Cost.String())
	assert.Equal(t, "streaming", in.Category)
}

func TestDecode_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(`{"name":`))

	var in models.SubscriptionInput
	_, err := Decode(httptest.NewRecorder(), req, 1<<20, &in)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecode_MultipartWithInvoice(t *testing.T) {
	req := multipartRequest(t, map[string]string{
		"name":       "AWS",
		"cost":       "120.00",
		"start_date": "2025-01-01",
	}, "invoice.pdf", "%PDF-1.4")

	var in models.SubscriptionInput
	body, err := Decode(httptest.NewRecorder(), req, 1<<20, &in)
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "AWS", in.Name)
	require.NotNil(t, in.Cost)
	assert.Equal(t, "120", in.Cost.String())
	assert.Equal(t, "2025-01-01", in.StartDate)

	require.NotNil(t, body.Upload)
	assert.Equal(t, "invoice.pdf", body.Upload.Filename)
	content, err := io.ReadAll(body.Upload.Content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))
}

func TestDecode_MultipartWithoutInvoice(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "AWS"}, "", "")

	var patch models.SubscriptionPatch
	body, err := Decode(httptest.NewRecorder(), req, 1<<20, &patch)
	require.NoError(t, err)
	defer body.Close()

	assert.Nil(t, body.Upload)
	assert.Equal(t, "AWS", patch.Name)
	assert.Nil(t, patch.Cost)
}

func TestDecode_MultipartInvalidCost(t *testing.T) {
	req := multipartRequest(t, map[string]string{"cost": "ten"}, "", "")

	var in models.SubscriptionInput
	_, err := Decode(httptest.NewRecorder(), req, 1<<20, &in)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecode_TooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions",
		strings.NewReader(`{"name":"`+strings.Repeat("x", 2048)+`"}`))

	var in models.SubscriptionInput
	_, err := Decode(httptest.NewRecorder(), req, 512, &in)
	assert.True(t, errors.Is(err, ErrDecode))
}
