package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		APIVersion: "v1beta",
		HTTPClient: srv.Client(),
	})
}

func decodeRequest(t *testing.T, r *http.Request) generateContentRequest {
	t.Helper()

	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	var req generateContentRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	return req
}

func TestDescribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/text-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		req := decodeRequest(t, r)
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.Equal(t, "AAAA", req.Contents[0].Parts[0].InlineData.Data)
		assert.Equal(t, "image/jpeg", req.Contents[0].Parts[0].InlineData.MimeType)
		assert.Equal(t, "describe it", req.Contents[0].Parts[1].Text)
		assert.Nil(t, req.GenerationConfig)

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"A red "},{"text":"dress"}]}}]}`)
	})

	resp, err := client.Describe(context.Background(), "text-model", ImageInput{DataBase64: "data:image/jpeg;base64,AAAA", MimeType: "image/jpeg"}, "describe it")
	require.NoError(t, err)
	assert.Equal(t, "A red dress", resp.Text)
	assert.Empty(t, resp.Images)
}

func TestStylizeReturnsImages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		require.NotNil(t, req.GenerationConfig)
		require.NotNil(t, req.GenerationConfig.ImageConfig)
		assert.Equal(t, "3:4", req.GenerationConfig.ImageConfig.AspectRatio)

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"data":"QUJD","mimeType":"image/png"}},{"inlineData":{"data":"REVG"}}]}}]}`)
	})

	resp, err := client.Stylize(context.Background(), "image-model", ImageInput{DataBase64: "AAAA", MimeType: "image/png"}, "make it pop", "3:4")
	require.NoError(t, err)
	assert.Equal(t, "here", resp.Text)
	assert.Equal(t, []string{"data:image/png;base64,QUJD", "data:image/png;base64,REVG"}, resp.Images)
}

func TestStylizeRetriesWithoutImageConfig(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if calls.Add(1) == 1 {
			require.NotNil(t, req.GenerationConfig.ImageConfig)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Invalid JSON payload received. Unknown name \"imageConfig\""}}`)
			return
		}
		assert.Nil(t, req.GenerationConfig.ImageConfig)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"data":"QUJD","mimeType":"image/png"}}]}}]}`)
	})

	resp, err := client.Stylize(context.Background(), "image-model", ImageInput{DataBase64: "AAAA", MimeType: "image/png"}, "prompt", "3:4")
	require.NoError(t, err)
	assert.Len(t, resp.Images, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestStylizeEmptyPrompt(t *testing.T) {
	client := New(Options{HTTPClient: http.DefaultClient})
	_, err := client.Stylize(context.Background(), "m", ImageInput{}, "  ", "3:4")
	assert.EqualError(t, err, "prompt is empty")
}

func TestAPIErrorCarriesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"status":"PERMISSION_DENIED"}}`)
	})

	_, err := client.Describe(context.Background(), "m", ImageInput{DataBase64: "AAAA", MimeType: "image/png"}, "x")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.True(t, apiErr.IsPermissionDenied())
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestNilHTTPClient(t *testing.T) {
	client := New(Options{})
	_, err := client.Describe(context.Background(), "m", ImageInput{}, "x")
	assert.EqualError(t, err, "http client is nil")
}

func TestExtractPartsNoCandidates(t *testing.T) {
	text, images := extractParts(generateContentResponse{})
	assert.Empty(t, text)
	assert.Nil(t, images)
}
