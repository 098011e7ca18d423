package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	folder string
	data   []byte
	err    error
}

func (f *fakeArchive) StoreImage(_ context.Context, folder string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.folder = folder
	f.data = data
	return folder + "/stored.jpg", nil
}

func uploadRequest(t *testing.T, field string, payload []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "photo.jpg")
	require.NoError(t, err)
	_, err = fw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newImageRouter(archive *fakeArchive) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/images", NewImageHandler(archive).Upload)
	return r
}

func TestUploadImage(t *testing.T) {
	archive := &fakeArchive{}
	w := httptest.NewRecorder()

	newImageRouter(archive).ServeHTTP(w, uploadRequest(t, "image", []byte{0xff, 0xd8, 0xff}))

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "uploads/stored.jpg", resp["image_id"])
	assert.Equal(t, "uploads", archive.folder)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, archive.data)
}

func TestUploadImageRequiresFile(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/images", nil)

	newImageRouter(&fakeArchive{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadImageRejectsEmptyPayload(t *testing.T) {
	w := httptest.NewRecorder()

	newImageRouter(&fakeArchive{}).ServeHTTP(w, uploadRequest(t, "image", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
