package storage

import (
	"alcyxob/fitness-coach/internal/config"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const s3ErrorBody = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>%s</Message><RequestId>req-1</RequestId></Error>`

// fakeS3 serves path-style GetObject requests for a single bucket.
func fakeS3(t *testing.T, bucket string, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError := func(status int, code, message string) {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			fmt.Fprintf(w, s3ErrorBody, code, message)
		}

		if r.Method != http.MethodGet {
			writeError(http.StatusMethodNotAllowed, "MethodNotAllowed", "only GET is served")
			return
		}
		prefix := "/" + bucket + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			writeError(http.StatusForbidden, "AccessDenied", "Access Denied")
			return
		}
		body, ok := objects[strings.TrimPrefix(r.URL.Path, prefix)]
		if !ok {
			writeError(http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Source_Fetch(t *testing.T) {
	srv := fakeS3(t, "catalog", map[string]string{"data/exercises.json": `[{"id":"push_up"}]`})

	src, err := NewS3Source(config.S3Config{
		Endpoint:        srv.Listener.Addr().String(),
		UseSSL:          false,
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "catalog",
	})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("reads object with path-style addressing", func(t *testing.T) {
		data, err := src.Fetch(ctx, "data/exercises.json")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"push_up"}]`, string(data))
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := src.Fetch(ctx, "data/missing.json")
		assert.ErrorIs(t, err, ErrObjectNotFound)
		assert.Contains(t, err.Error(), "s3://catalog/data/missing.json")
	})

	t.Run("other errors are passed through", func(t *testing.T) {
		other, err := NewS3Source(config.S3Config{
			Endpoint:        srv.URL,
			Region:          "us-east-1",
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
			BucketName:      "private",
		})
		require.NoError(t, err)

		_, err = other.Fetch(ctx, "data/exercises.json")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrObjectNotFound)
	})
}

func TestEndpointURL(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
		useSSL   bool
		want     string
	}{
		{"empty uses AWS resolution", "", true, ""},
		{"bare host with ssl", "minio.internal:9000", true, "https://minio.internal:9000"},
		{"bare host without ssl", "localhost:9000", false, "http://localhost:9000"},
		{"scheme is kept", "http://localhost:9000", true, "http://localhost:9000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, endpointURL(tc.endpoint, tc.useSSL))
		})
	}
}
