package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000/artifacts/reports/abc.json",
		ObjectURL(&url.URL{Scheme: "http", Host: "minio:9000"}, "artifacts", "reports/abc.json"))
	assert.Equal(t, "https://s3.example.com/b/reports/x.json",
		ObjectURL(&url.URL{Scheme: "https", Host: "s3.example.com"}, "b", "reports/x.json"))
}
