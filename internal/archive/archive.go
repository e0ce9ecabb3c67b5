// Package archive keeps raw uploaded statements in object storage so
// asynchronous jobs can be re-run from the original bytes.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store saves and loads uploaded files by URI.
type Store interface {
	// Put stores data under a unique object derived from name and returns its URI.
	Put(ctx context.Context, name string, data []byte) (string, error)

	// Get loads the bytes behind a URI returned by Put.
	Get(ctx context.Context, uri string) ([]byte, error)
}

const gcsScheme = "gs://"

// ParseGCSURI splits "gs://bucket/path/to/file" into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, gcsScheme) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the original upload name of an archived object,
// e.g. "gs://bucket/uploads/2025/07/02/<id>-bank.csv" gives "bank.csv".
func FilenameFromURI(uri string) string {
	base := uri
	if i := strings.Index(uri, "://"); i != -1 {
		rest := uri[i+3:]
		if j := strings.Index(rest, "/"); j != -1 {
			base = path.Base(rest[j+1:])
		} else {
			base = rest
		}
	}

	// Strip the "<uuid>-" prefix added by objectName.
	if len(base) > 37 && base[36] == '-' {
		if _, err := uuid.Parse(base[:36]); err == nil {
			return base[37:]
		}
	}
	return base
}

// objectName builds "<prefix>/YYYY/MM/DD/<id>-<base name>".
func objectName(prefix, name string, now time.Time, id string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	return path.Join(prefix, now.UTC().Format("2006/01/02"), id+"-"+base)
}
