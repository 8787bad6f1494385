// Package documents stores attachment blobs and hands back opaque references
// (supabase://bucket/path, s3://bucket/key, memory://name). Contents are never inspected.
package documents

import (
	"errors"
	"strings"
)

var (
	ErrAlreadyExists = errors.New("document already exists")
	ErrNotFound      = errors.New("document not found")
)

func objectPath(name string) string {
	return strings.TrimLeft(name, "/")
}
