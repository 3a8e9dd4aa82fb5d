package domain

import (
	"fmt"
	"path"
	"strings"
)

// Location addresses an object in a bucket-style object store
type Location struct {
	Bucket string
	Key    string
}

// ParseLocation parses an s3://bucket/key URI
func ParseLocation(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return Location{}, fmt.Errorf("%w: %q must start with s3://", ErrInvalidLocation, uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return Location{}, fmt.Errorf("%w: %q must name a bucket and a key", ErrInvalidLocation, uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// String formats the location as an s3:// URI
func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// BaseName returns the final path element of the key
func (l Location) BaseName() string {
	return path.Base(l.Key)
}
