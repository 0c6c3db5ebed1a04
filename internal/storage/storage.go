// Package storage keeps photo bytes in object storage.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"mobile-home-delivery/internal/domain"
)

// Object is a stored blob.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// Store persists photo bytes.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
}

// PhotoKey builds the object key for a delivery photo.
func PhotoKey(deliveryID int64, category domain.PhotoCategory, id uuid.UUID, takenAt time.Time) string {
	return path.Join(
		"deliveries", fmt.Sprint(deliveryID),
		string(category),
		takenAt.UTC().Format("20060102T150405")+"-"+id.String()+".jpg",
	)
}

func joinURL(base, key string) string {
	if base == "" {
		return key
	}
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + key
	}
	return u.JoinPath(key).String()
}
