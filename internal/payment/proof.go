// Package payment decodes data-URI payment proofs and stores them as
// objects with a public URL.
package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/google/uuid"
)

var dataURI = regexp.MustCompile(`^data:([\w.+-]+/[\w.+-]+);base64,(.+)$`)

// Proof is a decoded payment proof ready to upload.
type Proof struct {
	MIME string
	Ext  string
	Data []byte
}

// Parse returns nil for an empty proof and InvalidImageFormat for anything
// that is not a base64 data URI.
func Parse(raw string) (*Proof, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	m := dataURI.FindStringSubmatch(raw)
	if m == nil {
		return nil, apperr.InvalidImageFormat()
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, apperr.InvalidImageFormat()
	}
	mime := strings.ToLower(m[1])
	ext := mime[strings.Index(mime, "/")+1:]
	if i := strings.IndexAny(ext, "+;"); i >= 0 {
		ext = ext[:i]
	}
	return &Proof{MIME: mime, Ext: ext, Data: data}, nil
}

// Uploader puts an object into a bucket and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, bucket, name, contentType string, data []byte) (string, error)
}

type Store struct {
	uploader Uploader
	bucket   string
	now      func() time.Time
}

func NewStore(uploader Uploader, bucket string) *Store {
	return &Store{uploader: uploader, bucket: bucket, now: time.Now}
}

// Save uploads p and returns its public URL, or nil when there is no proof.
func (s *Store) Save(ctx context.Context, p *Proof) (*string, error) {
	if p == nil {
		return nil, nil
	}
	name := s.filename(p.Ext)
	url, err := s.uploader.Upload(ctx, s.bucket, name, p.MIME, p.Data)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to upload payment proof")
	}
	return &url, nil
}

// filename is order-<unix millis>-<12 hex chars>.<ext>.
func (s *Store) filename(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("order-%d-%s.%s", s.now().UnixMilli(), suffix, ext)
}
