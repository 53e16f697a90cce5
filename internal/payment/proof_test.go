package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	bucket, name, contentType string
	data                      []byte
	err                       error
}

func (f *fakeUploader) Upload(_ context.Context, bucket, name, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bucket, f.name, f.contentType, f.data = bucket, name, contentType, data
	return "https://cdn.example/" + bucket + "/" + name, nil
}

func TestParse(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))

	p, err := Parse("data:image/png;base64," + png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MIME)
	assert.Equal(t, "png", p.Ext)
	assert.Equal(t, []byte("\x89PNG fake"), p.Data)

	p, err = Parse("data:image/jpeg;base64," + png)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", p.Ext)

	p, err = Parse("data:image/svg+xml;base64," + png)
	require.NoError(t, err)
	assert.Equal(t, "svg", p.Ext)

	p, err = Parse("")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{
		"not a data uri",
		"data:image/png,abc",
		"data:;base64,abc",
		"https://example.com/proof.png",
		"data:image/png;base64,@@@not-base64@@@",
	} {
		_, err := Parse(raw)
		assert.Equal(t, apperr.KindInvalidImageFormat, apperr.KindOf(err), raw)
	}
}

func TestSave(t *testing.T) {
	up := &fakeUploader{}
	s := NewStore(up, "payment_proof")
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	url, err := s.Save(context.Background(), &Proof{MIME: "image/png", Ext: "png", Data: []byte("x")})
	require.NoError(t, err)
	require.NotNil(t, url)

	assert.Equal(t, "payment_proof", up.bucket)
	assert.Equal(t, "image/png", up.contentType)
	assert.Regexp(t, regexp.MustCompile(`^order-1700000000123-[0-9a-f]{12}\.png$`), up.name)
	assert.Equal(t, "https://cdn.example/payment_proof/"+up.name, *url)
}

func TestSave_NilProof(t *testing.T) {
	up := &fakeUploader{}
	url, err := NewStore(up, "b").Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, url)
	assert.Empty(t, up.name)
}

func TestSave_UploadFailure(t *testing.T) {
	s := NewStore(&fakeUploader{err: errors.New("503")}, "b")
	_, err := s.Save(context.Background(), &Proof{MIME: "image/png", Ext: "png"})
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestFilenamesAreUnique(t *testing.T) {
	s := NewStore(&fakeUploader{}, "b")
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := s.filename("png")
		assert.False(t, seen[n])
		seen[n] = true
	}
}
