package imageref

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signedBase = "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws/img.png"

func detectorAt(t *testing.T, now time.Time) *Detector {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(now)
	return NewDetector(mock)
}

func TestIsExpiredUnknownHostNeverExpires(t *testing.T) {
	d := detectorAt(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.False(t, d.IsExpired("https://images.example.com/a.png"))
	assert.False(t, d.IsExpired("https://images.example.com/a.png?X-Amz-Date=20200101T000000Z&X-Amz-Expires=1"))
	assert.False(t, d.IsExpired("/static/noimage.png"))
}

func TestIsExpiredMissingParamsOnStorageHost(t *testing.T) {
	d := detectorAt(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, d.IsExpired(signedBase))
	assert.True(t, d.IsExpired(signedBase+"?X-Amz-Date=20240101T000000Z"))
	assert.True(t, d.IsExpired(signedBase+"?X-Amz-Expires=3600"))
	assert.True(t, d.IsExpired("https://s3.notion-static.com/secure/img.png"))
}

func TestIsExpiredBoundary(t *testing.T) {
	signed := signedBase + "?X-Amz-Date=20240102T030405Z&X-Amz-Expires=3600"
	expiry := time.Date(2024, 1, 2, 4, 4, 5, 0, time.UTC)

	assert.False(t, detectorAt(t, expiry.Add(-time.Second)).IsExpired(signed))
	assert.False(t, detectorAt(t, expiry).IsExpired(signed), "now == expiry is not yet expired")
	assert.True(t, detectorAt(t, expiry.Add(time.Second)).IsExpired(signed))
}

func TestIsExpiredFailsClosedOnMalformedParams(t *testing.T) {
	d := detectorAt(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, d.IsExpired(signedBase+"?X-Amz-Date=yesterday&X-Amz-Expires=3600"))
	assert.True(t, d.IsExpired(signedBase+"?X-Amz-Date=20240101T000000Z&X-Amz-Expires=soon"))
	assert.True(t, d.IsExpired(signedBase+"?X-Amz-Date=20240101T000000Z&X-Amz-Expires=-5"))
}

func TestExpiresWithinMargin(t *testing.T) {
	signed := signedBase + "?X-Amz-Date=20240102T000000Z&X-Amz-Expires=3600"
	d := detectorAt(t, time.Date(2024, 1, 2, 0, 50, 0, 0, time.UTC))

	assert.False(t, d.IsExpired(signed))
	assert.True(t, d.ExpiresWithin(signed, 15*time.Minute))
	assert.False(t, d.ExpiresWithin(signed, 5*time.Minute))
}

func TestMetadata(t *testing.T) {
	d := DefaultDetector()

	meta, err := d.Metadata(signedBase + "?X-Amz-Date=20240102T030405Z&X-Amz-Expires=60")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), meta.SignedAt)
	assert.Equal(t, time.Minute, meta.Validity)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 5, 5, 0, time.UTC), meta.ExpiresAt())

	_, err = d.Metadata(signedBase)
	assert.ErrorIs(t, err, ErrNotSigned)
}

func TestIsStorageURL(t *testing.T) {
	d := DefaultDetector()

	assert.True(t, d.IsStorageURL(signedBase))
	assert.True(t, d.IsStorageURL("https://file.notion.so/f/s/abc/img.png"))
	assert.False(t, d.IsStorageURL("https://notamazonaws.com/img.png"))
	assert.False(t, d.IsStorageURL("https://unsplash.com/photo.jpg"))
}

func TestOversizedValidityIsMalformed(t *testing.T) {
	d := detectorAt(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	huge := signedBase + "?X-Amz-Date=20240101T000000Z&X-Amz-Expires=9300000000"

	_, err := d.Metadata(huge)
	assert.ErrorIs(t, err, ErrMalformedSignature)
	assert.True(t, d.IsExpired(huge))

	meta, err := d.Metadata(signedBase + "?X-Amz-Date=20240101T000000Z&X-Amz-Expires=9200000000")
	require.NoError(t, err)
	assert.Positive(t, meta.Validity)
}
