package media_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meethub/backend/internal/config"
	"meethub/backend/internal/media"
	"meethub/backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "APItestkey"
	testSecret = "a-test-secret-that-is-long-enough-for-hmac"
)

func newLiveKit() *media.LiveKit {
	return media.NewLiveKit(config.LiveKitConfig{
		URL:       "http://localhost:7880",
		APIKey:    testKey,
		APISecret: testSecret,
		TokenTTL:  time.Hour,
	})
}

func TestLiveKit_IssueToken(t *testing.T) {
	lk := newLiveKit()

	signed, err := lk.IssueToken(media.TokenRequest{
		Room:     "room1",
		Identity: "guest-1",
		Name:     "Guest",
		IsGuest:  true,
		Role:     models.RoleGuest,
	})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)

	assert.Equal(t, testKey, claims["iss"])
	assert.Equal(t, "guest-1", claims["sub"])
	assert.Equal(t, "Guest", claims["name"])

	video, ok := claims["video"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, video["roomJoin"])
	assert.Equal(t, "room1", video["room"])

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(claims["metadata"].(string)), &meta))
	assert.Equal(t, "guest", meta["role"])
	assert.Equal(t, true, meta["isGuest"])
}

func TestLiveKit_ReceiveRejectsUnsigned(t *testing.T) {
	lk := newLiveKit()
	req := httptest.NewRequest("POST", "/webhooks/media", strings.NewReader(`{"event":"egress_ended"}`))
	req.Header.Set("Content-Type", "application/webhook+json")

	n, err := lk.Receive(req)
	assert.Nil(t, n)
	assert.ErrorIs(t, err, media.ErrUnauthenticated)
}
