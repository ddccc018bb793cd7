package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/service"
)

type testEnv struct {
	router   *gin.Engine
	store    *memStore
	users    *memUsers
	sessions *memSessions
	blobs    *memBlobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret: "test-secret",
			JWTAccessTTL:    15 * time.Minute,
			JWTRefreshTTL:   720 * time.Hour,
		},
		Links: config.LinksConfig{
			MinExpiry: 300 * time.Second,
			MaxExpiry: 30000 * time.Second,
		},
		Storage: config.StorageConfig{Bucket: "test-bucket"},
	}

	env := &testEnv{
		store:    newMemStore(),
		users:    newMemUsers(),
		sessions: newMemSessions(),
		blobs:    newMemBlobs(),
	}
	tiers := &memTiers{tiers: map[string]models.Tier{
		"tier_basic": {
			ID:             "tier_basic",
			Name:           "Basic",
			ThumbnailSizes: []int32{200},
		},
		"tier_enterprise": {
			ID:                 "tier_enterprise",
			Name:               "Enterprise",
			ThumbnailSizes:     []int32{200, 400},
			AllowOriginalLink:  true,
			AllowExpiringLinks: true,
		},
	}}

	logger := zerolog.Nop()
	authSvc := service.NewAuthService(env.users, env.sessions, cfg, logger)
	uploadSvc := service.NewUploadService(env.store, tiers, env.blobs, cfg, logger)
	linkSvc := service.NewLinkService(env.store, env.store, tiers, env.blobs, cfg, logger)

	handlerSet := NewHandlerSet(
		logger, cfg,
		authSvc, uploadSvc, linkSvc,
		env.users, env.sessions, env.store,
		nil, nil,
	)

	env.router = gin.New()
	handlerSet.Register(env.router.Group("/api"))
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.do(t, method, path, token, bytes.NewBuffer(body), "application/json")
}

type authPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    string  `json:"id"`
		Email string  `json:"email"`
		Tier  *string `json:"tier"`
	} `json:"user"`
}

// signUp registers an account and assigns it a tier directly in the store,
// mirroring an operator granting a subscription.
func (e *testEnv) signUp(t *testing.T, email string, tierID string) authPayload {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"password": "pass-word-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var auth authPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	if tierID != "" {
		e.users.setTier(auth.User.ID, tierID)
	}
	return auth
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func multipartFile(t *testing.T, filename string, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

type linkPayload struct {
	ID           string     `json:"id"`
	TargetHeight *int32     `json:"targetHeight"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

type imagePayload struct {
	ID     string        `json:"id"`
	Format string        `json:"format"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Links  []linkPayload `json:"links"`
}

func (e *testEnv) upload(t *testing.T, token string, data []byte, contentType string) imagePayload {
	t.Helper()
	body, bodyType := multipartFile(t, "photo.png", contentType, data)
	rec := e.do(t, http.MethodPost, "/api/v1/images", token, body, bodyType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Image imagePayload `json:"image"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Image
}

func TestImagesRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/images"},
		{http.MethodGet, "/api/v1/images"},
		{http.MethodPost, "/api/v1/images/links"},
		{http.MethodGet, "/api/v1/images/links/some-id"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rec := env.do(t, p.method, p.path, "", nil, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/images", "not-a-jwt", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestBasicTierUploadFlow(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signUp(t, "basic@example.com", "tier_basic")

	img := env.upload(t, auth.AccessToken, testPNG(t, 800, 600), "image/png")
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 800, img.Width)
	assert.Equal(t, 600, img.Height)

	require.Len(t, img.Links, 1, "basic tier gets the 200px thumbnail link only")
	link := img.Links[0]
	require.NotNil(t, link.TargetHeight)
	assert.Equal(t, int32(200), *link.TargetHeight)
	assert.Nil(t, link.ExpiresAt)

	t.Run("thumbnail link renders scaled rendition", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/images/links/"+link.ID, auth.AccessToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), link.ID+".png")

		decoded, _, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, 267, decoded.Bounds().Dx())
		assert.Equal(t, 200, decoded.Bounds().Dy())
	})

	t.Run("basic tier cannot mint expiring links", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/images/links", auth.AccessToken, gin.H{
			"image":  img.ID,
			"expiry": 300,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestEnterpriseExpiringLinks(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signUp(t, "ent@example.com", "tier_enterprise")

	original := testPNG(t, 800, 600)
	img := env.upload(t, auth.AccessToken, original, "image/png")
	assert.Len(t, img.Links, 3, "two thumbnails plus the original link")

	t.Run("expiry above the maximum", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/images/links", auth.AccessToken, gin.H{
			"image":  img.ID,
			"expiry": 30001,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown image", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/images/links", auth.AccessToken, gin.H{
			"image":  "no-such-image",
			"expiry": 300,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var created linkPayload
	t.Run("valid expiry mints a link", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/images/links", auth.AccessToken, gin.H{
			"image":  img.ID,
			"expiry": 300,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Link linkPayload `json:"link"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		created = resp.Link
		assert.Nil(t, created.TargetHeight, "custom links target the original")
		require.NotNil(t, created.ExpiresAt)
	})

	t.Run("custom link streams the original bytes", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/images/links/"+created.ID, auth.AccessToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, original, rec.Body.Bytes())
	})

	t.Run("someone else's link answers 404, not 403", func(t *testing.T) {
		other := env.signUp(t, "other@example.com", "tier_enterprise")
		rec := env.do(t, http.MethodGet, "/api/v1/images/links/"+created.ID, other.AccessToken, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cannot mint links on someone else's image", func(t *testing.T) {
		other := env.signUp(t, "intruder@example.com", "tier_enterprise")
		rec := env.doJSON(t, http.MethodPost, "/api/v1/images/links", other.AccessToken, gin.H{
			"image":  img.ID,
			"expiry": 300,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestUploadRejectsNonImagePayloads(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signUp(t, "u@example.com", "tier_basic")

	body, bodyType := multipartFile(t, "notes.txt", "text/plain", []byte("plain text"))
	rec := env.do(t, http.MethodPost, "/api/v1/images", auth.AccessToken, body, bodyType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.store.images)
	assert.Empty(t, env.blobs.objects)
}

func TestListImages(t *testing.T) {
	env := newTestEnv(t)
	auth := env.signUp(t, "u@example.com", "tier_basic")

	first := env.upload(t, auth.AccessToken, testPNG(t, 800, 600), "image/png")
	second := env.upload(t, auth.AccessToken, testPNG(t, 400, 400), "image/png")

	rec := env.do(t, http.MethodGet, "/api/v1/images", auth.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Images []imagePayload `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Images, 2)

	byID := map[string]imagePayload{}
	for _, img := range resp.Images {
		byID[img.ID] = img
	}
	assert.Len(t, byID[first.ID].Links, 1)
	assert.Len(t, byID[second.ID].Links, 1)

	t.Run("other users see an empty list", func(t *testing.T) {
		other := env.signUp(t, "other@example.com", "tier_basic")
		rec := env.do(t, http.MethodGet, "/api/v1/images", other.AccessToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Images []imagePayload `json:"images"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Images)
	})
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	auth := env.signUp(t, "alice@example.com", "")
	assert.Nil(t, auth.User.Tier)

	t.Run("duplicate registration", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"email":    "alice@example.com",
			"password": "pass-word-1",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login and me", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email":    "alice@example.com",
			"password": "pass-word-1",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var logged authPayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logged))

		me := env.do(t, http.MethodGet, "/api/v1/auth/me", logged.AccessToken, nil, "")
		require.Equal(t, http.StatusOK, me.Code)
		assert.Contains(t, me.Body.String(), "alice@example.com")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email":    "alice@example.com",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh rotates", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{
			"userId":       auth.User.ID,
			"refreshToken": auth.RefreshToken,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var refreshed authPayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
		assert.NotEqual(t, auth.RefreshToken, refreshed.RefreshToken)
	})

	t.Run("logout kills the session", func(t *testing.T) {
		session := env.signUp(t, "bob@example.com", "")
		rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", session.AccessToken, nil, "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		me := env.do(t, http.MethodGet, "/api/v1/auth/me", session.AccessToken, nil, "")
		assert.Equal(t, http.StatusUnauthorized, me.Code)
	})
}
