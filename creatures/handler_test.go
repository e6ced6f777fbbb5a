package creatures

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, env *testEnv, maxBody int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewModule(env.service, nil, maxBody).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t, newTestEnv(t, nil), 0)
	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestHandleGenerate(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(t, env, 0)

	rec := doJSON(t, router, http.MethodPost, "/api/generate", map[string]string{"doodle_data": placeholderB64})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(SourceAI), rec.Header().Get("X-Creature-Source"))

	c := decode[map[string]any](t, rec)
	assert.Equal(t, "Inkling", c["name"])
	assert.Equal(t, "Water/Dark", c["type"])
	assert.EqualValues(t, 0, c["like_count"])
	assert.Equal(t, map[string]any{}, c["action_images"])
	assert.Len(t, c["powers"], 2)
}

func TestHandleGenerateValidation(t *testing.T) {
	router := newTestRouter(t, newTestEnv(t, nil), 0)

	for _, body := range []any{nil, map[string]string{}, map[string]string{"doodle_data": ""}, "{not json"} {
		rec := doJSON(t, router, http.MethodPost, "/api/generate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[map[string]string](t, rec)
		assert.Equal(t, "validation", resp["code"])
		assert.NotEmpty(t, resp["error"])
	}
}

func TestHandleGenerateBodyLimit(t *testing.T) {
	router := newTestRouter(t, newTestEnv(t, nil), 64)
	rec := doJSON(t, router, http.MethodPost, "/api/generate", map[string]string{"doodle_data": strings.Repeat("A", 256)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body too large", decode[map[string]string](t, rec)["error"])
}

// With both AI calls failing the endpoint still returns a synthesized creature.
func TestHandleGenerateFallbackScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ai.imageErr = errAIDown
	env.ai.metaErr = errAIDown
	router := newTestRouter(t, env, 0)

	rec := doJSON(t, router, http.MethodPost, "/api/generate", map[string]string{"doodle_data": placeholderB64})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(SourceFallback), rec.Header().Get("X-Creature-Source"))

	c := decode[Creature](t, rec)
	assert.True(t, isFallbackName(c.Name), c.Name)
	assert.True(t, isFallbackPair(c.Powers), "%v", c.Powers)
	assertValidType(t, c.Type)
}

func TestHandleGalleryReflectsLikes(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(t, env, 0)

	created := decode[Creature](t, doJSON(t, router, http.MethodPost, "/api/generate", map[string]string{"doodle_data": placeholderB64}))

	rec := doJSON(t, router, http.MethodGet, "/api/gallery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]Creature](t, rec)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].LikeCount)

	rec = doJSON(t, router, http.MethodPatch, "/api/pokaimon/"+strconv.FormatUint(created.ID, 10)+"/like", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[Creature](t, rec).LikeCount)

	list = decode[[]Creature](t, doJSON(t, router, http.MethodGet, "/api/gallery", nil))
	require.Len(t, list, 1)
	assert.EqualValues(t, 1, list[0].LikeCount)
}

func TestHandleLikeErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(t, env, 0)
	env.seed(t, "One")

	rec := doJSON(t, router, http.MethodGet, "/api/gallery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cached, err := env.redis.Get(GalleryCacheKey)
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodPatch, "/api/pokaimon/999/like", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[map[string]string](t, rec)["code"])

	after, err := env.redis.Get(GalleryCacheKey)
	require.NoError(t, err)
	assert.Equal(t, cached, after)

	for _, id := range []string{"abc", "0", "-1"} {
		rec = doJSON(t, router, http.MethodPatch, "/api/pokaimon/"+id+"/like", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}

func TestHandleActionImage(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(t, env, 0)
	c := env.seed(t, "Blazer")
	path := "/api/pokaimon/" + strconv.FormatUint(c.ID, 10) + "/action-image"

	rec := doJSON(t, router, http.MethodPost, path, map[string]any{"power": "Blaze"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[ActionImageResult](t, rec)
	assert.False(t, first.Cached)

	rec = doJSON(t, router, http.MethodPost, path, map[string]any{
		"power": map[string]string{"name": "Blaze", "description": "Blazer blazes brightly"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[ActionImageResult](t, rec)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ImageURL, second.ImageURL)

	rec = doJSON(t, router, http.MethodPost, path, map[string]any{"power": "Blaze", "force": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ActionImageResult](t, rec).Cached)
	assert.EqualValues(t, 2, env.ai.imageCalls.Load())
}

func TestHandleActionImageErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	router := newTestRouter(t, env, 0)
	c := env.seed(t, "Blazer")
	path := "/api/pokaimon/" + strconv.FormatUint(c.ID, 10) + "/action-image"

	for _, body := range []any{
		nil,
		map[string]any{},
		map[string]any{"power": ""},
		map[string]any{"power": map[string]string{"description": "no name"}},
		map[string]any{"power": 7},
	} {
		rec := doJSON(t, router, http.MethodPost, path, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", body)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/pokaimon/999/action-image", map[string]any{"power": "Blaze"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.ai.imageErr = errAIDown
	rec = doJSON(t, router, http.MethodPost, path, map[string]any{"power": "Blaze"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "upstream", resp["code"])
	assert.Equal(t, "Failed to generate action image", resp["error"])
	assert.NotContains(t, rec.Body.String(), errAIDown.Error())
}

func TestParsePower(t *testing.T) {
	p, err := parsePower(json.RawMessage(`"  Leaf Blade "`))
	require.NoError(t, err)
	assert.Equal(t, Power{Name: "Leaf Blade"}, p)

	p, err = parsePower(json.RawMessage(`{"name":"Vine Swipe","description":"Whips."}`))
	require.NoError(t, err)
	assert.Equal(t, Power{Name: "Vine Swipe", Description: "Whips."}, p)

	for _, raw := range []string{``, `null`, `""`, `[]`, `{"name":" "}`, `true`} {
		_, err := parsePower(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}
