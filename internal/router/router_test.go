package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/taskbook/internal/config"
	"github.com/stemsi/taskbook/internal/handler"
	"github.com/stemsi/taskbook/internal/model"
	"github.com/stemsi/taskbook/internal/repository"
	"github.com/stemsi/taskbook/internal/response"
	"github.com/stemsi/taskbook/internal/service"
	"github.com/stemsi/taskbook/internal/validator"
)

type envelope struct {
	Data     json.RawMessage     `json:"data"`
	Error    *response.ErrorBody `json:"error"`
	Metadata response.Metadata   `json:"metadata"`
}

func newTestRouter(t *testing.T, rateLimit int) *gin.Engine {
	t.Helper()
	validator.Setup()

	log := zerolog.Nop()
	repo, err := repository.NewFileRecordRepository(t.TempDir(), log)
	require.NoError(t, err)

	subjects := service.NewSubjectService(repo, nil, 20, log)
	catalog := service.NewCatalogService(repo, 2, log)
	commands := service.NewCommandService(subjects, catalog, config.DefaultMessages(), log)

	cfg := &config.Config{GinMode: gin.TestMode, RateLimitPerMinute: rateLimit}
	return SetupRouter(&Handlers{
		Command: handler.NewCommandHandler(commands),
		Subject: handler.NewSubjectHandler(subjects, catalog, log),
	}, cfg, log)
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.NotEmpty(t, env.Metadata.RequestID)
	assert.Equal(t, env.Metadata.RequestID, w.Header().Get("X-Request-ID"))
	return w.Code, env
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, 0)
	code, _ := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, 0)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_NoEventStreamWithoutRedis(t *testing.T) {
	r := newTestRouter(t, 0)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/v1/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Commands(t *testing.T) {
	r := newTestRouter(t, 0)

	run := func(name string, args ...string) model.CommandResult {
		code, env := do(t, r, http.MethodPost, "/api/v1/commands", model.Command{Name: name, Args: args, CallerID: "42"})
		require.Equal(t, http.StatusOK, code)
		var res model.CommandResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		return res
	}

	assert.True(t, run("/add", "math", "3").OK)
	assert.Equal(t, "1,2,3", run("free", "math").Text)
	assert.True(t, run("book", "math", "2").OK)

	res := run("book", "math", "3")
	assert.False(t, res.OK)
	assert.Equal(t, "AlreadyBooked", res.Kind)

	res = run("free", "math android")
	assert.False(t, res.OK)
	assert.Equal(t, "NotFound", res.Kind)
}

func TestRouter_CommandValidation(t *testing.T) {
	r := newTestRouter(t, 0)

	code, env := do(t, r, http.MethodPost, "/api/v1/commands", map[string]any{"command": "help"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "caller_id")
}

func TestRouter_SubjectLifecycle(t *testing.T) {
	r := newTestRouter(t, 0)

	code, _ := do(t, r, http.MethodPost, "/api/v1/subjects", model.CreateSubjectRequest{Name: "Math", Capacity: 2})
	require.Equal(t, http.StatusCreated, code)

	code, env := do(t, r, http.MethodPost, "/api/v1/subjects", model.CreateSubjectRequest{Name: "math", Capacity: 2})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrConflict, env.Error.Code)

	code, env = do(t, r, http.MethodPost, "/api/v1/subjects", model.CreateSubjectRequest{Name: "physics", Capacity: 21})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrInvalidSubject, env.Error.Code)

	code, _ = do(t, r, http.MethodPost, "/api/v1/subjects/math/book", model.BookSlotRequest{Slot: 1, Claimant: "u1"})
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodPost, "/api/v1/subjects/math/book", model.BookSlotRequest{Slot: 1, Claimant: "u2"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrSlotTaken, env.Error.Code)
	assert.EqualValues(t, 1, env.Error.Details["task"])

	code, env = do(t, r, http.MethodPost, "/api/v1/subjects/math/book", model.BookSlotRequest{Slot: 2, Claimant: "u1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrAlreadyBooked, env.Error.Code)

	code, env = do(t, r, http.MethodPost, "/api/v1/subjects/math/book", model.BookSlotRequest{Slot: 5, Claimant: "u2"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrInvalidTask, env.Error.Code)

	code, env = do(t, r, http.MethodGet, "/api/v1/subjects/math/free", nil)
	require.Equal(t, http.StatusOK, code)
	var free struct {
		Tasks []model.Slot `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &free))
	assert.Equal(t, []model.Slot{{Index: 2}}, free.Tasks)

	code, env = do(t, r, http.MethodGet, "/api/v1/subjects/math/free?all=true", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &free))
	assert.Equal(t, []model.Slot{{Index: 1, Claimant: "u1"}, {Index: 2}}, free.Tasks)

	code, env = do(t, r, http.MethodGet, "/api/v1/subjects", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Subjects []model.SubjectSummary `json:"subjects"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []model.SubjectSummary{{Name: "math", Capacity: 2, Free: 1}}, list.Subjects)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/subjects/math", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/subjects/math", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrNotFound, env.Error.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	r := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		code, _ := do(t, r, http.MethodGet, "/api/v1/subjects", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, env := do(t, r, http.MethodGet, "/api/v1/subjects", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, response.ErrRateLimitExceeded, env.Error.Code)

	code, _ = do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code, "health is not rate limited")
}
