package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizd/quizd/internal/analytics"
	"github.com/quizd/quizd/internal/attempt"
	authmw "github.com/quizd/quizd/internal/auth/middleware"
	"github.com/quizd/quizd/internal/catalog"
	"github.com/quizd/quizd/internal/db/dbtest"
	"github.com/quizd/quizd/internal/logging"
	"github.com/quizd/quizd/internal/user"
)

type apiClient struct {
	t     *testing.T
	srv   *httptest.Server
	users *user.Store
}

func newAPI(t *testing.T, catalogAdminOnly bool) *apiClient {
	t.Helper()
	dbh := dbtest.Open(t)
	users := user.NewStore(dbh)
	h := NewRouter(Deps{
		Users:            users,
		Catalog:          catalog.NewStore(dbh),
		Tests:            attempt.NewService(dbh),
		Analytics:        analytics.NewStore(dbh),
		Auth:             authmw.NewAuthService("test-secret", "quizd", time.Hour),
		DB:               dbh,
		Log:              logging.New("error", "text", io.Discard),
		CatalogAdminOnly: catalogAdminOnly,
		CORSOrigins:      []string{"http://localhost:3000"},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, srv: srv, users: users}
}

// do sends body as JSON (unless it is url.Values) and decodes a JSON reply into out.
func (c *apiClient) do(method, path, token string, body, out any) int {
	c.t.Helper()
	var rdr io.Reader
	ct := "application/json"
	switch b := body.(type) {
	case nil:
	case url.Values:
		rdr = strings.NewReader(b.Encode())
		ct = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rdr)
	require.NoError(c.t, err)
	if rdr != nil {
		req.Header.Set("Content-Type", ct)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, out), string(raw))
	}
	return res.StatusCode
}

func (c *apiClient) raw(path string) []byte {
	c.t.Helper()
	res, err := c.srv.Client().Get(c.srv.URL + path)
	require.NoError(c.t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return b
}

func (c *apiClient) register(name string) {
	c.t.Helper()
	code := c.do("POST", "/users/register/", "", map[string]string{
		"full_name": name, "username": name, "phone": "+" + name, "password": "password-" + name,
	}, nil)
	require.Equal(c.t, http.StatusCreated, code)
}

func (c *apiClient) login(name string) string {
	c.t.Helper()
	var tok tokenResponse
	code := c.do("POST", "/users/login/", "", map[string]string{"username": name, "password": "password-" + name}, &tok)
	require.Equal(c.t, http.StatusOK, code)
	return tok.AccessToken
}

type detail struct {
	Detail string `json:"detail"`
}

func TestHealth(t *testing.T) {
	c := newAPI(t, false)
	assert.Equal(t, http.StatusOK, c.do("GET", "/healthz", "", nil, nil))
	assert.Equal(t, http.StatusOK, c.do("GET", "/readyz", "", nil, nil))
}

func TestReadyzReportsDown(t *testing.T) {
	h := NewRouter(Deps{DB: downDB{}, Log: logging.New("error", "text", io.Discard)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("down") }

func TestIdentityFlow(t *testing.T) {
	c := newAPI(t, false)
	c.register("alice")

	var d detail
	code := c.do("POST", "/users/register/", "", map[string]string{
		"full_name": "x", "username": "alice", "phone": "+other", "password": "password-x",
	}, &d)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "A user with this username already exists", d.Detail)

	code = c.do("POST", "/users/register/", "", map[string]string{"username": "bob"}, &d)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, d.Detail, "full_name")

	code = c.do("POST", "/users/login/", "", map[string]string{"username": "alice", "password": "nope"}, &d)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Incorrect username or password", d.Detail)

	var form tokenResponse
	code = c.do("POST", "/users/login", "", url.Values{"username": {"alice"}, "password": {"password-alice"}}, &form)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bearer", form.TokenType)
	assert.NotEmpty(t, form.AccessToken)

	tok := c.login("alice")
	var me user.User
	require.Equal(t, http.StatusOK, c.do("GET", "/users/me/", tok, nil, &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "+alice", me.Phone)

	assert.Equal(t, http.StatusForbidden, c.do("GET", "/users/", tok, nil, nil))

	code = c.do("POST", "/users/password/", tok, map[string]string{"old_password": "bad", "new_password": "something-new"}, &d)
	assert.Equal(t, http.StatusForbidden, code)
	code = c.do("POST", "/users/password/", tok, map[string]string{"old_password": "password-alice", "new_password": "something-new"}, nil)
	assert.Equal(t, http.StatusNoContent, code)

	assert.Equal(t, http.StatusNoContent, c.do("POST", "/users/logout/", tok, nil, nil))
	code = c.do("GET", "/users/me/", tok, nil, &d)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token has been revoked", d.Detail)

	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/users/me/", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/users/me/", "garbage", nil, nil))
}

func TestAdminListsUsers(t *testing.T) {
	c := newAPI(t, false)
	hash, err := bcrypt.GenerateFromPassword([]byte("password-root"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, c.users.EnsureAdmin(context.Background(), "root", string(hash)))
	c.register("alice")

	var list []user.User
	require.Equal(t, http.StatusOK, c.do("GET", "/users/?limit=1000", c.login("root"), nil, &list))
	assert.Len(t, list, 2)

	require.Equal(t, http.StatusOK, c.do("GET", "/users?skip=1", c.login("root"), nil, &list))
	assert.Len(t, list, 1)
}

func TestCatalogEndpoints(t *testing.T) {
	c := newAPI(t, false)
	c.register("alice")
	tok := c.login("alice")

	assert.Equal(t, http.StatusUnauthorized, c.do("POST", "/topics/", "", map[string]string{"name": "Geo"}, nil))

	var topic catalog.Topic
	require.Equal(t, http.StatusCreated, c.do("POST", "/topics/", tok, map[string]string{"name": "Geo"}, &topic))
	var d detail
	assert.Equal(t, http.StatusConflict, c.do("POST", "/topics/", tok, map[string]string{"name": "Geo"}, &d))
	assert.Equal(t, "Topic with this name already exists", d.Detail)

	var q catalog.Question
	require.Equal(t, http.StatusCreated, c.do("POST", "/questions/", tok, map[string]any{
		"topic_id": topic.ID, "question_text": "Capital?", "question_type": "open_ended", "difficulty": 2, "correct_answer": "Paris",
	}, &q))
	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/questions/", tok, map[string]any{
		"topic_id": topic.ID, "question_text": "x", "question_type": "essay", "difficulty": 2,
	}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/questions/", tok, map[string]any{
		"topic_id": topic.ID, "question_text": "x", "question_type": "true_false", "difficulty": 9,
	}, nil))
	assert.Equal(t, http.StatusNotFound, c.do("POST", "/questions/", tok, map[string]any{
		"topic_id": 999, "question_text": "x", "question_type": "true_false", "difficulty": 1,
	}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/questions/"+itoa(q.ID)+"/options", tok, map[string]any{"option_text": "a"}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do("PUT", "/questions/"+itoa(q.ID), tok, map[string]any{"difficulty": 0}, nil))

	first := c.raw("/topics/" + itoa(topic.ID))
	second := c.raw("/topics/" + itoa(topic.ID))
	assert.Equal(t, first, second)
	var td catalog.TopicDetail
	require.NoError(t, json.Unmarshal(first, &td))
	assert.Equal(t, 1, td.QuestionCount)

	var qs []catalog.Question
	require.Equal(t, http.StatusOK, c.do("GET", "/questions/?topic_id="+itoa(topic.ID)+"&difficulty=2", "", nil, &qs))
	assert.Len(t, qs, 1)
	require.Equal(t, http.StatusOK, c.do("GET", "/questions/?difficulty=5", "", nil, &qs))
	assert.Empty(t, qs)

	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/topics/abc", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/topics/999", "", nil, nil))
	assert.Equal(t, http.StatusNoContent, c.do("DELETE", "/topics/"+itoa(topic.ID), tok, nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/questions/"+itoa(q.ID), "", nil, nil))
}

func TestCatalogAdminOnly(t *testing.T) {
	c := newAPI(t, true)
	c.register("alice")
	hash, err := bcrypt.GenerateFromPassword([]byte("password-root"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, c.users.EnsureAdmin(context.Background(), "root", string(hash)))

	assert.Equal(t, http.StatusForbidden, c.do("POST", "/topics/", c.login("alice"), map[string]string{"name": "Geo"}, nil))
	assert.Equal(t, http.StatusCreated, c.do("POST", "/topics/", c.login("root"), map[string]string{"name": "Geo"}, nil))
	assert.Equal(t, http.StatusOK, c.do("GET", "/topics/", "", nil, nil))
}

func TestTestTakingAndAnalytics(t *testing.T) {
	c := newAPI(t, false)
	c.register("alice")
	c.register("bob")
	alice, bob := c.login("alice"), c.login("bob")

	var topic catalog.Topic
	require.Equal(t, http.StatusCreated, c.do("POST", "/topics/", alice, map[string]string{"name": "Geo"}, &topic))
	var open, pick catalog.Question
	require.Equal(t, http.StatusCreated, c.do("POST", "/questions/", alice, map[string]any{
		"topic_id": topic.ID, "question_text": "Capital?", "question_type": "open_ended", "difficulty": 2, "correct_answer": "Paris",
	}, &open))
	require.Equal(t, http.StatusCreated, c.do("POST", "/questions/", alice, map[string]any{
		"topic_id": topic.ID, "question_text": "Ocean?", "question_type": "multiple_choice", "difficulty": 3,
	}, &pick))
	var right, wrong catalog.Option
	require.Equal(t, http.StatusCreated, c.do("POST", "/questions/"+itoa(pick.ID)+"/options", alice, map[string]any{"option_text": "Pacific", "is_correct": true}, &right))
	require.Equal(t, http.StatusCreated, c.do("POST", "/questions/"+itoa(pick.ID)+"/options", alice, map[string]any{"option_text": "Arctic"}, &wrong))

	var tst attempt.Test
	require.Equal(t, http.StatusCreated, c.do("POST", "/tests/", alice, map[string]any{"topic_id": topic.ID}, &tst))
	assert.Equal(t, http.StatusNotFound, c.do("POST", "/tests/", alice, map[string]any{"topic_id": 999}, nil))

	path := "/tests/" + itoa(tst.ID)
	var d detail
	assert.Equal(t, http.StatusConflict, c.do("PUT", path+"/complete", alice, nil, &d))
	assert.Equal(t, "No responses found for this test", d.Detail)

	var resp attempt.Response
	require.Equal(t, http.StatusCreated, c.do("POST", path+"/responses", alice, map[string]any{"question_id": open.ID, "response_text": "paris"}, &resp))
	assert.True(t, resp.IsCorrect)
	require.Equal(t, http.StatusCreated, c.do("POST", path+"/responses", alice, map[string]any{"question_id": pick.ID, "option_id": right.ID}, &resp))
	assert.True(t, resp.IsCorrect)
	require.Equal(t, http.StatusCreated, c.do("POST", path+"/responses", alice, map[string]any{"question_id": pick.ID, "option_id": wrong.ID}, &resp))
	assert.False(t, resp.IsCorrect)
	var other catalog.Question
	require.Equal(t, http.StatusCreated, c.do("POST", "/questions/", alice, map[string]any{
		"topic_id": topic.ID, "question_text": "Sky is blue", "question_type": "true_false", "difficulty": 1,
	}, &other))
	assert.Equal(t, http.StatusNotFound, c.do("POST", path+"/responses", alice, map[string]any{"question_id": other.ID, "option_id": right.ID}, nil),
		"option from another question")
	assert.Equal(t, http.StatusForbidden, c.do("POST", path+"/responses", bob, map[string]any{"question_id": open.ID, "response_text": "Paris"}, nil))
	assert.Equal(t, http.StatusForbidden, c.do("GET", path, bob, nil, nil))

	var done attempt.Detail
	require.Equal(t, http.StatusOK, c.do("PUT", path+"/complete", alice, nil, &done))
	require.NotNil(t, done.Score)
	assert.Equal(t, 66.67, *done.Score)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "Geo", done.TopicName)
	assert.Len(t, done.Responses, 3)

	assert.Equal(t, http.StatusConflict, c.do("PUT", path+"/complete", alice, nil, nil))
	assert.Equal(t, http.StatusConflict, c.do("POST", path+"/responses", alice, map[string]any{"question_id": open.ID, "response_text": "Paris"}, &d))
	assert.Equal(t, "Test is already completed", d.Detail)

	var list []attempt.Test
	require.Equal(t, http.StatusOK, c.do("GET", "/tests/?completed=true", alice, nil, &list))
	assert.Len(t, list, 1)
	require.Equal(t, http.StatusOK, c.do("GET", "/tests/?completed=false", alice, nil, &list))
	assert.Empty(t, list)
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/tests/?completed=maybe", alice, nil, nil))
	require.Equal(t, http.StatusOK, c.do("GET", "/tests/", bob, nil, &list))
	assert.Empty(t, list)

	var perf analytics.UserPerformance
	require.Equal(t, http.StatusOK, c.do("GET", "/analytics/performance/user?period=week", alice, nil, &perf))
	assert.Equal(t, 1, perf.TotalTests)
	assert.Equal(t, 66.67, perf.AverageScore)
	assert.Equal(t, 100.0, perf.CompletionRate)
	require.Len(t, perf.RecentScores, 1)

	require.Equal(t, http.StatusOK, c.do("GET", "/analytics/performance/user", bob, nil, &perf))
	assert.Equal(t, 0, perf.TotalTests)
	assert.Empty(t, perf.RecentScores)
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/analytics/performance/user?period=decade", alice, nil, nil))

	var topics []analytics.TopicPerformance
	require.Equal(t, http.StatusOK, c.do("GET", "/analytics/performance/topics", alice, nil, &topics))
	require.Len(t, topics, 1)
	assert.Equal(t, 3, topics[0].QuestionCount)
	assert.Equal(t, 0, topics[0].PerfectScores)

	var diff []analytics.QuestionDifficulty
	require.Equal(t, http.StatusOK, c.do("GET", "/analytics/questions/difficulty?topic_id="+itoa(topic.ID), alice, nil, &diff))
	require.Len(t, diff, 2)
	assert.Equal(t, pick.ID, diff[0].QuestionID)
	assert.Equal(t, 50.0, diff[0].SuccessRate)
	assert.Equal(t, 3, diff[0].PerceivedDifficulty)

	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/analytics/performance/topics", "", nil, nil))
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
