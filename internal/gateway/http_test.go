package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_douyin/internal/engine"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var out apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAccountAPI(t *testing.T) {
	up := &upstream{reply: profileReply(`{}`)}
	gw, store := newTestGateway(t, up, nil)
	h := gw.Handler()
	const jsonCT = "application/json"

	rec := do(t, h, http.MethodPost, "/api/v1/account/add", jsonCT, `{"name":"main","cookie":"`+enc("sessionid=s")+`","description":"d"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, 0, resp.Code)
	assert.JSONEq(t, `{"name":"main"}`, string(resp.Data))
	assert.Equal(t, 1, store.Len())

	rec = do(t, h, http.MethodPost, "/api/v1/account/add", jsonCT, `{"name":"main","cookie":"`+enc("sessionid=s")+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, decodeEnvelope(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/v1/account/add", jsonCT, `{"name":"bad","cookie":"sessionid=s"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/account/list", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "main", list.Accounts[0].Name)
	assert.NotContains(t, rec.Body.String(), enc("sessionid=s"))

	rec = do(t, h, http.MethodPost, "/api/v1/account/update", jsonCT, `{"name":"ghost","description":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/account/update", jsonCT, `{"name":"main","description":"renamed"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	cred, _ := store.Get("main")
	assert.Equal(t, "renamed", cred.Description)

	rec = do(t, h, http.MethodPost, "/api/v1/account/test", jsonCT, `{"name":"main"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var tr TestResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &tr))
	assert.True(t, tr.Valid)

	rec = do(t, h, http.MethodPost, "/api/v1/account/test", jsonCT, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/account/get-cookie", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cr CookieResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &cr))
	assert.Equal(t, enc("sessionid=s"), cr.Cookie)

	rec = do(t, h, http.MethodPost, "/api/v1/account/delete", jsonCT, `{"name":"main"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/account/delete", jsonCT, `{"name":"main"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/account/get-cookie", jsonCT, `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountAPIBadBody(t *testing.T) {
	gw, _ := newTestGateway(t, &upstream{}, nil)
	h := gw.Handler()

	for _, body := range []string{"", "[1,2]", "{nope"} {
		rec := do(t, h, http.MethodPost, "/api/v1/account/add", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, 1, decodeEnvelope(t, rec).Code)
	}
}

func TestAccountAPIForm(t *testing.T) {
	up := &upstream{}
	gw, store := newTestGateway(t, up, nil)
	form := url.Values{"name": {"f"}, "cookie": {enc("a=1")}, "testLogin": {"false"}}

	rec := do(t, gw.Handler(), http.MethodPost, "/api/v1/account/add", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, up.apiCalls(), "login test skipped")
}

func TestAccountAPIAddNotLoggedIn(t *testing.T) {
	gw, store := newTestGateway(t, &upstream{reply: jsonReply(`{"user":null}`)}, nil)
	rec := do(t, gw.Handler(), http.MethodPost, "/api/v1/account/add", "application/json", `{"name":"x","cookie":"`+enc("a=1")+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, store.Len())
}

func TestProxyRoute(t *testing.T) {
	up := &upstream{reply: jsonReply(`{"aweme_detail":{"aweme_id":"42"}}`)}
	gw, _ := newTestGateway(t, up, nil)

	rec := do(t, gw.Handler(), http.MethodGet, "/aweme/v1/web/aweme/detail/?aweme_id=42&junk=1", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"aweme_detail":{"aweme_id":"42"}}`, rec.Body.String())

	calls := up.apiCalls()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].URL, engine.Host+"/aweme/v1/web/aweme/detail/?"))
	q := queryOf(t, calls[0])
	assert.Equal(t, "42", q.Get("aweme_id"))
	assert.Equal(t, "webapp", q.Get("device_platform"))
	assert.False(t, q.Has("junk"))
}

func TestProxyFixedParams(t *testing.T) {
	up := &upstream{reply: jsonReply(`{"data":[]}`)}
	gw, _ := newTestGateway(t, up, nil)

	rec := do(t, gw.Handler(), http.MethodGet, "/aweme/v1/web/general/search/single/?keyword=cat&count=10&search_channel=evil", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	q := queryOf(t, up.apiCalls()[0])
	assert.Equal(t, "cat", q.Get("keyword"))
	assert.Equal(t, "10", q.Get("count"))
	assert.Equal(t, "aweme_general", q.Get("search_channel"))
	assert.False(t, q.Has("offset"), "empty args are not forwarded")
}

func TestProxyMissingParam(t *testing.T) {
	up := &upstream{}
	gw, _ := newTestGateway(t, up, nil)

	rec := do(t, gw.Handler(), http.MethodGet, "/aweme/v1/web/aweme/detail/", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing aweme_id parameter"}`, rec.Body.String())
	assert.Empty(t, up.apiCalls())
}

func TestProxyEmptyResult(t *testing.T) {
	up := &upstream{reply: func(*engine.Outbound) *engine.Inbound { return &engine.Inbound{Status: 200} }}
	gw, _ := newTestGateway(t, up, nil)
	h := gw.Handler()

	rec := do(t, h, http.MethodGet, "/aweme/v1/web/user/profile/other/?sec_user_id=U", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to retrieve userinfo; Check your Cookie and Referer!"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/aweme/v1/web/aweme/detail/?aweme_id=1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyUserAccount(t *testing.T) {
	up := &upstream{reply: jsonReply(`{"ok":true}`)}
	gw, store := newTestGateway(t, up, nil)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "a", enc("sessionid=A"), ""))
	require.NoError(t, store.Add(ctx, "b", enc("sessionid=B"), ""))

	rec := do(t, gw.Handler(), http.MethodGet, "/aweme/v1/web/comment/list/?aweme_id=1&user_account=b", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	calls := up.apiCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "B", calls[0].Cookies["sessionid"])
	assert.False(t, queryOf(t, calls[0]).Has("user_account"))
	assert.Equal(t, engine.Host+"/video/1", calls[0].Headers["referer"])
}

func TestProxyFormRoute(t *testing.T) {
	up := &upstream{reply: jsonReply(`{"status_code":0}`)}
	gw, _ := newTestGateway(t, up, nil)

	rec := do(t, gw.Handler(), http.MethodGet, "/aweme/v1/web/commit/item/digg/?aweme_id=9&type=1&item_type=0", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	calls := up.apiCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	form, err := url.ParseQuery(string(calls[0].Body))
	require.NoError(t, err)
	assert.Equal(t, "9", form.Get("aweme_id"))
	assert.Equal(t, "1", form.Get("type"))
}

func TestProxyLiveRoute(t *testing.T) {
	up := &upstream{reply: jsonReply(`{"data":{}}`)}
	gw, _ := newTestGateway(t, up, nil)

	rec := do(t, gw.Handler(), http.MethodGet, "/aweme/v1/web/webcast/room/info_by_scene/?room_id=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(up.apiCalls()[0].URL, engine.LiveHost+"/webcast/room/info_by_scene/?"))
}

func TestFindRoute(t *testing.T) {
	for _, p := range []string{"/aweme/detail/", "aweme/detail", "/aweme/v1/web/aweme/detail/"} {
		rt, ok := FindRoute(p)
		require.True(t, ok, p)
		assert.Equal(t, "/aweme/v1/web/aweme/detail/", rt.URI)
	}
	rt, ok := FindRoute("/im/resources/emoticon/trending")
	require.True(t, ok)
	assert.Equal(t, "/aweme/v1/web/im/resources/emoticon/trending", rt.URI)
	_, ok = FindRoute("/nope/")
	assert.False(t, ok)
}

func TestProxyFeedRoutes(t *testing.T) {
	tests := []struct {
		target string
		uri    string
		param  string
	}{
		{"/aweme/v1/web/web/tab/feed/?count=10&refresh_index=3", "/aweme/v1/web/tab/feed/", "refresh_index"},
		{"/aweme/v1/web/lvideo/query/history/?count=20&cursor=5", "/aweme/v1/web/lvideo/query/history/", "cursor"},
		{"/aweme/v1/web/follow/feed/?cursor=0&level=1&count=20&pull_type=18", "/aweme/v1/web/follow/feed/", "pull_type"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			up := &upstream{reply: jsonReply(`{"aweme_list":[]}`)}
			gw, _ := newTestGateway(t, up, nil)

			rec := do(t, gw.Handler(), http.MethodGet, tt.target, "", "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			calls := up.apiCalls()
			require.Len(t, calls, 1)
			assert.True(t, strings.HasPrefix(calls[0].URL, engine.Host+tt.uri+"?"), calls[0].URL)
			assert.NotEmpty(t, queryOf(t, calls[0]).Get(tt.param))
		})
	}
}

func TestRoutesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, rt := range Routes {
		assert.False(t, seen[rt.Path], rt.Path)
		seen[rt.Path] = true
		assert.NotEmpty(t, rt.What, rt.Path)
	}
}
