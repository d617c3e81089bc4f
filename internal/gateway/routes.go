package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_douyin/internal/toolutil"
)

// RoutePrefix is where proxy routes are mounted.
const RoutePrefix = "/aweme/v1/web"

const (
	errCookie         = "Check your Cookie!"
	errCookieReferer  = "Check your Cookie and Referer!"
	recRawDataClient  = `{"is_client":false}`
	recRawDataPlayer  = `{"is_client":false,"ff_danmaku_status":1,"danmaku_switch_status":1,"is_auto_play":0,"is_full_screen":0,"is_full_webscreen":0,"is_mute":0,"is_speed":1,"is_visible":1,"related_recommend":1}`
	recRawDataModules = `{"is_xigua_user":0,"is_client":false}`
)

// Route maps a local proxy path to one upstream endpoint.
type Route struct {
	Path      string            // below RoutePrefix
	URI       string            // upstream path
	Params    []string          // query args forwarded from the caller
	Required  []string          // missing ones answer 400
	Fixed     map[string]string // always sent, override caller args
	Form      []string          // caller args sent as a POST form instead of the query
	Live      bool
	Cacheable bool

	// FailStatus and What shape the error when the upstream returns nothing.
	FailStatus int
	What       string
	Hint       string
}

// failMessage renders the empty-result error text.
func (r Route) failMessage() string {
	return "Failed to retrieve " + r.What + "; " + r.Hint
}

// split separates caller args into query params and form body. Unknown
// args are dropped and fixed params win.
func (r Route) split(args map[string]string) (params, body map[string]string) {
	params = make(map[string]string, len(r.Params))
	for _, k := range r.Params {
		params[k] = args[k]
	}
	params = toolutil.MergeParams(params, r.Fixed)
	if len(r.Form) > 0 {
		body = make(map[string]string, len(r.Form))
		for _, k := range r.Form {
			body[k] = args[k]
		}
		body = toolutil.MergeParams(body, nil)
	}
	return params, body
}

// missing returns the first required arg absent from args.
func (r Route) missing(args map[string]string) string {
	for _, k := range r.Required {
		if strings.TrimSpace(args[k]) == "" {
			return k
		}
	}
	return ""
}

// RouteError is a route call that produced no data.
type RouteError struct {
	Status  int
	Message string
}

func (e *RouteError) Error() string { return e.Message }

// FindRoute looks a route up by its path below RoutePrefix.
func FindRoute(path string) (Route, bool) {
	path = "/" + strings.Trim(strings.TrimPrefix(strings.TrimSpace(path), RoutePrefix), "/")
	for _, rt := range Routes {
		if strings.TrimSuffix(rt.Path, "/") == path {
			return rt, true
		}
	}
	return Route{}, false
}

// CallRoute runs rt for account with the caller's args.
func (g *Gateway) CallRoute(ctx context.Context, rt Route, name string, args map[string]string) (map[string]any, error) {
	if k := rt.missing(args); k != "" {
		return nil, &RouteError{Status: http.StatusBadRequest, Message: "Missing " + k + " parameter"}
	}
	params, body := rt.split(args)
	out := g.Fetch(ctx, name, rt.URI, params, body, rt.Live, rt.Cacheable)
	if len(out) == 0 {
		return nil, &RouteError{Status: rt.failStatus(), Message: rt.failMessage()}
	}
	return out, nil
}

func (r Route) failStatus() int {
	if r.FailStatus == 0 {
		return http.StatusForbidden
	}
	return r.FailStatus
}

// Routes is the proxy table.
var Routes = []Route{
	// video
	{
		Path: "/aweme/detail/", URI: "/aweme/v1/web/aweme/detail/",
		Params: []string{"aweme_id"}, Required: []string{"aweme_id"},
		Cacheable: true, FailStatus: http.StatusNotFound, What: "aweme detail", Hint: errCookie,
	},
	{
		Path: "/aweme/related/", URI: "/aweme/v1/web/aweme/related/",
		Params: []string{"aweme_id", "count", "filterGids", "refresh_index"}, Required: []string{"aweme_id"},
		Fixed:      map[string]string{"awemePcRecRawData": recRawDataClient, "sub_channel_id": "0", "Seo-Flag": "0"},
		FailStatus: http.StatusNotFound, What: "related videos", Hint: errCookie,
	},
	{
		Path: "/comment/list/", URI: "/aweme/v1/web/comment/list/",
		Params:    []string{"aweme_id", "cursor", "count"},
		Cacheable: true, FailStatus: http.StatusNotFound, What: "comment list", Hint: errCookie,
	},
	{
		Path: "/comment/list/reply/", URI: "/aweme/v1/web/comment/list/reply/",
		Params:    []string{"item_id", "comment_id", "cursor", "count"},
		Cacheable: true, FailStatus: http.StatusNotFound, What: "comment replies", Hint: errCookie,
	},
	{
		Path: "/module/feed/", URI: "/aweme/v1/web/module/feed/",
		Params: []string{"count", "refresh_index"},
		Fixed: map[string]string{
			"video_type_select": "1", "module_id": "3003101", "refer_type": "10",
			"aweme_pc_rec_raw_data": recRawDataModules,
		},
		What: "module feed", Hint: errCookieReferer,
	},
	{
		Path: "/tab/feed/", URI: "/aweme/v1/web/tab/feed/",
		Params: []string{"count", "refresh_index"},
		Fixed:  map[string]string{"video_type_select": "1", "aweme_pc_rec_raw_data": recRawDataPlayer},
		What:   "recommend list", Hint: errCookieReferer,
	},
	{
		Path: "/web/tab/feed/", URI: "/aweme/v1/web/tab/feed/",
		Params: []string{"count", "refresh_index"},
		Fixed:  map[string]string{"video_type_select": "1", "aweme_pc_rec_raw_data": recRawDataPlayer},
		What:   "tab feed", Hint: errCookieReferer,
	},
	{
		Path: "/commit/item/digg/", URI: "/aweme/v1/web/commit/item/digg/",
		Form: []string{"aweme_id", "type", "item_type"}, Required: []string{"aweme_id"},
		What: "digg result", Hint: errCookieReferer,
	},

	// user
	{Path: "/user/profile/self/", URI: "/aweme/v1/web/user/profile/self/", What: "userinfo", Hint: errCookieReferer},
	{
		Path: "/user/profile/other/", URI: "/aweme/v1/web/user/profile/other/",
		Params:    []string{"sec_user_id"},
		Fixed:     map[string]string{"source": "channel_pc_web", "publish_video_strategy_type": "2", "personal_center_strategy": "1"},
		Cacheable: true, What: "userinfo", Hint: errCookieReferer,
	},
	{
		Path: "/aweme/post/", URI: "/aweme/v1/web/aweme/post/",
		Params: []string{"sec_user_id", "count", "max_cursor", "locate_item_id", "need_time_list", "locate_query", "forward_end_cursor"},
		Fixed:  map[string]string{"show_live_replay_strategy": "1", "publish_video_strategy_type": "2"},
		What:   "user posts", Hint: errCookieReferer,
	},
	{
		Path: "/aweme/favorite/", URI: "/aweme/v1/web/aweme/favorite/",
		Params: []string{"sec_user_id", "count", "min_cursor", "max_cursor"},
		What:   "favorite list", Hint: errCookieReferer,
	},
	{Path: "/aweme/listcollection/", URI: "/aweme/v1/web/aweme/listcollection/", Params: []string{"count", "cursor"}, What: "collection list", Hint: errCookieReferer},
	{Path: "/music/listcollection/", URI: "/aweme/v1/web/music/listcollection/", Params: []string{"count", "cursor"}, What: "music collection", Hint: errCookieReferer},
	{Path: "/collects/list/", URI: "/aweme/v1/web/collects/list/", Params: []string{"count", "cursor"}, What: "collects list", Hint: errCookieReferer},
	{Path: "/collects/video/list/", URI: "/aweme/v1/web/collects/video/list/", Params: []string{"collects_id", "count", "cursor"}, What: "collects videos", Hint: errCookieReferer},
	{Path: "/mix/listcollection/", URI: "/aweme/v1/web/mix/listcollection/", Params: []string{"count", "cursor"}, What: "mix collection", Hint: errCookieReferer},
	{Path: "/series/collections/", URI: "/aweme/v1/web/series/collections", Params: []string{"count", "cursor"}, What: "series collection", Hint: errCookieReferer},
	{Path: "/mix/list/", URI: "/aweme/v1/web/mix/list/", Params: []string{"sec_user_id", "count", "cursor"}, What: "mix list", Hint: errCookieReferer},
	{Path: "/mix/aweme/", URI: "/aweme/v1/web/mix/aweme/", Params: []string{"mix_id", "count", "cursor"}, Cacheable: true, What: "mix videos", Hint: errCookieReferer},
	{Path: "/history/read/", URI: "/aweme/v1/web/history/read/", Params: []string{"count", "max_cursor"}, What: "history_read", Hint: errCookieReferer},
	{Path: "/lvideo/query/history/", URI: "/aweme/v1/web/lvideo/query/history/", Params: []string{"count", "cursor"}, What: "history_read", Hint: errCookieReferer},
	{
		Path: "/follow/feed/", URI: "/aweme/v1/web/follow/feed/",
		Params: []string{"cursor", "level", "count", "pull_type", "refresh_type", "aweme_ids", "room_ids"},
		What:   "follow feed", Hint: errCookieReferer,
	},
	{
		Path: "/webcast/feed/", URI: "/webcast/feed/",
		Params: []string{"max_time"},
		Fixed:  map[string]string{"live_id": "1", "source_key": "drawer_hot_live_history", "need_map": "1"},
		What:   "live history", Hint: errCookieReferer,
	},
	{Path: "/im/spotlight/relation/", URI: "/aweme/v1/web/im/spotlight/relation/", Params: []string{"count", "min_time", "max_time"}, What: "relation list", Hint: errCookieReferer},
	{
		Path: "/user/following/list/", URI: "/aweme/v1/web/user/following/list/",
		Params: []string{"user_id", "sec_user_id", "count", "source_type", "offset", "min_time", "max_time"},
		What:   "following list", Hint: errCookieReferer,
	},
	{
		Path: "/user/follower/list/", URI: "/aweme/v1/web/user/follower/list/",
		Params: []string{"user_id", "sec_user_id", "count", "source_type", "offset", "min_time", "max_time"},
		What:   "follower list", Hint: errCookieReferer,
	},
	{
		Path: "/home/search/item/", URI: "/aweme/v1/web/home/search/item/",
		Params: []string{"search_channel", "keyword", "from_user", "count", "offset"},
		What:   "user search", Hint: errCookieReferer,
	},

	// search
	{
		Path: "/general/search/single/", URI: "/aweme/v1/web/general/search/single/",
		Params: []string{"keyword", "offset", "count", "list_type", "filter_selected"}, Required: []string{"keyword"},
		Fixed: map[string]string{
			"search_channel": "aweme_general", "enable_history": "enable_history",
			"query_correct_type": "1", "need_filter_settings": "need_filter_settings",
		},
		Cacheable: true, What: "search_data", Hint: errCookieReferer,
	},
	{
		Path: "/api/suggest_words/", URI: "/aweme/v1/web/api/suggest_words/",
		Params: []string{"query", "count", "from_group_id"}, Fixed: map[string]string{"business_id": "30068"},
		Cacheable: true, What: "suggest_words", Hint: errCookieReferer,
	},

	// common
	{Path: "/seo/inner/link/", URI: "/aweme/v1/web/seo/inner/link/", Fixed: map[string]string{"channel": "channel_pc_web"}, Cacheable: true, What: "seo_link", Hint: errCookieReferer},
	{Path: "/emoji/list/", URI: "/aweme/v1/web/emoji/list", Fixed: map[string]string{"channel": "channel_pc_web"}, Cacheable: true, What: "emoji_list", Hint: errCookieReferer},
	{Path: "/im/resources/emoticon/trending", URI: "/aweme/v1/web/im/resources/emoticon/trending", Params: []string{"cursor", "count"}, What: "emoticon_list", Hint: errCookieReferer},
	{Path: "/hot/search/list/", URI: "/aweme/v1/web/hot/search/list/", Cacheable: true, What: "hot_list", Hint: errCookieReferer},
	{Path: "/home/channel/setting/", URI: "/aweme/v1/web/home/channel/setting/", Fixed: map[string]string{"channel": "channel_pc_web"}, Cacheable: true, What: "channel_setting", Hint: errCookieReferer},

	// live
	{
		Path: "/webcast/room/info_by_scene/", URI: "/webcast/room/info_by_scene/",
		Params: []string{"room_id"}, Required: []string{"room_id"},
		Fixed: map[string]string{"live_id": "1", "scene": "aweme_video_feed_pc", "region": "cn"},
		Live:  true, FailStatus: http.StatusNotFound, What: "live room info", Hint: errCookie,
	},
}
