package engine

import "strings"

const (
	userPage        = Host + "/user/"
	favoritesPage   = Host + "/user/self?from_tab_name=main&showTab=favorite_collection"
	musicFavPage    = Host + "/user/self?from_tab_name=main&showSubTab=music&showTab=favorite_collection"
	favFoldersPage  = Host + "/user/self?from_tab_name=main&showSubTab=favorite_folder&showTab=favorite_collection"
	videoPagePrefix = Host + "/video/"
)

// refererRoutes holds the endpoints whose anti-abuse check wants the referer
// of the page that would have issued the call. Keys match the uri exactly.
// Templates use {param} placeholders filled from the final query params.
var refererRoutes = map[string]string{
	"/aweme/v1/web/aweme/related/":         videoPagePrefix + "{aweme_id}",
	"/aweme/v1/web/comment/list/":          videoPagePrefix + "{aweme_id}",
	"/aweme/v1/web/comment/list/reply/":    videoPagePrefix + "{item_id}",
	"/aweme/v1/web/user/profile/other/":    userPage + "{sec_user_id}?",
	"/aweme/v1/web/aweme/post/":            userPage + "{sec_user_id}?",
	"/aweme/v1/web/im/spotlight/relation/": userPage,
	"/aweme/v1/web/user/following/list/":   userPage,
	"/aweme/v1/web/user/follower/list/":    userPage,
	"/aweme/v1/web/aweme/favorite/":        userPage,
	"/aweme/v1/web/aweme/listcollection/":  favoritesPage,
	"/aweme/v1/web/music/listcollection/":  musicFavPage,
	"/aweme/v1/web/collects/video/list/":   favFoldersPage,
	"/aweme/v1/web/collects/list/":         favFoldersPage,
	"/aweme/v1/web/mix/listcollection/":    favFoldersPage,
	"/aweme/v1/web/series/collections":     favFoldersPage,
	"/aweme/v1/web/mix/list/":              userPage,
	"/aweme/v1/web/home/search/item/":      userPage,
	"/aweme/v1/web/seo/inner/link/":        userPage,
}

// refererFor returns the referer required by uri, or false when the uri has
// no entry and the previous referer should be kept. Missing params render
// as "None".
func refererFor(uri string, params map[string]string) (string, bool) {
	tmpl, ok := refererRoutes[uri]
	if !ok {
		return "", false
	}
	if !strings.Contains(tmpl, "{") {
		return tmpl, true
	}
	for _, key := range []string{"aweme_id", "item_id", "sec_user_id"} {
		ph := "{" + key + "}"
		if !strings.Contains(tmpl, ph) {
			continue
		}
		v, ok := params[key]
		if !ok {
			v = "None"
		}
		tmpl = strings.ReplaceAll(tmpl, ph, v)
	}
	return tmpl, true
}
