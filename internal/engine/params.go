package engine

import (
	"fmt"
	"maps"
	"strings"
)

// Upstream hosts.
const (
	Host     = "https://www.douyin.com"
	LiveHost = "https://live.douyin.com"
)

// DefaultUserAgent is the browser the baseline parameters describe.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// msTokenLength is the length of a generated msToken when the cookie has none.
const msTokenLength = 120

// baseParams describe a desktop Chrome web client. They override caller
// params with the same key.
var baseParams = map[string]string{
	"device_platform":     "webapp",
	"aid":                 "6383",
	"channel":             "channel_pc_web",
	"update_version_code": "170400",
	"pc_client_type":      "1",
	"version_code":        "190500",
	"version_name":        "19.5.0",
	"cookie_enabled":      "true",
	"screen_width":        "2560",
	"screen_height":       "1440",
	"browser_language":    "zh-CN",
	"browser_platform":    "Win32",
	"browser_name":        "Chrome",
	"browser_version":     "126.0.0.0",
	"browser_online":      "true",
	"engine_name":         "Blink",
	"engine_version":      "126.0.0.0",
	"os_name":             "Windows",
	"os_version":          "10",
	"cpu_core_num":        "24",
	"device_memory":       "8",
	"platform":            "PC",
	"downlink":            "10",
	"effective_type":      "4g",
	"round_trip_time":     "50",
}

var baseHeaders = map[string]string{
	"User-Agent":         DefaultUserAgent,
	"sec-fetch-site":     "same-origin",
	"sec-fetch-mode":     "cors",
	"sec-fetch-dest":     "empty",
	"sec-ch-ua-platform": "Windows",
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua":          `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`,
	"referer":            Host + "/?recommend=1",
	"priority":           "u=1, i",
	"pragma":             "no-cache",
	"cache-control":      "no-cache",
	"accept-language":    "zh-CN,zh;q=0.9,en;q=0.8",
	"accept":             "application/json, text/plain, */*",
	"dnt":                "1",
}

// cookieParams maps a cookie name to the query parameter it feeds.
var cookieParams = []struct{ cookie, param string }{
	{"dy_swidth", "screen_width"},
	{"dy_sheight", "screen_height"},
	{"device_web_cpu_core", "cpu_core_num"},
	{"device_web_memory_size", "device_memory"},
	{"s_v_web_id", "verifyFp"},
	{"s_v_web_id", "fp"},
}

// profile is the per-Request browser identity: headers and the parameters
// that must agree with them.
type profile struct {
	userAgent string
	headers   map[string]string
	params    map[string]string
}

// newProfile derives headers and params for userAgent. A UA without a
// Chrome/x.y.z.w token keeps the default client hints.
func newProfile(userAgent string) profile {
	p := profile{
		userAgent: DefaultUserAgent,
		headers:   maps.Clone(baseHeaders),
		params:    maps.Clone(baseParams),
	}
	if userAgent == "" || userAgent == DefaultUserAgent {
		return p
	}

	p.userAgent = userAgent
	p.headers["User-Agent"] = userAgent
	version, ok := chromeVersion(userAgent)
	if !ok {
		return p
	}
	major, _, _ := strings.Cut(version, ".")
	p.headers["sec-ch-ua"] = fmt.Sprintf(`"Chromium";v="%s", "Not(A:Brand";v="24", "Google Chrome";v="%s"`, major, major)
	p.params["browser_version"] = version
	p.params["engine_version"] = version
	return p
}

// chromeVersion extracts "126.0.0.0" from "... Chrome/126.0.0.0 Safari/...".
func chromeVersion(ua string) (string, bool) {
	_, rest, ok := strings.Cut(ua, " Chrome/")
	if !ok {
		return "", false
	}
	version, _, _ := strings.Cut(rest, " ")
	if version == "" {
		return "", false
	}
	return version, true
}

// buildParams merges caller params with the baseline and the values derived
// from cookies. webid is appended by the caller.
func (p profile) buildParams(caller map[string]string, cookies map[string]string) map[string]string {
	out := make(map[string]string, len(caller)+len(p.params)+8)
	maps.Copy(out, caller)
	maps.Copy(out, p.params)

	if tok := cookies["msToken"]; tok != "" {
		out["msToken"] = tok
	} else {
		out["msToken"] = randomToken(msTokenLength)
	}
	for _, cp := range cookieParams {
		if v, ok := cookies[cp.cookie]; ok && v != "" {
			out[cp.param] = v
		}
	}
	return out
}
