package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_douyin/internal/toolutil"
)

// AccountPrefix is where the account admin API is mounted.
const AccountPrefix = "/api/v1/account"

const maxRequestBody = 1 << 20

// envelope is the admin API response shape. Code is 0 on success, 1 otherwise.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Handler returns the REST surface: the account admin API and the proxy routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+AccountPrefix+"/list", g.handleList)
	mux.HandleFunc("POST "+AccountPrefix+"/add", g.handleAdd)
	mux.HandleFunc("POST "+AccountPrefix+"/update", g.handleUpdate)
	mux.HandleFunc("POST "+AccountPrefix+"/delete", g.handleDelete)
	mux.HandleFunc("POST "+AccountPrefix+"/test", g.handleTest)
	mux.HandleFunc("POST "+AccountPrefix+"/get-cookie", g.handleGetCookie)
	for _, rt := range Routes {
		mux.HandleFunc("GET "+RoutePrefix+rt.Path, g.proxy(rt))
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "accounts": g.store.Len()})
	})
	return mux
}

func (g *Gateway) handleList(w http.ResponseWriter, _ *http.Request) {
	ok(w, "success", g.admin.List())
}

func (g *Gateway) handleAdd(w http.ResponseWriter, r *http.Request) {
	var in AddInput
	if err := decodeBody(r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := g.admin.Add(r.Context(), in); err != nil {
		adminFail(w, "add account", err)
		return
	}
	ok(w, "account added", map[string]string{"name": strings.TrimSpace(in.Name)})
}

func (g *Gateway) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := decodeBody(r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := g.admin.Update(r.Context(), in); err != nil {
		adminFail(w, "update account", err)
		return
	}
	ok(w, "account updated", map[string]string{"name": strings.TrimSpace(in.Name)})
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := g.admin.Delete(r.Context(), in.Name); err != nil {
		adminFail(w, "delete account", err)
		return
	}
	ok(w, "account deleted", map[string]string{"name": strings.TrimSpace(in.Name)})
}

func (g *Gateway) handleTest(w http.ResponseWriter, r *http.Request) {
	var in TestInput
	if err := decodeBody(r, &in); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := g.admin.Test(r.Context(), in)
	if err != nil {
		adminFail(w, "test cookie", err)
		return
	}
	ok(w, "cookie test finished", res)
}

// handleGetCookie accepts an empty or unparsable body as "pick any account".
func (g *Gateway) handleGetCookie(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	_ = decodeBody(r, &in)
	res, err := g.admin.GetCookie(r.Context(), in.Name)
	if err != nil {
		adminFail(w, "get cookie", err)
		return
	}
	ok(w, "cookie selected", res)
}

// proxy serves one route. user_account pins the request to a stored account.
func (g *Gateway) proxy(rt Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		args := make(map[string]string, len(q))
		for k := range q {
			args[k] = q.Get(k)
		}
		name := toolutil.NormAccount(args["user_account"])

		out, err := g.CallRoute(r.Context(), rt, name, args)
		if err != nil {
			var re *RouteError
			if !errors.As(err, &re) {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if re.Status != http.StatusBadRequest {
				slog.Warn("proxy: empty upstream result",
					slog.String("route", rt.Path),
					slog.String("account", name),
				)
			}
			writeJSON(w, re.Status, map[string]string{"error": re.Message})
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// decodeBody reads a JSON object or a urlencoded form into v.
func decodeBody(r *http.Request, v any) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return errors.New("invalid form body")
		}
		m := make(map[string]any, len(r.PostForm))
		for k := range r.PostForm {
			val := r.PostForm.Get(k)
			switch strings.ToLower(val) {
			case "true":
				m[k] = true
			case "false":
				m[k] = false
			default:
				m[k] = val
			}
		}
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, v)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New("request body must be a JSON object")
	}
	return nil
}

func ok(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: 0, Message: msg, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Code: 1, Message: msg})
}

// adminFail maps an admin error to its HTTP status.
func adminFail(w http.ResponseWriter, op string, err error) {
	var ae *AdminError
	if !errors.As(err, &ae) {
		slog.Error(op+" failed", slog.Any("error", err))
		fail(w, http.StatusInternalServerError, op+" failed: "+err.Error())
		return
	}
	status := http.StatusBadRequest
	if ae.Code == CodeNotFound {
		status = http.StatusNotFound
	}
	fail(w, status, ae.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing JSON response", slog.Any("error", err))
	}
}
