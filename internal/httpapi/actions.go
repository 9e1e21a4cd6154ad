package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"deskhogd/internal/actions"
	"deskhogd/internal/store"
	"deskhogd/pkg/types"
)

// form is the flattened request body; JSON objects and url-encoded forms
// both end up here.
type form map[string]string

// get returns the first non-empty value among names.
func (f form) get(names ...string) string {
	for _, n := range names {
		if v := f[n]; v != "" {
			return v
		}
	}
	return ""
}

// paramFunc turns a request body into action parameters.
type paramFunc func(form) ([]string, error)

func submitHandler(svc Service, kind actions.Kind, params paramFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := readForm(w, r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		args, err := params(f)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		a, err := svc.Submit(kind, args...)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, types.ActionResponse{
				Success: true,
				Status:  "queued",
				ID:      a.ID,
				Kind:    kind.String(),
			})
		case actions.IsQueueFull(err):
			IncrementBackpressure("queue_full")
			writeJSON(w, http.StatusTooManyRequests, types.ActionResponse{
				Status:  "queue_full",
				Kind:    kind.String(),
				Message: "action queue full, try again shortly",
			})
		default:
			writeJSONError(w, statusFor(err), err.Error())
		}
	}
}

// readForm accepts application/json objects, url-encoded and multipart
// forms. An empty body yields an empty form.
func readForm(w http.ResponseWriter, r *http.Request) (form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	f := form{}
	switch ct {
	case "application/json":
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return f, nil
			}
			return nil, errors.New("invalid JSON body")
		}
		for k, v := range raw {
			switch t := v.(type) {
			case string:
				f[k] = t
			case float64:
				f[k] = strconv.FormatFloat(t, 'f', -1, 64)
			case bool:
				f[k] = strconv.FormatBool(t)
			case nil:
			default:
				return nil, fmt.Errorf("field %q must be a string", k)
			}
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, errors.New("invalid form body")
		}
		for k, v := range r.Form {
			if len(v) > 0 {
				f[k] = v[0]
			}
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		for k, v := range r.Form {
			if len(v) > 0 {
				f[k] = v[0]
			}
		}
	}
	return f, nil
}

func noParams(form) ([]string, error) { return nil, nil }

func saveWiFiParams(f form) ([]string, error) {
	ssid := f.get("ssid")
	password := f.get("password")
	switch {
	case strings.TrimSpace(ssid) == "":
		return nil, badRequest("ssid is required")
	case len(ssid) > store.MaxSSIDLength:
		return nil, badRequest(fmt.Sprintf("ssid must be at most %d bytes", store.MaxSSIDLength))
	case len(password) > store.MaxPasswordLength:
		return nil, badRequest(fmt.Sprintf("password must be at most %d bytes", store.MaxPasswordLength))
	}
	return []string{ssid, password}, nil
}

func deviceConfigParams(f form) ([]string, error) {
	team := strings.TrimSpace(f.get("teamId", "team_id"))
	if team == "" {
		return nil, badRequest("teamId is required")
	}
	region := strings.ToLower(strings.TrimSpace(f.get("region")))
	switch region {
	case "", "us", "eu":
	default:
		return nil, badRequest("region must be us or eu")
	}
	return []string{team, strings.TrimSpace(f.get("apiKey", "api_key")), region}, nil
}

func saveInsightParams(f form) ([]string, error) {
	id := strings.TrimSpace(f.get("insightId", "id"))
	if id == "" {
		return nil, badRequest("insightId is required")
	}
	if len(id) > store.MaxInsightIDLength {
		return nil, badRequest(fmt.Sprintf("insightId must be at most %d bytes", store.MaxInsightIDLength))
	}
	return []string{id, strings.TrimSpace(f.get("title"))}, nil
}

func deleteInsightParams(f form) ([]string, error) {
	id := strings.TrimSpace(f.get("id", "insightId"))
	if id == "" {
		return nil, badRequest("id is required")
	}
	return []string{id}, nil
}

func startUpdateParams(f form) ([]string, error) {
	u := strings.TrimSpace(f.get("url", "downloadUrl"))
	if u != "" && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		return nil, badRequest("url must be http or https")
	}
	if u == "" {
		return nil, nil
	}
	return []string{u}, nil
}
