package opencapapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"opencap/internal/auth"
	"opencap/internal/opencapapi"
	"opencap/internal/services"
	"opencap/internal/testsupport"
)

func newClient(t *testing.T, handler http.Handler) *opencapapi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := opencapapi.New(server.URL, auth.StaticToken("secret"), opencapapi.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestSessionDecodesTrials(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/abc/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = io.WriteString(w, `{"id":"abc","trials":[
			{"id":"t1","name":"calibration","created_at":"2023-01-25T19:50:23.123456Z"},
			{"id":"t2","name":"neutral","created_at":"2023-01-25T19:52:00Z"}]}`)
	}))

	session, err := client.Session(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(session.Trials) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(session.Trials))
	}
	if session.Trials[0].Name != "calibration" || session.Trials[1].ID != "t2" {
		t.Fatalf("unexpected trials: %+v", session.Trials)
	}
	if session.Trials[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to be parsed")
	}
}

func TestStatusCodesMapToMarkers(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusUnauthorized, services.ErrAuth},
		{http.StatusForbidden, services.ErrAuth},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusInternalServerError, services.ErrRemote},
	}
	for _, tc := range cases {
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		_, err := client.Session(context.Background(), "missing")
		if !errors.Is(err, tc.marker) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.marker, err)
		}
	}
}

func TestMissingTokenFailsBeforeRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client, err := opencapapi.New(server.URL, auth.StaticToken(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Session(context.Background(), "abc"); !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if called {
		t.Fatal("request should not be sent without a token")
	}
}

func TestBaseURLPrefixIsPreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/trials/t9/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id":"t9","name":"C90_L1"}`)
	}))
	defer server.Close()

	client, err := opencapapi.New(server.URL+"/api", auth.StaticToken("x"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	trial, err := client.Trial(context.Background(), "t9")
	if err != nil {
		t.Fatalf("Trial: %v", err)
	}
	if trial.Name != "C90_L1" {
		t.Fatalf("unexpected trial %+v", trial)
	}
}

func TestPostResultSendsMultipartFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "C90_L1.json")
	testsupport.WriteFile(t, path, `{"frames":[]}`)

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/results/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		for key, want := range map[string]string{"trial": "t1", "tag": opencapapi.TagVisualizerJSON, "device_id": "all"} {
			if got := r.FormValue(key); got != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(r.FormValue("meta")), &meta); err != nil {
			t.Errorf("decode meta: %v", err)
		}
		if meta["trial_name"] != "C90_L1" {
			t.Errorf("unexpected meta %v", meta)
		}
		file, header, err := r.FormFile("media")
		if err != nil {
			t.Errorf("media: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "C90_L1.json" || string(data) != `{"frames":[]}` {
			t.Errorf("unexpected media %s %q", header.Filename, data)
		}
		_, _ = io.WriteString(w, `{"id":17,"tag":"visualizerTransforms-json"}`)
	}))

	result, err := client.PostResult(context.Background(), opencapapi.Upload{
		TrialID:  "t1",
		Tag:      opencapapi.TagVisualizerJSON,
		DeviceID: "all",
		Path:     path,
		Meta:     map[string]any{"trial_name": "C90_L1"},
	})
	if err != nil {
		t.Fatalf("PostResult: %v", err)
	}
	if result.ID != 17 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPostResultRequiresFile(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())
	_, err := client.PostResult(context.Background(), opencapapi.Upload{TrialID: "t1", Tag: "x", Path: "/does/not/exist"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDeleteResultsByTag(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/trials/t1/":
			_, _ = io.WriteString(w, `{"id":"t1","name":"C90_L1","results":[
				{"id":1,"tag":"visualizerTransforms-json"},
				{"id":2,"tag":"ik_results"},
				{"id":3,"tag":"visualizerTransforms-json"}]}`)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/results/"):
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	count, err := client.DeleteResultsByTag(context.Background(), "t1", opencapapi.TagVisualizerJSON)
	if err != nil {
		t.Fatalf("DeleteResultsByTag: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deletions, got %d", count)
	}
	if strings.Join(deleted, ",") != "/results/1/,/results/3/" {
		t.Fatalf("unexpected deletions %v", deleted)
	}
}

func TestNewFromConfigUsesConfiguredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token from-config" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIBaseURL(server.URL+"/"),
		testsupport.WithToken("from-config"),
	)
	client, err := opencapapi.NewFromConfig(cfg, auth.NewProvider(cfg), nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
