package publish

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"novacontent/internal/model"
)

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "production-1.mp4")
	if err := os.WriteFile(path, []byte("fake mp4 bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMetadataFor(t *testing.T) {
	p := &model.Production{Title: "T", Description: "D", Tags: []string{"#a"}}
	meta := MetadataFor(p, "/out/x.mp4", "unlisted")
	if meta.Title != "T" || meta.Description != "D" || meta.VideoPath != "/out/x.mp4" || meta.Privacy != "unlisted" {
		t.Errorf("MetadataFor() = %+v", meta)
	}
}

func TestLogPublisher(t *testing.T) {
	path := writeVideo(t)
	url, err := LogPublisher{}.Publish(context.Background(), Metadata{Title: "T", VideoPath: path})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if url != "file://"+path {
		t.Errorf("Publish() = %q", url)
	}

	if _, err := (LogPublisher{}).Publish(context.Background(), Metadata{VideoPath: "/nonexistent.mp4"}); err == nil {
		t.Error("expected error for missing file")
	}
}

func authWithToken(t *testing.T) *Auth {
	t.Helper()
	a := NewAuth("id", "secret", filepath.Join(t.TempDir(), "token.json"))
	a.token = &oauth2.Token{AccessToken: "access", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	return a
}

func TestYouTubePublish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("uploadType") != "multipart" {
			t.Errorf("uploadType = %q", r.URL.Query().Get("uploadType"))
		}

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])

		part, err := mr.NextPart()
		if err != nil {
			t.Errorf("metadata part: %v", err)
			return
		}
		var md videoMetadata
		if err := json.NewDecoder(part).Decode(&md); err != nil {
			t.Errorf("decode metadata: %v", err)
			return
		}
		if md.Snippet.Title != "Octopus Hearts" || md.Status.PrivacyStatus != "private" {
			t.Errorf("metadata = %+v", md)
		}

		part, err = mr.NextPart()
		if err != nil {
			t.Errorf("video part: %v", err)
			return
		}
		data, _ := io.ReadAll(part)
		if string(data) != "fake mp4 bytes" {
			t.Errorf("video bytes = %q", data)
		}

		_, _ = w.Write([]byte(`{"id":"abc123","kind":"youtube#video"}`))
	}))
	defer srv.Close()

	p := NewYouTubePublisher(authWithToken(t), withUploadURL(srv.URL))
	url, err := p.Publish(context.Background(), Metadata{Title: "Octopus Hearts", VideoPath: writeVideo(t)})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if url != "https://youtube.com/shorts/abc123" {
		t.Errorf("Publish() = %q", url)
	}
	if p.Platform() != "youtube" {
		t.Errorf("Platform() = %q", p.Platform())
	}
}

func TestYouTubePublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, `{"error":"quotaExceeded"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewYouTubePublisher(authWithToken(t), withUploadURL(srv.URL))
	_, err := p.Publish(context.Background(), Metadata{Title: "x", VideoPath: writeVideo(t)})
	if err == nil || !strings.Contains(err.Error(), "quotaExceeded") {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestAuthTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	a := NewAuth("id", "secret", path)
	if a.Authenticated() {
		t.Error("no token stored yet")
	}

	a.token = &oauth2.Token{AccessToken: "x", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}
	if err := a.SaveToken(); err != nil {
		t.Fatalf("SaveToken() error: %v", err)
	}

	b := NewAuth("id", "secret", path)
	if !b.Authenticated() {
		t.Error("expired token with refresh token should count as authenticated")
	}
	if !strings.Contains(b.AuthURL("state"), "access_type=offline") {
		t.Errorf("AuthURL() = %q", b.AuthURL("state"))
	}
}
