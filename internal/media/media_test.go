package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "clip.webm" {
			t.Errorf("unexpected filename %s", hdr.Filename)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "fake audio" {
			t.Errorf("unexpected body %q", data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.test/audio/abc.webm"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	url, err := c.Upload(context.Background(), "clip.webm", strings.NewReader("fake audio"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://cdn.test/audio/abc.webm" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestUploadMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Upload(context.Background(), "a.webm", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for response without url")
	}
}

func TestReverseStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("oidua ekaf"))
	}))
	defer srv.Close()

	body, err := New(srv.URL).Reverse(context.Background(), "clip.webm", strings.NewReader("fake audio"))
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "oidua ekaf" {
		t.Fatalf("unexpected reversed body %q", data)
	}
}

func TestProcessSendsEffectField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.FormValue("effect"); got != "robot" {
			t.Errorf("expected effect robot, got %q", got)
		}
		_, _ = w.Write([]byte("processed"))
	}))
	defer srv.Close()

	body, err := New(srv.URL).Process(context.Background(), "clip.webm", "robot", strings.NewReader("fake audio"))
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "processed" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestNon200IsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ffmpeg exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Upload(context.Background(), "a.webm", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "ffmpeg exploded") {
		t.Fatalf("error should carry status and body excerpt, got %v", err)
	}
}
