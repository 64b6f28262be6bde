package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mosajjal/iamwatch/pkg/models"
)

func testMessage() *models.AlertBatchMessage {
	return &models.AlertBatchMessage{
		Channel: "#security",
		Text:    "<!channel>\n*New incoming IAM Alert*",
		Attachments: []models.Attachment{{
			Fallback: "New incoming IAM Alert",
			Color:    "danger",
			Text:     "*User Identity* *`arn:aws:iam::123456789012:user/alice`* performed *`CreateUser`*: ",
			Fields:   []models.Field{{Value: "*userName*: bob"}},
			MrkdwnIn: []string{"text"},
		}},
	}
}

func TestNewClient_MissingURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty URL, got nil")
	}
	if _, err := NewClient(Config{URL: "https://hooks.example.com/x", Proxy: "://bad"}); err == nil {
		t.Error("Expected error for invalid proxy, got nil")
	}
}

func TestPost(t *testing.T) {
	var got map[string]interface{}
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	resp, err := c.Post(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != "ok" {
		t.Errorf("Unexpected response %+v", resp)
	}
	if contentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", contentType)
	}
	if got["channel"] != "#security" {
		t.Errorf("Expected channel in payload, got %v", got["channel"])
	}
	atts, _ := got["attachments"].([]interface{})
	if len(atts) != 1 {
		t.Fatalf("Expected 1 attachment, got %v", got["attachments"])
	}
	att := atts[0].(map[string]interface{})
	if att["mrkdwn_in"] == nil || att["fallback"] != "New incoming IAM Alert" {
		t.Errorf("Unexpected attachment %v", att)
	}
}

func TestPost_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	lenient, _ := NewClient(Config{URL: srv.URL})
	resp, err := lenient.Post(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Expected non-2xx to be tolerated, got %v", err)
	}
	if resp.StatusCode != http.StatusForbidden || resp.Body != "invalid_token" {
		t.Errorf("Unexpected response %+v", resp)
	}

	strict, _ := NewClient(Config{URL: srv.URL, Strict: true})
	resp, err = strict.Post(context.Background(), testMessage())
	if !errors.Is(err, ErrDeliveryRejected) {
		t.Errorf("Expected ErrDeliveryRejected, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected response alongside the error, got %+v", resp)
	}
}

func TestPost_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	c, _ := NewClient(Config{URL: "http://" + addr + "/hook", Timeout: 2 * time.Second})
	_, err = c.Post(context.Background(), testMessage())
	if !errors.Is(err, ErrDeliveryUnreachable) {
		t.Errorf("Expected ErrDeliveryUnreachable, got %v", err)
	}
}

func TestPost_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Post(context.Background(), testMessage())
	if !errors.Is(err, ErrDeliveryTimeout) {
		t.Errorf("Expected ErrDeliveryTimeout, got %v", err)
	}
}
