package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tech-vaibhav/RAG-API/internal/config"
	"github.com/tech-vaibhav/RAG-API/internal/core"
	"github.com/tech-vaibhav/RAG-API/internal/index"
	"github.com/tech-vaibhav/RAG-API/internal/ingest"
	"github.com/tech-vaibhav/RAG-API/internal/store"
)

// fakeLLM implements core.Embedder and core.Completer without any network.
type fakeLLM struct{}

func (f *fakeLLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeLLM) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = []float32{float32(len(t)), float32(i)}
	}
	return vectors, nil
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "answer from model", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	config.AppConfig.JWTSecret = "handler-test-secret"

	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })

	llm := &fakeLLM{}
	ix := index.New()
	pipeline := ingest.NewPipeline(llm, ix, t.TempDir(), 500, 100)
	retrieval := core.NewRetrievalService(llm, ix)
	chatService := core.NewChatService(dbStore, retrieval, llm, 3)

	handler := NewAPIHandler(chatService, pipeline, dbStore)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func signupAndLogin(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/signup", "", map[string]string{
		"username": username, "full_name": "Test " + username, "password": "pw",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup returned %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/login", "", map[string]string{
		"username": username, "password": "pw",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}

	var login LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatal(err)
	}
	if login.TokenType != "bearer" || login.AccessToken == "" {
		t.Fatalf("bad login response: %+v", login)
	}
	return login.AccessToken
}

func uploadFile(t *testing.T, srv *httptest.Server, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func createConversation(t *testing.T, srv *httptest.Server, token string) int64 {
	t.Helper()
	resp := postJSON(t, srv.URL+"/conversations", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation returned %d", resp.StatusCode)
	}
	var body struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body.ConversationID
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/conversations", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestUploadAndAskEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "alice")

	// Upload a 1200-character document; it chunks into 3 windows.
	notes := []byte(strings.Repeat("abcdef", 200))
	resp := uploadFile(t, srv, token, "notes.txt", notes)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload returned %d", resp.StatusCode)
	}
	var uploadBody map[string]string
	json.NewDecoder(resp.Body).Decode(&uploadBody)
	if uploadBody["status"] != "success" {
		t.Errorf("unexpected upload body: %v", uploadBody)
	}

	convID := createConversation(t, srv, token)

	askResp := postJSON(t, srv.URL+"/ask", token, map[string]any{
		"question": "what is in notes?", "conversation_id": convID,
	})
	defer askResp.Body.Close()
	if askResp.StatusCode != http.StatusOK {
		t.Fatalf("ask returned %d", askResp.StatusCode)
	}
	var askBody map[string]string
	json.NewDecoder(askResp.Body).Decode(&askBody)
	if askBody["answer"] != "answer from model" {
		t.Errorf("unexpected answer: %v", askBody)
	}

	// The turn appended the user message, then the assistant message.
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/conversations/%d/messages", srv.URL, convID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	msgResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer msgResp.Body.Close()
	var messages []store.Message
	if err := json.NewDecoder(msgResp.Body).Decode(&messages); err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Sender != "user" || messages[1].Sender != "assistant" {
		t.Errorf("wrong sender order: %q then %q", messages[0].Sender, messages[1].Sender)
	}
}

func TestUploadUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "bob")

	resp := uploadFile(t, srv, token, "tool.exe", []byte("binary"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported extension, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if !strings.Contains(body["error"], ".exe") {
		t.Errorf("error should name the extension: %v", body)
	}
}

func TestAskBeforeAnyUpload(t *testing.T) {
	srv := newTestServer(t)
	token := signupAndLogin(t, srv, "carol")
	convID := createConversation(t, srv, token)

	resp := postJSON(t, srv.URL+"/ask", token, map[string]any{
		"question": "anything?", "conversation_id": convID,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask returned %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if !strings.Contains(body["answer"], "No documents loaded") {
		t.Errorf("expected placeholder answer, got %v", body)
	}
}

func TestConversationOwnership(t *testing.T) {
	srv := newTestServer(t)
	ownerToken := signupAndLogin(t, srv, "dave")
	strangerToken := signupAndLogin(t, srv, "eve")

	convID := createConversation(t, srv, ownerToken)

	// A stranger cannot read messages.
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/conversations/%d/messages", srv.URL, convID), nil)
	req.Header.Set("Authorization", "Bearer "+strangerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for stranger, got %d", resp.StatusCode)
	}

	// A stranger cannot rename.
	data, _ := json.Marshal(map[string]string{"title": "hijacked"})
	req, _ = http.NewRequest(http.MethodPut, fmt.Sprintf("%s/conversations/%d", srv.URL, convID), bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+strangerToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for stranger rename, got %d", resp.StatusCode)
	}

	// A missing conversation is 404 for its owner.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/conversations/99999/messages", nil)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing conversation, got %d", resp.StatusCode)
	}

	// The stranger only sees their own (empty) conversation list.
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+strangerToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var convs []store.Conversation
	if err := json.NewDecoder(resp.Body).Decode(&convs); err != nil {
		t.Fatal(err)
	}
	if len(convs) != 0 {
		t.Errorf("stranger sees %d foreign conversations", len(convs))
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	signupAndLogin(t, srv, "frank")

	resp := postJSON(t, srv.URL+"/signup", "", map[string]string{
		"username": "frank", "full_name": "Frank Again", "password": "pw",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate username, got %d", resp.StatusCode)
	}
}
