package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startnerve/coursefactory/internal/credits"
	"github.com/startnerve/coursefactory/internal/images"
	"github.com/startnerve/coursefactory/internal/outline"
	"github.com/startnerve/coursefactory/internal/payments"
	"github.com/startnerve/coursefactory/internal/pipeline"
	"github.com/startnerve/coursefactory/internal/store"
	"github.com/startnerve/coursefactory/internal/viral"
)

const webhookSecret = "test-secret"

const outlineText = `COURSE_TITLE: Sourdough Basics
COURSE_OVERVIEW: Bake better bread at home.
---MODULE_START---
MODULE_TITLE: Basics
---LESSON_START---
LESSON_TITLE: Intro
LEARNING_OBJECTIVE: Students will learn to get started.
---LESSON_END---
---LESSON_START---
LESSON_TITLE: Deep Dive
LEARNING_OBJECTIVE: Students will learn to go deeper.
---LESSON_END---
---MODULE_END---`

const campaignJSON = `{
  "youtube_short": {"hook": "h", "body": "b", "call_to_action": "c"},
  "tiktok_reel": {"hook": "h", "body": "b", "call_to_action": "c"},
  "instagram_caption": "caption",
  "hooks": ["one"],
  "titles": ["one"],
  "hashtags": ["#one"]
}`

// fakeLedger is an in-memory credits.Ledger.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

func newFakeLedger(balances map[string]int) *fakeLedger {
	if balances == nil {
		balances = make(map[string]int)
	}
	return &fakeLedger{balances: balances}
}

func (f *fakeLedger) key(userID, engine string) string { return userID + ":" + engine }

func (f *fakeLedger) Consume(_ context.Context, userID, engine string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(userID, engine)
	if f.balances[key] <= 0 {
		return 0, &credits.ErrInsufficientCredits{UserID: userID, Engine: engine}
	}
	f.balances[key]--
	return f.balances[key], nil
}

func (f *fakeLedger) Grant(_ context.Context, userID, engine string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.key(userID, engine)
	f.balances[key] += amount
	return f.balances[key], nil
}

func (f *fakeLedger) Balance(_ context.Context, userID, engine string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[f.key(userID, engine)], nil
}

func (f *fakeLedger) balance(userID, engine string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[f.key(userID, engine)]
}

type scriptedText struct {
	response string
	err      error
}

func (s *scriptedText) GenerateContent(context.Context, string) (string, error) {
	return s.response, s.err
}

func (s *scriptedText) GenerateJSON(context.Context, string) (string, error) {
	return s.response, s.err
}

type noneSearcher struct{}

func (noneSearcher) Search(context.Context, string, int) ([]images.Photo, error) {
	return nil, nil
}

type fakeRenderer struct {
	pdf []byte
	err error
}

func (f *fakeRenderer) Render(context.Context, string) ([]byte, error) {
	return f.pdf, f.err
}

type testServer struct {
	*Server
	text   *scriptedText
	ledger *fakeLedger
	files  *store.Store
}

func newTestServer(t *testing.T, balances map[string]int) *testServer {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	text := &scriptedText{response: outlineText}
	files, err := store.New(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	ledger := newFakeLedger(balances)

	p := pipeline.NewService(text, noneSearcher{}, &fakeRenderer{pdf: []byte("%PDF-1.4 fake")}, files, 2)
	s := New(Config{Port: 0}, Deps{
		Pipeline:  p,
		Campaigns: viral.NewGenerator(text),
		Ledger:    ledger,
		Files:     files,
		Webhook:   payments.NewVerifier(webhookSecret),
	})
	t.Cleanup(s.rateLimiter.Stop)

	return &testServer{Server: s, text: text, ledger: ledger, files: files}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGenerateOutlineSpendsOneCredit(t *testing.T) {
	ts := newTestServer(t, map[string]int{"u1:ebook": 2})

	rec := ts.do("POST", "/api/generate-outline", OutlineRequest{
		Topic: "Sourdough", Audience: "home bakers", UID: "u1",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := decodeBody[outline.Outline](t, rec)
	assert.Equal(t, "Sourdough Basics", o.CourseTitle)
	require.Len(t, o.Modules, 1)
	assert.Len(t, o.Modules[0].Lessons, 2)
	assert.Equal(t, 1, ts.ledger.balance("u1", credits.EngineEbook))
}

func TestGenerateOutlineOutOfCredits(t *testing.T) {
	ts := newTestServer(t, map[string]int{"u1:ebook": 0})

	rec := ts.do("POST", "/api/generate-outline", OutlineRequest{
		Topic: "Sourdough", Audience: "home bakers", UID: "u1",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Contains(t, resp["error"], "credits")
	assert.Equal(t, 0, ts.ledger.balance("u1", credits.EngineEbook))
}

func TestGenerateOutlineRefundsOnParseFailure(t *testing.T) {
	ts := newTestServer(t, map[string]int{"u1:ebook": 2})
	ts.text.response = "nothing resembling an outline"

	rec := ts.do("POST", "/api/generate-outline", OutlineRequest{
		Topic: "Sourdough", Audience: "home bakers", UID: "u1",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 2, ts.ledger.balance("u1", credits.EngineEbook))
}

func TestGenerateOutlineRefundsOnModelError(t *testing.T) {
	ts := newTestServer(t, map[string]int{"u1:ebook": 2})
	ts.text.err = errors.New("quota exceeded")

	rec := ts.do("POST", "/api/generate-outline", OutlineRequest{
		Topic: "Sourdough", Audience: "home bakers", UID: "u1",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 2, ts.ledger.balance("u1", credits.EngineEbook))
}

func TestGenerateOutlineValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		req  OutlineRequest
	}{
		{"missing topic", OutlineRequest{Audience: "a", UID: "u1"}},
		{"missing audience", OutlineRequest{Topic: "t", UID: "u1"}},
		{"missing uid", OutlineRequest{Topic: "t", Audience: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do("POST", "/api/generate-outline", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGenerateContentOrdered(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.text.response = "Paragraph one.\n\nParagraph two."

	o, err := outline.Parse(outlineText)
	require.NoError(t, err)

	rec := ts.do("POST", "/api/generate-text-content", ContentRequest{Outline: o, UID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		EbookContent []struct {
			LessonTitle string `json:"lesson_title"`
			ModuleIndex int    `json:"module_index"`
			LessonIndex int    `json:"lesson_index"`
		} `json:"ebook_content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.EbookContent, 2)
	assert.Equal(t, 1, resp.EbookContent[0].LessonIndex)
	assert.Equal(t, 2, resp.EbookContent[1].LessonIndex)
}

func TestGenerateContentEmptyOutline(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do("POST", "/api/generate-text-content", ContentRequest{
		Outline: &outline.Outline{CourseTitle: "T"}, UID: "u1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateFullEbookAndDownload(t *testing.T) {
	ts := newTestServer(t, nil)

	o, err := outline.Parse(outlineText)
	require.NoError(t, err)

	rec := ts.do("POST", "/api/generate-full-ebook", FullEbookRequest{
		Outline:       o,
		EditedContent: ts.pipeline.GenerateContent(context.Background(), o),
		Font:          "lora",
		Color:         "#1a202c",
		UID:           "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[map[string]string](t, rec)
	url := resp["download_url"]
	require.True(t, strings.HasPrefix(url, "/api/download/"), url)

	dl := ts.do("GET", url, nil)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "application/pdf", dl.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 fake", dl.Body.String())
}

func TestGenerateFullEbookRenderFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.pipeline.Renderer = &fakeRenderer{err: errors.New("chrome crashed")}

	o, err := outline.Parse(outlineText)
	require.NoError(t, err)

	rec := ts.do("POST", "/api/generate-full-ebook", FullEbookRequest{
		Outline:       o,
		EditedContent: ts.pipeline.GenerateContent(context.Background(), o),
		UID:           "u1",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDownloadMissingFile(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do("GET", "/api/download/nope.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadCoverAndFetch(t *testing.T) {
	ts := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("coverImage", "my cover.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("pngbytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload-cover", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]string](t, rec)
	require.True(t, strings.HasPrefix(resp["filePath"], "/covers/"), resp["filePath"])

	get := ts.do("GET", resp["filePath"], nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "pngbytes", get.Body.String())
}

func TestUploadCoverDisallowedExtension(t *testing.T) {
	ts := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("coverImage", "evil.gif")
	require.NoError(t, err)
	_, _ = part.Write([]byte("gifbytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload-cover", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateViralContent(t *testing.T) {
	ts := newTestServer(t, map[string]int{"u1:script": 3})
	ts.text.response = campaignJSON

	rec := ts.do("POST", "/api/generate-viral-content", ViralContentRequest{
		Topic: "sourdough", UID: "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := decodeBody[viral.Campaign](t, rec)
	assert.Equal(t, "h", c.YouTubeShort.Hook)
	assert.Equal(t, "caption", c.InstagramCaption)
	assert.Equal(t, 2, ts.ledger.balance("u1", credits.EngineScript))
}

func TestGenerateViralContentOutOfCredits(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do("POST", "/api/generate-viral-content", ViralContentRequest{
		Topic: "sourdough", UID: "u1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateViralContentRefundsOnBadOutput(t *testing.T) {
	ts := newTestServer(t, map[string]int{"u1:script": 1})
	ts.text.response = `{"not": "a campaign"}`

	rec := ts.do("POST", "/api/generate-viral-content", ViralContentRequest{
		Topic: "sourdough", UID: "u1",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, ts.ledger.balance("u1", credits.EngineScript))
}

func TestPricing(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do("GET", "/api/pricing?country=IN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "INR", plan["currency"])

	req := httptest.NewRequest("GET", "/api/pricing", nil)
	req.Header.Set("CF-IPCountry", "GB")
	rec2 := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec2, req)
	plan = decodeBody[map[string]any](t, rec2)
	assert.Equal(t, "GBP", plan["currency"])

	rec3 := ts.do("GET", "/api/pricing", nil)
	plan = decodeBody[map[string]any](t, rec3)
	assert.Equal(t, "USD", plan["currency"])
}

func signedWebhookRequest(t *testing.T, event payments.Event, secret string) *http.Request {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", payments.NewVerifier(secret).Sign(body))
	return req
}

func TestPaymentWebhookGrantsPlan(t *testing.T) {
	ts := newTestServer(t, nil)

	req := signedWebhookRequest(t, payments.Event{
		EventID: "evt_1", Type: payments.EventTypePaymentCaptured,
		UserID: "u1", Plan: "creator",
	}, webhookSecret)
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, ts.ledger.balance("u1", credits.EngineEbook))
	assert.Equal(t, 30, ts.ledger.balance("u1", credits.EngineScript))
}

func TestPaymentWebhookBadSignature(t *testing.T) {
	ts := newTestServer(t, nil)

	req := signedWebhookRequest(t, payments.Event{
		EventID: "evt_1", Type: payments.EventTypePaymentCaptured,
		UserID: "u1", Plan: "creator",
	}, "wrong-secret")
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, ts.ledger.balance("u1", credits.EngineEbook))
}

func TestPaymentWebhookIgnoresOtherEvents(t *testing.T) {
	ts := newTestServer(t, nil)

	req := signedWebhookRequest(t, payments.Event{
		EventID: "evt_1", Type: "payment.refunded", UserID: "u1", Plan: "creator",
	}, webhookSecret)
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ignored", resp["status"])
	assert.Equal(t, 0, ts.ledger.balance("u1", credits.EngineEbook))
}

func TestPaymentWebhookUnknownPlan(t *testing.T) {
	ts := newTestServer(t, nil)

	req := signedWebhookRequest(t, payments.Event{
		EventID: "evt_1", Type: payments.EventTypePaymentCaptured,
		UserID: "u1", Plan: "platinum",
	}, webhookSecret)
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do("GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", resp["status"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest("OPTIONS", "/api/generate-outline", nil)
	rec := httptest.NewRecorder()
	ts.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
