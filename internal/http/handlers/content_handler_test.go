package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/go-domain-mapper/internal/services"
)

type stubContent struct {
	req services.ContentRequest
	res services.ContentResult
	err error
}

func (s *stubContent) Generate(_ context.Context, req services.ContentRequest) (services.ContentResult, error) {
	s.req = req
	return s.res, s.err
}

func post(r http.Handler, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateContent(t *testing.T) {
	gen := &stubContent{res: services.ContentResult{
		Status: "ok",
		Result: "success",
		Data:   map[string]any{"home_page": map[string]any{"title": "Hi"}},
		Scores: map[string]services.SectionScore{"home_page": {Label: "Home Page", Score: 8, Reason: "clear"}},
	}}
	r := newRouter(Services{Content: gen})

	w := post(r, "/generate-content", `{"agent_answers":[{"section":"About","questions":[["Name?","Dana"]]}]}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"Home Page"`) {
		t.Fatalf("generate = %d %s", w.Code, w.Body.String())
	}
	if len(gen.req.AgentAnswers) != 1 || gen.req.AgentAnswers[0].Questions[0][1] != "Dana" {
		t.Fatalf("request = %+v", gen.req)
	}

	for _, body := range []string{`{}`, `{"agent_answers":[]}`, `not json`, `{"agent_answers":[{"questions":[]}]}`} {
		if w := post(r, "/generate-content", body); w.Code != http.StatusBadRequest {
			t.Fatalf("body %s = %d", body, w.Code)
		}
	}

	gen.err = fmt.Errorf("parse: %w", services.ErrUnparseableCompletion)
	w = post(r, "/generate-content", `{"agent_answers":[{"section":"About","questions":[]}]}`)
	if w.Code != http.StatusBadGateway || errorBody(t, w).Code != ErrCodeUpstreamFailed {
		t.Fatalf("unparseable = %d", w.Code)
	}
}
