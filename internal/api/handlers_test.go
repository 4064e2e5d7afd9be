package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/csvchat-go/internal/composer"
	"github.com/comigor/csvchat-go/internal/config"
	"github.com/comigor/csvchat-go/internal/history"
	"github.com/comigor/csvchat-go/internal/session"
)

type stubLLM struct {
	answer string
	err    error
	calls  int
}

func (s *stubLLM) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.answer}}},
	}, nil
}

func newServer(t *testing.T, llm *stubLLM, llmReady error) *httptest.Server {
	t.Helper()
	registry := session.NewRegistry(0, nil)
	comp := composer.New(llm, config.LLMConfig{Model: "gpt-4o-mini", ReplayHistory: true})
	srv := httptest.NewServer(NewRouter(NewHandlers(registry, comp, llmReady)))
	t.Cleanup(srv.Close)
	return srv
}

const salesCSV = "region,sales\nNorth,100\nSouth,250\nNorth,250\n"

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "text/csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID      string `json:"id"`
		Rows    int    `json:"rows"`
		Columns int    `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.ID)
	require.Equal(t, 3, body.Rows)
	require.Equal(t, 2, body.Columns)
	return body.ID
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateSession_BadCSV(t *testing.T) {
	srv := newServer(t, &stubLLM{}, nil)

	resp, err := http.Post(srv.URL+"/sessions", "text/csv", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAsk_FullCycle(t *testing.T) {
	llm := &stubLLM{answer: "42"}
	srv := newServer(t, llm, nil)
	id := createSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", map[string]string{"question": "What is the average sales?"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "42", out.Answer)

	// History records the exchange.
	hresp, err := http.Get(srv.URL + "/sessions/" + id + "/history")
	require.NoError(t, err)
	defer hresp.Body.Close()
	var hbody struct {
		Exchanges []history.Exchange `json:"exchanges"`
	}
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&hbody))
	require.Len(t, hbody.Exchanges, 1)
	require.Equal(t, "What is the average sales?", hbody.Exchanges[0].Question)
	require.Equal(t, "42", hbody.Exchanges[0].Answer)
}

func TestAsk_BlankQuestion(t *testing.T) {
	llm := &stubLLM{answer: "unused"}
	srv := newServer(t, llm, nil)
	id := createSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", map[string]string{"question": "   "})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, llm.calls)
}

func TestAsk_LLMFailureThenRecovery(t *testing.T) {
	llm := &stubLLM{err: errors.New("boom")}
	srv := newServer(t, llm, nil)
	id := createSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", map[string]string{"question": "first"})
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Session is not poisoned: the next request succeeds.
	llm.err = nil
	llm.answer = "recovered"
	resp = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", map[string]string{"question": "second"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	hresp, err := http.Get(srv.URL + "/sessions/" + id + "/history")
	require.NoError(t, err)
	defer hresp.Body.Close()
	var hbody struct {
		Exchanges []history.Exchange `json:"exchanges"`
	}
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&hbody))
	require.Len(t, hbody.Exchanges, 1)
	require.Equal(t, "second", hbody.Exchanges[0].Question)
}

func TestAsk_MissingCredential(t *testing.T) {
	srv := newServer(t, &stubLLM{}, config.ErrMissingAPIKey)
	id := createSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", map[string]string{"question": "anything"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClearHistory_Idempotent(t *testing.T) {
	llm := &stubLLM{answer: "ok"}
	srv := newServer(t, llm, nil)
	id := createSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/ask", map[string]string{"question": "q"})
	resp.Body.Close()

	for i := 0; i < 2; i++ {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id+"/history", nil)
		require.NoError(t, err)
		dresp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		dresp.Body.Close()
		require.Equal(t, http.StatusNoContent, dresp.StatusCode)
	}

	hresp, err := http.Get(srv.URL + "/sessions/" + id + "/history")
	require.NoError(t, err)
	defer hresp.Body.Close()
	var hbody struct {
		Exchanges []history.Exchange `json:"exchanges"`
	}
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&hbody))
	require.Empty(t, hbody.Exchanges)
}

func TestGetProfile(t *testing.T) {
	srv := newServer(t, &stubLLM{}, nil)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/profile")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Profile string `json:"profile"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Profile, "3 rows")
	require.Contains(t, body.Profile, "2 columns")
}

func TestChart(t *testing.T) {
	srv := newServer(t, &stubLLM{}, nil)
	id := createSession(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/chart", map[string]string{"kind": "bar", "x": "region", "y": "sales"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recipe struct {
		Kind   string    `json:"kind"`
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recipe))
	require.Equal(t, "bar", recipe.Kind)
	require.Equal(t, []string{"North", "South", "North"}, recipe.Labels)

	// Invalid kind is a 400.
	bad := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+id+"/chart", map[string]string{"kind": "donut", "x": "region", "y": "sales"})
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	srv := newServer(t, &stubLLM{}, nil)

	resp, err := http.Get(srv.URL + "/sessions/does-not-exist/profile")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	srv := newServer(t, &stubLLM{}, nil)
	id := createSession(t, srv)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	gone, err := http.Get(srv.URL + "/sessions/" + id + "/profile")
	require.NoError(t, err)
	gone.Body.Close()
	require.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestReplaceCSV(t *testing.T) {
	srv := newServer(t, &stubLLM{}, nil)
	id := createSession(t, srv)

	resp, err := http.Post(srv.URL+"/sessions/"+id+"/csv", "text/csv", strings.NewReader("x\n1\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	presp, err := http.Get(srv.URL + "/sessions/" + id + "/profile")
	require.NoError(t, err)
	defer presp.Body.Close()
	var body struct {
		Profile string `json:"profile"`
	}
	require.NoError(t, json.NewDecoder(presp.Body).Decode(&body))
	require.Contains(t, body.Profile, "1 rows, 1 columns")
}
