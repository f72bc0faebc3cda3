package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legaldb/caseanalyzer/internal/core"
)

func TestStartAnalysis_SendsRequestAndReturnsStream(t *testing.T) {
	var got AnalyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/case-analyzer/analyze", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"step\":\"document_upload\",\"status\":\"completed\"}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	c.BearerToken = "secret"
	resp, err := c.StartAnalysis(t.Context(), AnalyzeRequest{
		DraftID:      7,
		Jurisdiction: &core.JurisdictionInfo{PreciseJurisdiction: "Switzerland"},
		Resume:       true,
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(7), got.DraftID)
	assert.True(t, got.Resume)
	assert.Equal(t, "Switzerland", got.Jurisdiction.PreciseJurisdiction)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "document_upload")
}

func TestStartAnalysis_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).StartAnalysis(t.Context(), AnalyzeRequest{DraftID: 1})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatTransport))
}

func TestStartAnalysis_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, 50*time.Millisecond).StartAnalysis(t.Context(), AnalyzeRequest{DraftID: 1})
	require.Error(t, err)
}

func TestGetDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/case-analyzer/drafts/42", r.URL.Path)
		_, _ = io.WriteString(w, `{"draft_id":42,"status":"draft","file_name":"bge.pdf",
			"jurisdiction_info":{"legal_system_type":"Civil-law jurisdiction","precise_jurisdiction":"Switzerland"},
			"analyzer_data":{"draftId":42},"case_citation":"BGE 1"}`)
	}))
	defer srv.Close()

	d, err := New(srv.URL, time.Second).GetDraft(t.Context(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), d.DraftID)
	assert.Equal(t, "bge.pdf", d.FileName)

	payload := d.Payload()
	assert.Equal(t, "BGE 1", payload["case_citation"])
	assert.Equal(t, "Switzerland", payload["jurisdiction"])
	assert.Equal(t, map[string]any{"draftId": float64(42)}, payload["analyzer_data"])
}

func TestGetDraft_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"not yours"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).GetDraft(t.Context(), 42)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "not yours", apiErr.Message())
	assert.Contains(t, apiErr.Error(), "status=403")
}

func TestSaveDraft(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/case-analyzer/drafts/9", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).SaveDraft(t.Context(), 9, DraftUpdate{
		AnalyzerData: &core.StoredAnalyzerSnapshot{DraftID: 9, CorrelationID: "c-1"},
	})
	require.NoError(t, err)
	snap, ok := body["analyzer_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c-1", snap["correlationId"])
}

func TestGetSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggestions/5", r.URL.Path)
		_, _ = io.WriteString(w, `{"payload":{"case_citation_edited":"X"}}`)
	}))
	defer srv.Close()

	s, err := New(srv.URL, time.Second).GetSuggestion(t.Context(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.ID)
	assert.Equal(t, "X", s.Payload["case_citation_edited"])
}

func TestSubmitSuggestion_FlattensFields(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggestions/case-analyzer", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"draft_id":11}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).SubmitSuggestion(t.Context(), Submission{
		DraftID: 11,
		Fields:  map[string]string{"case_citation": "BGE 1", "abstract": ""},
		RawData: `{"draftId":11}`,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), res.DraftID)
	assert.Equal(t, "BGE 1", body["case_citation"])
	assert.Equal(t, "", body["abstract"])
	assert.Equal(t, `{"draftId":11}`, body["raw_data"])
	assert.Equal(t, float64(11), body["draft_id"])
}
