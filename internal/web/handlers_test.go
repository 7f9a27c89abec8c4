package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-scanner/internal/store"
	"github.com/kozaktomas/face-scanner/internal/store/mock"
)

func newTestServer(st store.Store) *Server {
	return NewServer(st, "localhost", 0)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("could not encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("could not parse response: %v", err)
	}
}

func seedPhoto(t *testing.T, st *mock.Store, hash string, recognitions ...store.Recognition) {
	t.Helper()
	err := st.SavePhoto(context.Background(), store.SavePhotoParams{
		Hash:         hash,
		Path:         "/photos/" + hash + ".jpg",
		FileSize:     100,
		ScanID:       "scan-1",
		Recognitions: recognitions,
	})
	if err != nil {
		t.Fatalf("could not seed photo: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(mock.NewStore())
	rec := doRequest(t, s, "GET", "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestListPeople(t *testing.T) {
	st := mock.NewStore()
	st.AddPerson(store.Person{ID: "p1", Name: "Jan Novák"})
	st.AddPerson(store.Person{ID: "p2", Name: "Eva"})

	s := newTestServer(st)
	rec := doRequest(t, s, "GET", "/api/v1/people", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var people []store.Person
	parseJSON(t, rec, &people)
	if len(people) != 2 {
		t.Errorf("expected 2 people, got %d", len(people))
	}
}

func TestListPeopleEmpty(t *testing.T) {
	s := newTestServer(mock.NewStore())
	rec := doRequest(t, s, "GET", "/api/v1/people", nil)
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestGetPhoto(t *testing.T) {
	st := mock.NewStore()
	seedPhoto(t, st, "abc123",
		store.Recognition{PersonID: "p1", PersonName: "Jan", Confidence: 92, SearchMethod: store.SearchRecognition},
	)

	s := newTestServer(st)
	rec := doRequest(t, s, "GET", "/api/v1/photos/abc123", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp PhotoResponse
	parseJSON(t, rec, &resp)
	if resp.Hash != "abc123" {
		t.Errorf("unexpected hash %q", resp.Hash)
	}
	if len(resp.EffectiveMatches) != 1 {
		t.Fatalf("expected 1 effective match, got %d", len(resp.EffectiveMatches))
	}
	if resp.EffectiveMatches[0].Status != store.StatusPending {
		t.Errorf("expected pending status, got %s", resp.EffectiveMatches[0].Status)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	s := newTestServer(mock.NewStore())
	rec := doRequest(t, s, "GET", "/api/v1/photos/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestApplyCorrectionReject(t *testing.T) {
	st := mock.NewStore()
	st.AddPerson(store.Person{ID: "p1", Name: "Jan"})
	seedPhoto(t, st, "abc123",
		store.Recognition{PersonID: "p1", PersonName: "Jan", Confidence: 92, SearchMethod: store.SearchRecognition},
	)

	s := newTestServer(st)
	rec := doRequest(t, s, "POST", "/api/v1/photos/abc123/corrections", CorrectionRequest{
		Person: "Jan",
		Type:   store.CorrectionFalsePositive,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp PhotoResponse
	parseJSON(t, rec, &resp)
	if len(resp.EffectiveMatches) != 0 {
		t.Errorf("rejected person still in effective matches: %+v", resp.EffectiveMatches)
	}
	if len(resp.Corrections) != 1 {
		t.Errorf("expected 1 correction recorded, got %d", len(resp.Corrections))
	}
}

func TestApplyCorrectionAddMissedPerson(t *testing.T) {
	st := mock.NewStore()
	seedPhoto(t, st, "abc123")

	s := newTestServer(st)
	rec := doRequest(t, s, "POST", "/api/v1/photos/abc123/corrections", CorrectionRequest{
		Person: "Eva",
		Type:   store.CorrectionFalseNegative,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp PhotoResponse
	parseJSON(t, rec, &resp)
	if len(resp.EffectiveMatches) != 1 {
		t.Fatalf("expected 1 effective match, got %d", len(resp.EffectiveMatches))
	}
	m := resp.EffectiveMatches[0]
	if m.PersonName != "Eva" || m.Confidence != 100 || m.Status != store.StatusManual {
		t.Errorf("unexpected synthesized match: %+v", m)
	}

	// The identity was created as a side effect.
	p, _ := st.FindPersonByName(context.Background(), "Eva")
	if p == nil {
		t.Error("person not created by false negative correction")
	}
}

func TestApplyCorrectionReplacesPerPerson(t *testing.T) {
	st := mock.NewStore()
	st.AddPerson(store.Person{ID: "p1", Name: "Jan"})
	seedPhoto(t, st, "abc123",
		store.Recognition{PersonID: "p1", PersonName: "Jan", Confidence: 92, SearchMethod: store.SearchRecognition},
	)

	s := newTestServer(st)
	doRequest(t, s, "POST", "/api/v1/photos/abc123/corrections", CorrectionRequest{
		Person: "Jan", Type: store.CorrectionFalsePositive,
	})
	rec := doRequest(t, s, "POST", "/api/v1/photos/abc123/corrections", CorrectionRequest{
		Person: "Jan", Type: store.CorrectionApproved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp PhotoResponse
	parseJSON(t, rec, &resp)
	if len(resp.Corrections) != 1 {
		t.Fatalf("expected 1 active correction after replacement, got %d", len(resp.Corrections))
	}
	if resp.Corrections[0].Type != store.CorrectionApproved {
		t.Errorf("expected approval to replace rejection, got %s", resp.Corrections[0].Type)
	}
	if len(resp.EffectiveMatches) != 1 || resp.EffectiveMatches[0].Status != store.StatusApproved {
		t.Errorf("unexpected effective matches: %+v", resp.EffectiveMatches)
	}
}

func TestApplyCorrectionUnknownPhoto(t *testing.T) {
	st := mock.NewStore()
	st.AddPerson(store.Person{ID: "p1", Name: "Jan"})

	s := newTestServer(st)
	rec := doRequest(t, s, "POST", "/api/v1/photos/nope/corrections", CorrectionRequest{
		Person: "Jan", Type: store.CorrectionApproved,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestApplyCorrectionUnknownPerson(t *testing.T) {
	st := mock.NewStore()
	seedPhoto(t, st, "abc123")

	s := newTestServer(st)
	rec := doRequest(t, s, "POST", "/api/v1/photos/abc123/corrections", CorrectionRequest{
		Person: "Nobody", Type: store.CorrectionApproved,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown person on approval, got %d", rec.Code)
	}
}

func TestApplyCorrectionInvalidBody(t *testing.T) {
	st := mock.NewStore()
	s := newTestServer(st)

	req := httptest.NewRequest("POST", "/api/v1/photos/abc/corrections", bytes.NewBufferString("{not json"))
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", recorder.Code)
	}
}

func TestApplyCorrectionInvalidType(t *testing.T) {
	st := mock.NewStore()
	seedPhoto(t, st, "abc123")

	s := newTestServer(st)
	rec := doRequest(t, s, "POST", "/api/v1/photos/abc123/corrections", map[string]string{
		"person": "Jan",
		"type":   "maybe",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListScans(t *testing.T) {
	st := mock.NewStore()
	for i := 0; i < 3; i++ {
		run, err := st.StartScan(context.Background(), []string{fmt.Sprintf("/photos/%d", i)})
		if err != nil {
			t.Fatalf("could not start scan: %v", err)
		}
		if err := st.FinishScan(context.Background(), run.ID, store.ScanCounts{PhotosProcessed: i}); err != nil {
			t.Fatalf("could not finish scan: %v", err)
		}
	}

	s := newTestServer(st)
	rec := doRequest(t, s, "GET", "/api/v1/scans?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var scans []store.ScanRun
	parseJSON(t, rec, &scans)
	if len(scans) != 2 {
		t.Errorf("expected 2 scans with limit=2, got %d", len(scans))
	}
}

func TestListScansInvalidLimit(t *testing.T) {
	s := newTestServer(mock.NewStore())
	rec := doRequest(t, s, "GET", "/api/v1/scans?limit=zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetStats(t *testing.T) {
	st := mock.NewStore()
	seedPhoto(t, st, "abc123")
	st.AddPerson(store.Person{ID: "p1", Name: "Jan"})

	s := newTestServer(st)
	rec := doRequest(t, s, "GET", "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats store.Stats
	parseJSON(t, rec, &stats)
	if stats.Photos != 1 || stats.People != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
