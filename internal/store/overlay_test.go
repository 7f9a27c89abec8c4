package store

import (
	"testing"
	"time"
)

func recordWith(recs []Recognition, corrs []Correction) *PhotoRecord {
	return &PhotoRecord{
		Hash:         "abc123",
		Path:         "/photos/test.jpg",
		Recognitions: recs,
		Corrections:  corrs,
	}
}

func TestEffectiveMatches_NoCorrections(t *testing.T) {
	p := recordWith([]Recognition{
		{PersonID: "p1", PersonName: "Jan", Confidence: 95, SearchMethod: SearchRecognition},
		{PersonID: "p2", PersonName: "Eva", Confidence: 60, SearchMethod: SearchRecognition},
	}, nil)

	matches := p.EffectiveMatches()
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestEffectiveMatches_FalsePositiveExcluded(t *testing.T) {
	p := recordWith([]Recognition{
		{PersonID: "p1", PersonName: "Jan", Confidence: 100, SearchMethod: SearchRecognition},
		{PersonID: "p2", PersonName: "Eva", Confidence: 90, SearchMethod: SearchRecognition},
	}, []Correction{
		{PersonID: "p1", PersonName: "Jan", Type: CorrectionFalsePositive},
	})

	matches := p.EffectiveMatches()
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].PersonID != "p2" {
		t.Errorf("expected remaining match p2, got %s", matches[0].PersonID)
	}
	// A false positive must win even at raw confidence 100.
	for _, m := range matches {
		if m.PersonID == "p1" {
			t.Error("false positive person appeared in effective matches")
		}
	}
}

func TestEffectiveMatches_FalseNegativeSynthesized(t *testing.T) {
	p := recordWith(nil, []Correction{
		{PersonID: "p3", PersonName: "Petr", Type: CorrectionFalseNegative},
	})

	matches := p.EffectiveMatches()
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 synthesized match, got %d", len(matches))
	}
	m := matches[0]
	if m.PersonID != "p3" {
		t.Errorf("expected person p3, got %s", m.PersonID)
	}
	if m.Confidence != 100 {
		t.Errorf("expected confidence 100, got %f", m.Confidence)
	}
	if m.SearchMethod != SearchManual {
		t.Errorf("expected manual search method, got %s", m.SearchMethod)
	}
	if m.FaceID != "" || m.BoundingBox != nil {
		t.Error("synthesized match should carry no face ID or bounding box")
	}
}

func TestEffectiveMatches_FalseNegativeNotDuplicatedWhenRawPresent(t *testing.T) {
	p := recordWith([]Recognition{
		{PersonID: "p1", PersonName: "Jan", Confidence: 85, FaceID: "f1", SearchMethod: SearchRecognition},
	}, []Correction{
		{PersonID: "p1", PersonName: "Jan", Type: CorrectionFalseNegative},
	})

	matches := p.EffectiveMatches()
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].FaceID != "f1" {
		t.Error("raw recognition should take precedence over synthesized entry")
	}
}

func TestEffectiveMatches_ApprovedKeepsRawEntry(t *testing.T) {
	p := recordWith([]Recognition{
		{PersonID: "p1", PersonName: "Jan", Confidence: 72, SearchMethod: SearchRecognition},
	}, []Correction{
		{PersonID: "p1", PersonName: "Jan", Type: CorrectionApproved},
	})

	matches := p.EffectiveMatches()
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Confidence != 72 {
		t.Errorf("approval must not alter raw confidence, got %f", matches[0].Confidence)
	}
}

func TestMergeCorrection_ReplacesSamePerson(t *testing.T) {
	existing := []Correction{
		{PersonID: "p1", PersonName: "Jan", Type: CorrectionApproved},
		{PersonID: "p2", PersonName: "Eva", Type: CorrectionFalsePositive},
	}

	merged := MergeCorrection(existing, Correction{
		PersonID: "p1", PersonName: "Jan", Type: CorrectionFalsePositive, CreatedAt: time.Now(),
	})

	if len(merged) != 2 {
		t.Fatalf("expected 2 corrections after merge, got %d", len(merged))
	}
	var found *Correction
	for i := range merged {
		if merged[i].PersonID == "p1" {
			if found != nil {
				t.Fatal("duplicate corrections for the same person after merge")
			}
			found = &merged[i]
		}
	}
	if found == nil {
		t.Fatal("correction for p1 missing after merge")
	}
	if found.Type != CorrectionFalsePositive {
		t.Errorf("expected last decision to win, got %s", found.Type)
	}
}

func TestMergeCorrection_PreservesOtherPeople(t *testing.T) {
	existing := []Correction{
		{PersonID: "p2", PersonName: "Eva", Type: CorrectionFalsePositive},
	}

	merged := MergeCorrection(existing, Correction{
		PersonID: "p1", PersonName: "Jan", Type: CorrectionApproved,
	})

	if len(merged) != 2 {
		t.Fatalf("expected 2 corrections, got %d", len(merged))
	}
}

func TestStatusFor(t *testing.T) {
	p := recordWith([]Recognition{
		{PersonID: "p1", PersonName: "Jan", Confidence: 90, SearchMethod: SearchRecognition},
	}, []Correction{
		{PersonID: "p2", PersonName: "Eva", Type: CorrectionFalsePositive},
		{PersonID: "p3", PersonName: "Petr", Type: CorrectionFalseNegative},
		{PersonID: "p4", PersonName: "Anna", Type: CorrectionApproved},
	})

	cases := []struct {
		personID string
		want     CorrectionStatus
	}{
		{"p1", StatusPending},
		{"p2", StatusRejected},
		{"p3", StatusManual},
		{"p4", StatusApproved},
	}
	for _, tc := range cases {
		if got := p.StatusFor(tc.personID); got != tc.want {
			t.Errorf("StatusFor(%s): expected %s, got %s", tc.personID, tc.want, got)
		}
	}
}
