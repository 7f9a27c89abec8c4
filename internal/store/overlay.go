package store

// CorrectionStatus reports the review state of one person on one photo.
type CorrectionStatus string

const (
	// StatusPending means a raw recognition exists with no human decision yet.
	StatusPending CorrectionStatus = "pending"
	// StatusApproved means a human confirmed the recognition.
	StatusApproved CorrectionStatus = "approved"
	// StatusRejected means a human marked the recognition as a false positive.
	StatusRejected CorrectionStatus = "rejected"
	// StatusManual means a human added the person the gateway missed.
	StatusManual CorrectionStatus = "manual"
)

// CorrectionFor returns the active correction for a person on this photo,
// or nil when none exists.
func (p *PhotoRecord) CorrectionFor(personID string) *Correction {
	for i := range p.Corrections {
		if p.Corrections[i].PersonID == personID {
			return &p.Corrections[i]
		}
	}
	return nil
}

// StatusFor reports the review state for a person on this photo.
func (p *PhotoRecord) StatusFor(personID string) CorrectionStatus {
	if c := p.CorrectionFor(personID); c != nil {
		switch c.Type {
		case CorrectionApproved:
			return StatusApproved
		case CorrectionFalsePositive:
			return StatusRejected
		case CorrectionFalseNegative:
			return StatusManual
		}
	}
	return StatusPending
}

// EffectiveMatches combines the raw recognition set with the correction
// overlay: recognitions rejected as false positives are removed and every
// false negative correction yields one synthesized 100%-confidence entry,
// unless the person already appears among the raw matches.
//
// No confidence threshold is applied here. The stored data stays
// threshold-agnostic so historical scans can be re-filtered at different
// thresholds without calling the gateway again.
func (p *PhotoRecord) EffectiveMatches() []Recognition {
	rejected := make(map[string]bool)
	for _, c := range p.Corrections {
		if c.Type == CorrectionFalsePositive {
			rejected[c.PersonID] = true
		}
	}

	var out []Recognition
	present := make(map[string]bool)
	for _, r := range p.Recognitions {
		if rejected[r.PersonID] {
			continue
		}
		out = append(out, r)
		present[r.PersonID] = true
	}

	for _, c := range p.Corrections {
		if c.Type != CorrectionFalseNegative || present[c.PersonID] {
			continue
		}
		out = append(out, Recognition{
			PersonID:     c.PersonID,
			PersonName:   c.PersonName,
			Confidence:   100,
			SearchMethod: SearchManual,
		})
	}

	return out
}

// MergeCorrection replaces any existing correction for the same person and
// appends the new one, preserving corrections for other people. Both the
// scanner and the standalone review surfaces go through this rule so the
// overlay never accumulates duplicate or stale entries per person.
func MergeCorrection(corrections []Correction, c Correction) []Correction {
	out := make([]Correction, 0, len(corrections)+1)
	for _, existing := range corrections {
		if existing.PersonID == c.PersonID {
			continue
		}
		out = append(out, existing)
	}
	return append(out, c)
}
