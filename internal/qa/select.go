package qa

import (
	"github.com/sells-group/opslens/internal/model"
)

// SectionState says whether a section can be used for an answer.
type SectionState string

const (
	SectionOK      SectionState = "ok"
	SectionFailed  SectionState = "failed"
	SectionMissing SectionState = "missing"
)

// SectionData is one selected slice of the snapshot.
type SectionData struct {
	Section model.Section
	State   SectionState
	Payload any
	Failure *model.Failure
}

// Selection is the bounded context an answer is built from. Required holds
// the configured sections the intent needs; Missing the ones it would need
// but the project does not configure.
type Selection struct {
	Required []SectionData
	Missing  []model.Section
}

// OK counts required sections that carry data.
func (s Selection) OK() int {
	n := 0
	for _, d := range s.Required {
		if d.State == SectionOK {
			n++
		}
	}
	return n
}

// Find returns the selected section if present.
func (s Selection) Find(sec model.Section) (SectionData, bool) {
	for _, d := range s.Required {
		if d.Section == sec {
			return d, true
		}
	}
	return SectionData{}, false
}

// Select pulls only the sections the intent needs from the enriched
// snapshot. Sections whose platform is disabled for the project are
// reported as missing rather than failed.
func Select(es *model.EnrichedSnapshot, intent model.QuestionIntent) Selection {
	var sel Selection
	if es == nil {
		es = &model.EnrichedSnapshot{}
	}
	for _, sec := range intent.Sections {
		d, configured := selectSection(es, sec)
		if !configured {
			sel.Missing = append(sel.Missing, sec)
			continue
		}
		sel.Required = append(sel.Required, d)
	}
	return sel
}

func selectSection(es *model.EnrichedSnapshot, sec model.Section) (SectionData, bool) {
	d := SectionData{Section: sec}
	switch sec {
	case model.SectionProject:
		d.State = SectionOK
		d.Payload = es.Project
		return d, true

	case model.SectionInsights:
		if !es.Project.Enabled(model.PlatformAWS) {
			return d, false
		}
		ins := es.Insights
		switch {
		case ins == nil:
			d.State = SectionFailed
			d.Failure = &model.Failure{Kind: model.KindInternal, Message: "cost insights were not computed"}
		case ins.Status != model.StatusOK:
			d.State = SectionFailed
			d.Failure = ins.Failure
		default:
			d.State = SectionOK
			d.Payload = ins
		}
		return d, true
	}

	platform := model.Platform(sec)
	if !es.Project.Enabled(platform) {
		return d, false
	}
	res, ok := es.Snapshot.Result(platform)
	switch {
	case !ok:
		d.State = SectionFailed
		d.Failure = &model.Failure{Kind: model.KindInternal, Message: "no result collected"}
	case !res.IsOK():
		d.State = SectionFailed
		d.Failure = res.Failure
	default:
		d.State = SectionOK
		d.Payload = res.Payload
	}
	return d, true
}
