package core

// JurisdictionInfo describes the legal system a decision belongs to.
type JurisdictionInfo struct {
	LegalSystemType     string `json:"legal_system_type" yaml:"legal_system_type"`
	PreciseJurisdiction string `json:"precise_jurisdiction" yaml:"precise_jurisdiction"`
	JurisdictionCode    string `json:"jurisdiction_code" yaml:"jurisdiction_code"`
	Confidence          string `json:"confidence" yaml:"confidence"`
	Reasoning           string `json:"reasoning" yaml:"reasoning"`
}

// IsCommonLaw reports whether the common-law-only steps apply.
func (j *JurisdictionInfo) IsCommonLaw() bool {
	return j != nil && j.LegalSystemType == "Common-law jurisdiction"
}

// EditedAnalysisValues holds the user-editable form fields.
type EditedAnalysisValues struct {
	CaseCitation        string `json:"caseCitation" yaml:"caseCitation"`
	Jurisdiction        string `json:"jurisdiction" yaml:"jurisdiction"`
	ChoiceOfLawSections string `json:"choiceOfLawSections" yaml:"choiceOfLawSections"`
	Themes              string `json:"themes" yaml:"themes"`
	RelevantFacts       string `json:"relevantFacts" yaml:"relevantFacts"`
	PILProvisions       string `json:"pilProvisions" yaml:"pilProvisions"`
	ChoiceOfLawIssue    string `json:"choiceOfLawIssue" yaml:"choiceOfLawIssue"`
	CourtsPosition      string `json:"courtsPosition" yaml:"courtsPosition"`
	ObiterDicta         string `json:"obiterDicta" yaml:"obiterDicta"`
	DissentingOpinions  string `json:"dissentingOpinions" yaml:"dissentingOpinions"`
	Abstract            string `json:"abstract" yaml:"abstract"`
}

// EditedField names one field of EditedAnalysisValues by its JSON key.
type EditedField string

const (
	FieldCaseCitation        EditedField = "caseCitation"
	FieldJurisdiction        EditedField = "jurisdiction"
	FieldChoiceOfLawSections EditedField = "choiceOfLawSections"
	FieldThemes              EditedField = "themes"
	FieldRelevantFacts       EditedField = "relevantFacts"
	FieldPILProvisions       EditedField = "pilProvisions"
	FieldChoiceOfLawIssue    EditedField = "choiceOfLawIssue"
	FieldCourtsPosition      EditedField = "courtsPosition"
	FieldObiterDicta         EditedField = "obiterDicta"
	FieldDissentingOpinions  EditedField = "dissentingOpinions"
	FieldAbstract            EditedField = "abstract"
)

// Get returns the value of a field; unknown fields yield "".
func (v *EditedAnalysisValues) Get(f EditedField) string {
	if p := v.ptr(f); p != nil {
		return *p
	}
	return ""
}

// Set assigns a field; unknown fields are ignored.
func (v *EditedAnalysisValues) Set(f EditedField, value string) {
	if p := v.ptr(f); p != nil {
		*p = value
	}
}

// IsEmpty reports whether every field is blank.
func (v EditedAnalysisValues) IsEmpty() bool {
	return v == EditedAnalysisValues{}
}

func (v *EditedAnalysisValues) ptr(f EditedField) *string {
	switch f {
	case FieldCaseCitation:
		return &v.CaseCitation
	case FieldJurisdiction:
		return &v.Jurisdiction
	case FieldChoiceOfLawSections:
		return &v.ChoiceOfLawSections
	case FieldThemes:
		return &v.Themes
	case FieldRelevantFacts:
		return &v.RelevantFacts
	case FieldPILProvisions:
		return &v.PILProvisions
	case FieldChoiceOfLawIssue:
		return &v.ChoiceOfLawIssue
	case FieldCourtsPosition:
		return &v.CourtsPosition
	case FieldObiterDicta:
		return &v.ObiterDicta
	case FieldDissentingOpinions:
		return &v.DissentingOpinions
	case FieldAbstract:
		return &v.Abstract
	default:
		return nil
	}
}

// StoredAnalyzerSnapshot is persisted alongside a draft or suggestion so
// the analysis can be restored without re-running it.
type StoredAnalyzerSnapshot struct {
	CorrelationID   string                `json:"correlationId,omitempty" yaml:"correlationId,omitempty"`
	DraftID         int64                 `json:"draftId,omitempty" yaml:"draftId,omitempty"`
	Jurisdiction    *JurisdictionInfo     `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	AnalysisResults AnalysisResults       `json:"analysisResults,omitempty" yaml:"analysisResults,omitempty"`
	EditedFields    *EditedAnalysisValues `json:"editedFields,omitempty" yaml:"editedFields,omitempty"`
}
