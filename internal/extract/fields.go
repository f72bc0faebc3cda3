package extract

import (
	"strings"

	"github.com/legaldb/caseanalyzer/internal/core"
)

// Field describes where one editable value lives in each payload shape.
type Field struct {
	Name core.EditedField
	// Step is the analysis step whose result feeds the field.
	Step string
	// BackendKey is the submission field name.
	BackendKey string
	// ResultKeys are checked on the step's result payload.
	ResultKeys []string
	// EditedKeys are legacy `*_edited` keys on saved suggestion payloads.
	EditedKeys []string
	// CanonicalKeys are the unedited keys on saved suggestion payloads.
	CanonicalKeys []string
	// NestedKeys are preferred when a value is an object.
	NestedKeys []string
	JoinWith   string
}

// Fields lists every editable field in form order.
var Fields = []Field{
	{
		Name: core.FieldCaseCitation, Step: "case_citation", BackendKey: "case_citation",
		ResultKeys:    []string{"case_citation", "citation"},
		EditedKeys:    []string{"case_citation_edited", "citation_edited"},
		CanonicalKeys: []string{"case_citation", "citation"},
		NestedKeys:    []string{"case_citation", "citation", "text"},
	},
	{
		Name: core.FieldJurisdiction, Step: "jurisdiction_detection", BackendKey: "jurisdiction",
		ResultKeys:    []string{"precise_jurisdiction", "jurisdiction"},
		EditedKeys:    []string{"jurisdiction_edited", "precise_jurisdiction_edited"},
		CanonicalKeys: []string{"jurisdiction", "precise_jurisdiction"},
		NestedKeys:    []string{"precise_jurisdiction", "jurisdiction", "name"},
		JoinWith:      ", ",
	},
	{
		Name: core.FieldChoiceOfLawSections, Step: "col_extraction", BackendKey: "choice_of_law_sections",
		ResultKeys:    []string{"col_section", "col_sections"},
		EditedKeys:    []string{"col_section_edited", "col_sections_edited", "choice_of_law_sections_edited"},
		CanonicalKeys: []string{"col_section", "col_sections", "choice_of_law_sections"},
		NestedKeys:    []string{"col_section", "col_sections"},
		JoinWith:      "\n\n",
	},
	{
		Name: core.FieldThemes, Step: "theme_classification", BackendKey: "themes",
		ResultKeys:    []string{"themes", "theme"},
		EditedKeys:    []string{"themes_edited", "theme_edited", "classification_edited"},
		CanonicalKeys: []string{"themes", "theme", "classification"},
		NestedKeys:    []string{"themes", "theme", "name"},
		JoinWith:      ", ",
	},
	{
		Name: core.FieldRelevantFacts, Step: "relevant_facts", BackendKey: "relevant_facts",
		ResultKeys:    []string{"relevant_facts"},
		EditedKeys:    []string{"relevant_facts_edited"},
		CanonicalKeys: []string{"relevant_facts"},
		NestedKeys:    []string{"relevant_facts", "facts"},
	},
	{
		Name: core.FieldPILProvisions, Step: "pil_provisions", BackendKey: "pil_provisions",
		ResultKeys:    []string{"pil_provisions"},
		EditedKeys:    []string{"pil_provisions_edited"},
		CanonicalKeys: []string{"pil_provisions"},
		NestedKeys:    []string{"pil_provisions", "provisions"},
		JoinWith:      ", ",
	},
	{
		Name: core.FieldChoiceOfLawIssue, Step: "col_issue", BackendKey: "choice_of_law_issue",
		ResultKeys:    []string{"col_issue"},
		EditedKeys:    []string{"col_issue_edited", "choice_of_law_issue_edited"},
		CanonicalKeys: []string{"col_issue", "choice_of_law_issue"},
		NestedKeys:    []string{"col_issue"},
	},
	{
		Name: core.FieldCourtsPosition, Step: "courts_position", BackendKey: "courts_position",
		ResultKeys:    []string{"courts_position"},
		EditedKeys:    []string{"courts_position_edited"},
		CanonicalKeys: []string{"courts_position"},
		NestedKeys:    []string{"courts_position"},
	},
	{
		Name: core.FieldObiterDicta, Step: "obiter_dicta", BackendKey: "obiter_dicta",
		ResultKeys:    []string{"obiter_dicta"},
		EditedKeys:    []string{"obiter_dicta_edited"},
		CanonicalKeys: []string{"obiter_dicta"},
		NestedKeys:    []string{"obiter_dicta"},
	},
	{
		Name: core.FieldDissentingOpinions, Step: "dissenting_opinions", BackendKey: "dissenting_opinions",
		ResultKeys:    []string{"dissenting_opinions"},
		EditedKeys:    []string{"dissenting_opinions_edited"},
		CanonicalKeys: []string{"dissenting_opinions"},
		NestedKeys:    []string{"dissenting_opinions"},
	},
	{
		Name: core.FieldAbstract, Step: "abstract", BackendKey: "abstract",
		ResultKeys:    []string{"abstract"},
		EditedKeys:    []string{"abstract_edited"},
		CanonicalKeys: []string{"abstract"},
		NestedKeys:    []string{"abstract", "summary"},
	},
}

// FieldsForStep returns the fields fed by step.
func FieldsForStep(step string) []Field {
	var out []Field
	for _, f := range Fields {
		if f.Step == step {
			out = append(out, f)
		}
	}
	return out
}

// FromResult extracts one field from its step's result payload.
func (f Field) FromResult(data map[string]any) (string, bool) {
	return ExtractStringFromPayload(data, f.ResultKeys, f.NestedKeys, f.JoinWith)
}

// EditedFromResults fills every field from analysis results. A known
// jurisdiction label takes precedence over the detection payload.
// Missing values resolve to "".
func EditedFromResults(results core.AnalysisResults, jurisdiction *core.JurisdictionInfo) core.EditedAnalysisValues {
	var out core.EditedAnalysisValues
	for _, f := range Fields {
		if s, ok := f.FromResult(results[f.Step]); ok {
			out.Set(f.Name, s)
		}
	}
	if jurisdiction != nil && strings.TrimSpace(jurisdiction.PreciseJurisdiction) != "" {
		out.Jurisdiction = strings.TrimSpace(jurisdiction.PreciseJurisdiction)
	}
	return out
}

// LegacyEditedFields reads edited values from a saved payload that has
// no structured snapshot. When any `*_edited` key exists only the edited
// keys are consulted; otherwise the canonical keys are read the same way.
func LegacyEditedFields(payload map[string]any) core.EditedAnalysisValues {
	useEdited := HasEditedKeys(payload)
	var out core.EditedAnalysisValues
	for _, f := range Fields {
		keys := f.CanonicalKeys
		if useEdited {
			keys = f.EditedKeys
		}
		opts := Options{PreferredKeys: f.NestedKeys, JoinWith: f.JoinWith, Compact: true}
		for _, key := range keys {
			if s, ok := CoerceValueToString(payload[key], opts); ok {
				out.Set(f.Name, s)
				break
			}
		}
	}
	return out
}

// HasEditedKeys reports whether payload carries any `*_edited` key.
func HasEditedKeys(payload map[string]any) bool {
	for k := range payload {
		if strings.HasSuffix(k, "_edited") {
			return true
		}
	}
	return false
}

// BackendFields maps edited values to submission field names.
func BackendFields(values core.EditedAnalysisValues) map[string]string {
	out := make(map[string]string, len(Fields))
	for _, f := range Fields {
		out[f.BackendKey] = values.Get(f.Name)
	}
	return out
}
