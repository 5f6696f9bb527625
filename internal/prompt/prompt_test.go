package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeQuestion(t *testing.T) {
	got := ComposeQuestion("what is anemia?", []string{"snippet one", "snippet two"})
	want := "Question: what is anemia?\nRelevant info: snippet one\nsnippet two\nAnswer based on info:"
	assert.Equal(t, want, got)
}

func TestComposeQuestionNoSnippets(t *testing.T) {
	got := ComposeQuestion("what is anemia?", nil)
	assert.Equal(t, "Question: what is anemia?\nRelevant info: \nAnswer based on info:", got)
}

func TestComposeReportContainsSections(t *testing.T) {
	got := ComposeReport("Hb 13.5 g/dL")

	for _, section := range []string{
		"### Medical Report Analysis: Complete Blood Count (CBC)",
		"#### **Patient Information**",
		"#### **Test Results**",
		"#### **Clinical Notes from Report**",
		"#### **Potential Diseases/Conditions**",
		"#### **Treatments Suggested**",
		"#### **Precautions and Recommendations**",
	} {
		assert.Contains(t, got, section)
	}
	for _, param := range []string{
		"- **Hemoglobin**: [Value or (Missing)]",
		"- **Total Leukocyte Count (WBC)**: [Value or (Missing)]",
		"- **Differential Leukocyte Count**: [Value or (Missing)]",
		"- **Platelet Count**: [Value or (Missing)]",
		"- **Total RBC Count**: [Value or (Missing)]",
		"- **Hematocrit (HCT)**: [Value or (Missing)]",
		"- **Mean Corpuscular Volume (MCV)**: [Value or (Missing)]",
		"- **Mean Cell Hemoglobin (MCH)**: [Value or (Missing)]",
		"- **Mean Cell Hemoglobin Concentration (MCHC)**: [Value or (Missing)]",
	} {
		assert.Contains(t, got, param)
	}
	// gender-neutral closing
	assert.Contains(t, got, "their healthcare provider")
	assert.True(t, strings.HasSuffix(got, "Report text: Hb 13.5 g/dL"))
}

func TestComposeReportKeepsHardLineBreaks(t *testing.T) {
	// the value lines end with Markdown two-space hard breaks; renderers
	// rely on them to keep each parameter on its own line
	got := ComposeReport("x")
	for _, line := range []string{
		"**Report Overview**  \n",
		"- **Name**: [Name]  \n",
		"- **Date of Report**: [Date, format as DD/MM/YYYY]  \n",
		"- **Hemoglobin**: [Value or (Missing)]  \n",
		"- **Mean Cell Hemoglobin Concentration (MCHC)**: [Value or (Missing)]  \n",
		"- [Note 2 or None if no notes]  \n",
	} {
		assert.Contains(t, got, line)
	}
}

func TestComposeReportTruncates(t *testing.T) {
	long := strings.Repeat("x", MaxReportChars+500)
	got := ComposeReport(long)
	assert.True(t, strings.HasSuffix(got, strings.Repeat("x", MaxReportChars)))
	assert.False(t, strings.HasSuffix(got, strings.Repeat("x", MaxReportChars+1)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	// rune-safe on multi-byte input
	assert.Equal(t, "héll", Truncate("héllo", 4))
}
