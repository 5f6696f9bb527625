package prompt

import "strings"

// MaxReportChars bounds how much extracted report text goes into the
// structured-report prompt.
const MaxReportChars = 2000

// reportTemplate is a strict contract with the model: the normalizer
// depends on these exact headings, bullet markers and the (Missing)
// marker, so the section skeleton must not drift.
const reportTemplate = `
Analyze this medical report and output in this exact structured Markdown format. Follow these rules strictly:
- Use bold headings (**Heading**) and subheadings (### Heading).
- Use bullets (-) with a space after each bullet.
- Capitalize acronyms correctly (e.g., CBC, WBC, HCT, MCV, MCH, MCHC, RBC).
- Capitalize test names consistently (e.g., Hemoglobin, Total Leukocyte Count).
- Add a blank line between sections for readability.
- Do not add extra text or deviate from this structure.
- If data is missing, explicitly state '(Missing)' for the value.
- Use 'None' for empty treatments or precautions if none are mentioned.
- Ensure all sections are included, even if empty.
- Use 'their' instead of 'his' for gender-neutral language in the closing statement.

### Medical Report Analysis: Complete Blood Count (CBC)

**Report Overview**  
[Brief summary of the report, its purpose, and limitations like missing data or need for physician consultation.]

#### **Patient Information**
- **Name**: [Name]  
- **Age**: [Age]  
- **Sex**: [Sex, e.g., Male, Female, M, F]  
- **Date of Report**: [Date, format as DD/MM/YYYY]  

#### **Test Results**
[Note about units/reference ranges if applicable, e.g., 'Units and reference ranges are not provided.']  

- **Hemoglobin**: [Value or (Missing)]  
- **Total Leukocyte Count (WBC)**: [Value or (Missing)]  
- **Differential Leukocyte Count**: [Value or (Missing)]  
- **Platelet Count**: [Value or (Missing)]  
- **Total RBC Count**: [Value or (Missing)]  
- **Hematocrit (HCT)**: [Value or (Missing)]  
- **Mean Corpuscular Volume (MCV)**: [Value or (Missing)]  
- **Mean Cell Hemoglobin (MCH)**: [Value or (Missing)]  
- **Mean Cell Hemoglobin Concentration (MCHC)**: [Value or (Missing)]  

#### **Clinical Notes from Report**
- [Note 1 or None if no notes]  
- [Note 2 or None if no notes]  

#### **Potential Diseases/Conditions**
[Speculative conditions based on data; emphasize no diagnosis and need for doctor.]

#### **Treatments Suggested**
[None or list treatments if mentioned.]

#### **Precautions and Recommendations**
[Precautions from report; include general advice to consult a doctor.]

This analysis is for informational purposes only and is not a substitute for professional medical advice. [Patient Name] should follow up with their healthcare provider promptly.

Report text: `

// ComposeQuestion builds the free-form Q&A prompt from the user question
// and the retrieved reference snippets.
func ComposeQuestion(question string, snippets []string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nRelevant info: ")
	b.WriteString(strings.Join(snippets, "\n"))
	b.WriteString("\nAnswer based on info:")
	return b.String()
}

// ComposeReport builds the structured-report prompt, truncating the
// extracted report text to the first MaxReportChars characters.
func ComposeReport(reportText string) string {
	return reportTemplate + Truncate(reportText, MaxReportChars)
}

// ComposeSimplify builds the medical-term simplification prompt.
func ComposeSimplify(term string) string {
	return "Simplify the medical term '" + term + "' in simple language:"
}

// Truncate cuts s to at most n characters (runes, so multi-byte input is
// never split mid-character).
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
