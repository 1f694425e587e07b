package ocr

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sheetgrader/internal/answer"
)

// AnswerKeyPrompt builds the task instruction for reading a teacher's answer
// key sheet. The service must answer with a single JSON object.
func AnswerKeyPrompt(totalQuestions int) string {
	var sb strings.Builder
	sb.WriteString("You are reading a scanned teacher answer key for a paper assessment.\n")
	sb.WriteString(fmt.Sprintf("The sheet declares %d questions. The image may be a grid collage of several pages; read them left to right, top to bottom.\n\n", totalQuestions))
	sb.WriteString("Find the assessment identifier written on the sheet and every question's correct answer.\n")
	writeValueRules(&sb)
	sb.WriteString("\nRespond ONLY with a JSON object of this exact shape:\n")
	sb.WriteString(fmt.Sprintf(`{"assessment_uid": "<identifier or %q>", "answers": {"1": "<value>", "2": "<value>", ...}}`, answer.MissingID))
	sb.WriteString("\n")
	return sb.String()
}

// StudentSheetPrompt builds the task instruction for reading one student's
// completed answer sheet.
func StudentSheetPrompt(totalQuestions int) string {
	var sb strings.Builder
	sb.WriteString("You are reading a scanned student answer sheet for a paper assessment.\n")
	sb.WriteString(fmt.Sprintf("The assessment has %d questions. The image may be a grid collage of several pages; read them left to right, top to bottom.\n\n", totalQuestions))
	sb.WriteString("Find the student identifier written on the sheet and the answer the student gave for every question.\n")
	writeValueRules(&sb)
	sb.WriteString("\nRespond ONLY with a JSON object of this exact shape:\n")
	sb.WriteString(fmt.Sprintf(`{"student_id": "<identifier or %q>", "answers": {"1": "<value>", "2": "<value>", ...}}`, answer.MissingID))
	sb.WriteString("\n")
	return sb.String()
}

func writeValueRules(sb *strings.Builder) {
	sb.WriteString("Rules for answer values:\n")
	sb.WriteString("- Multiple choice: the single chosen letter.\n")
	sb.WriteString("- True/false: the word true or false.\n")
	sb.WriteString("- Enumeration: the written word or phrase, exactly as written.\n")
	sb.WriteString(fmt.Sprintf("- Essay questions: the marker %q, never the essay text.\n", answer.Essay))
	sb.WriteString(fmt.Sprintf("- Illegible writing: the marker %q.\n", answer.Unreadable))
	sb.WriteString(fmt.Sprintf("- A question left blank: the marker %q.\n", answer.MissingAnswer))
	sb.WriteString(fmt.Sprintf("- A question number not visible on the sheet: the marker %q.\n", answer.MissingQuestion))
}
