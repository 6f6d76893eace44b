// Package grading turns a Test and a set of raw answers into a scored,
// self-contained result. Everything here is pure: no I/O, no clocks, no
// mutation of the Test.
package grading

import "github.com/Batpurev0828/qbtusul/internal/exam"

// Unanswered is the MC sentinel for "no option selected".
const Unanswered = -1

// MCResult is the graded outcome of one MC question. Question text, options
// and solution are copied so later edits to the Test do not rewrite history.
type MCResult struct {
	QuestionIndex int      `json:"questionIndex"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	UserAnswer    int      `json:"userAnswer"`
	CorrectAnswer int      `json:"correctAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
	Points        float64  `json:"points"`
	EarnedPoints  float64  `json:"earnedPoints"`
	Solution      string   `json:"solution"`
}

type FRResult struct {
	QuestionIndex int     `json:"questionIndex"`
	QuestionText  string  `json:"questionText"`
	UserAnswer    string  `json:"userAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	IsCorrect     bool    `json:"isCorrect"`
	Points        float64 `json:"points"`
	EarnedPoints  float64 `json:"earnedPoints"`
	Solution      string  `json:"solution"`
}

// Result is the full grading output. TotalScore is always MCScore plus the
// FR earned points; TotalPossible is TotalMCPoints plus TotalFRPoints.
type Result struct {
	MC            []MCResult `json:"mcAnswers"`
	FR            []FRResult `json:"frAnswers"`
	MCScore       float64    `json:"mcScore"`
	FRScore       float64    `json:"frScore"`
	TotalMCPoints float64    `json:"totalMCPoints"`
	TotalFRPoints float64    `json:"totalFRPoints"`
	TotalScore    float64    `json:"totalScore"`
	TotalPossible float64    `json:"totalPossible"`
}

// Grade scores answers positionally against t's question arrays in stored
// order. Missing positions count as unanswered; extra positions are ignored.
func Grade(t exam.Test, mcAnswers []int, frAnswers []string) Result {
	res := Result{
		MC: make([]MCResult, len(t.MCQuestions)),
		FR: make([]FRResult, len(t.FRQuestions)),
	}

	for i, q := range t.MCQuestions {
		r := gradeMC(i, q, mcAnswerAt(mcAnswers, i))
		res.MC[i] = r
		res.MCScore += r.EarnedPoints
		res.TotalMCPoints += r.Points
	}
	for i, q := range t.FRQuestions {
		r := gradeFR(i, q, frAnswerAt(frAnswers, i))
		res.FR[i] = r
		res.FRScore += r.EarnedPoints
		res.TotalFRPoints += r.Points
	}

	res.TotalScore = res.MCScore + res.FRScore
	res.TotalPossible = res.TotalMCPoints + res.TotalFRPoints
	return res
}

func gradeMC(i int, q exam.MCQuestion, answer int) MCResult {
	key := q.Key()
	points := exam.GradedPoints(q.Points)
	// a stripped key (-1) must never match the unanswered sentinel
	correct := key >= 0 && answer == key
	r := MCResult{
		QuestionIndex: i,
		QuestionText:  q.QuestionText,
		Options:       append([]string(nil), q.Options...),
		UserAnswer:    answer,
		CorrectAnswer: key,
		IsCorrect:     correct,
		Points:        points,
		Solution:      q.SolutionText(),
	}
	if correct {
		r.EarnedPoints = points
	}
	return r
}

func gradeFR(i int, q exam.FRQuestion, answer string) FRResult {
	key := q.Key()
	points := exam.GradedPoints(q.Points)
	// exact, case-sensitive, untrimmed; an empty key is never correct
	correct := key != "" && answer == key
	r := FRResult{
		QuestionIndex: i,
		QuestionText:  q.QuestionText,
		UserAnswer:    answer,
		CorrectAnswer: key,
		IsCorrect:     correct,
		Points:        points,
		Solution:      q.SolutionText(),
	}
	if correct {
		r.EarnedPoints = points
	}
	return r
}

func mcAnswerAt(answers []int, i int) int {
	if i >= len(answers) || answers[i] < 0 {
		return Unanswered
	}
	return answers[i]
}

func frAnswerAt(answers []string, i int) string {
	if i >= len(answers) {
		return ""
	}
	return answers[i]
}
