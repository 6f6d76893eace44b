package exam

import "time"

// MCQuestion is a single multiple-choice question. CorrectAnswer is a 0-based
// index into Options; it and Solution are nil in the sanitized view.
type MCQuestion struct {
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
	Points        float64  `json:"points"`
	Solution      *string  `json:"solution,omitempty"`
	Order         int      `json:"order"`
}

// FRQuestion is a free-response question. An empty CorrectAnswer means the
// question is never auto-graded as correct.
type FRQuestion struct {
	QuestionText  string  `json:"questionText"`
	CorrectAnswer *string `json:"correctAnswer,omitempty"`
	Points        float64 `json:"points"`
	Solution      *string `json:"solution,omitempty"`
	Order         int     `json:"order"`
}

type Test struct {
	ID               string       `json:"id"`
	Tag              string       `json:"tag"`
	Subject          string       `json:"subject"`
	Title            string       `json:"title"`
	Summary          string       `json:"summary,omitempty"`
	Description      string       `json:"description,omitempty"`
	TimeLimitMinutes int          `json:"timeLimitMinutes"`
	MCQuestions      []MCQuestion `json:"mcQuestions"`
	FRQuestions      []FRQuestion `json:"frQuestions"`
	Published        bool         `json:"published"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key returns the MC answer key, or -1 when it has been stripped.
func (q MCQuestion) Key() int {
	if q.CorrectAnswer == nil {
		return -1
	}
	return *q.CorrectAnswer
}

// Key returns the FR answer key, or "" when absent.
func (q FRQuestion) Key() string {
	if q.CorrectAnswer == nil {
		return ""
	}
	return *q.CorrectAnswer
}

func (q MCQuestion) SolutionText() string {
	if q.Solution == nil {
		return ""
	}
	return *q.Solution
}

func (q FRQuestion) SolutionText() string {
	if q.Solution == nil {
		return ""
	}
	return *q.Solution
}

// GradedPoints is the question weight used for scoring: unset or zero counts as 1.
func GradedPoints(p float64) float64 {
	if p == 0 {
		return 1
	}
	return p
}

// Summary is the listing view of a Test.
type Summary struct {
	ID               string    `json:"id"`
	Tag              string    `json:"tag"`
	Subject          string    `json:"subject"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	Description      string    `json:"description"`
	TimeLimitMinutes int       `json:"timeLimitMinutes"`
	Published        bool      `json:"published"`
	MCQuestionCount  int       `json:"mcQuestionCount"`
	FRQuestionCount  int       `json:"frQuestionCount"`
	TotalPoints      float64   `json:"totalPoints"`
	CreatedAt        time.Time `json:"createdAt"`
}

const untagged = "untagged"

func Summarize(t Test) Summary {
	s := Summary{
		ID:               t.ID,
		Tag:              t.Tag,
		Subject:          t.Subject,
		Title:            t.Title,
		Summary:          t.Summary,
		Description:      t.Description,
		TimeLimitMinutes: t.TimeLimitMinutes,
		Published:        t.Published,
		MCQuestionCount:  len(t.MCQuestions),
		FRQuestionCount:  len(t.FRQuestions),
		CreatedAt:        t.CreatedAt,
	}
	if s.Tag == "" {
		s.Tag = untagged
	}
	if s.Summary == "" {
		s.Summary = t.Description
	}
	for _, q := range t.MCQuestions {
		s.TotalPoints += GradedPoints(q.Points)
	}
	for _, q := range t.FRQuestions {
		s.TotalPoints += GradedPoints(q.Points)
	}
	return s
}
