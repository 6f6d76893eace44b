package exam

// Patch is a partial authoring payload for PUT: only the keys present in
// the request body are non-nil. A present question array replaces the
// stored one as a whole.
type Patch struct {
	Tag              *string            `json:"tag"`
	Year             *int               `json:"year"`
	Subject          *string            `json:"subject"`
	Title            *string            `json:"title"`
	Summary          *string            `json:"summary"`
	Description      *string            `json:"description"`
	TimeLimitMinutes *int               `json:"timeLimitMinutes"`
	MCQuestions      *[]MCQuestionInput `json:"mcQuestions"`
	FRQuestions      *[]FRQuestionInput `json:"frQuestions"`
	Published        *bool              `json:"published"`
}

// InputFrom turns a stored Test back into the payload that would recreate
// it, so a Patch can be applied and the result run through Normalize.
func InputFrom(t Test) Input {
	limit := t.TimeLimitMinutes
	in := Input{
		Tag:              t.Tag,
		Subject:          t.Subject,
		Title:            t.Title,
		Summary:          t.Summary,
		Description:      t.Description,
		TimeLimitMinutes: &limit,
		MCQuestions:      make([]MCQuestionInput, 0, len(t.MCQuestions)),
		FRQuestions:      make([]FRQuestionInput, 0, len(t.FRQuestions)),
		Published:        t.Published,
	}
	for _, q := range t.MCQuestions {
		key, points, order := q.Key(), q.Points, q.Order
		mq := MCQuestionInput{
			QuestionText: q.QuestionText,
			Options:      append([]string{}, q.Options...),
			Points:       &points,
			Solution:     q.SolutionText(),
			Order:        &order,
		}
		if key >= 0 {
			mq.CorrectAnswer = &key
		}
		in.MCQuestions = append(in.MCQuestions, mq)
	}
	for _, q := range t.FRQuestions {
		points, order := q.Points, q.Order
		in.FRQuestions = append(in.FRQuestions, FRQuestionInput{
			QuestionText:  q.QuestionText,
			CorrectAnswer: q.Key(),
			Points:        &points,
			Solution:      q.SolutionText(),
			Order:         &order,
		})
	}
	return in
}

// Apply overlays the present fields of p onto in. A year without a tag
// regroups the test under that year.
func (p Patch) Apply(in Input) Input {
	switch {
	case p.Tag != nil:
		in.Tag = *p.Tag
	case p.Year != nil:
		in.Tag = ""
	}
	if p.Year != nil {
		in.Year = p.Year
	}
	if p.Subject != nil {
		in.Subject = *p.Subject
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Summary != nil {
		in.Summary = *p.Summary
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.TimeLimitMinutes != nil {
		in.TimeLimitMinutes = p.TimeLimitMinutes
	}
	if p.MCQuestions != nil {
		in.MCQuestions = *p.MCQuestions
	}
	if p.FRQuestions != nil {
		in.FRQuestions = *p.FRQuestions
	}
	if p.Published != nil {
		in.Published = *p.Published
	}
	return in
}
