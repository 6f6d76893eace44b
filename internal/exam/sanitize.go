package exam

// Sanitize returns the view of t a viewer may see. Admins get t unchanged;
// everyone else gets a deep copy with every answer key and solution removed.
// Every read path reachable before grading must go through here.
func Sanitize(t Test, viewerIsAdmin bool) Test {
	if viewerIsAdmin {
		return t
	}
	out := t
	if t.MCQuestions != nil {
		out.MCQuestions = make([]MCQuestion, len(t.MCQuestions))
		for i, q := range t.MCQuestions {
			out.MCQuestions[i] = MCQuestion{
				QuestionText: q.QuestionText,
				Options:      append([]string(nil), q.Options...),
				Points:       q.Points,
				Order:        q.Order,
			}
		}
	}
	if t.FRQuestions != nil {
		out.FRQuestions = make([]FRQuestion, len(t.FRQuestions))
		for i, q := range t.FRQuestions {
			out.FRQuestions[i] = FRQuestion{
				QuestionText: q.QuestionText,
				Points:       q.Points,
				Order:        q.Order,
			}
		}
	}
	return out
}

// Clone deep-copies t so callers can hand it out without sharing question
// slices or answer pointers with a store.
func Clone(t Test) Test {
	out := t
	if t.MCQuestions != nil {
		out.MCQuestions = make([]MCQuestion, len(t.MCQuestions))
		for i, q := range t.MCQuestions {
			q.Options = append([]string(nil), q.Options...)
			if q.CorrectAnswer != nil {
				v := *q.CorrectAnswer
				q.CorrectAnswer = &v
			}
			if q.Solution != nil {
				v := *q.Solution
				q.Solution = &v
			}
			out.MCQuestions[i] = q
		}
	}
	if t.FRQuestions != nil {
		out.FRQuestions = make([]FRQuestion, len(t.FRQuestions))
		for i, q := range t.FRQuestions {
			if q.CorrectAnswer != nil {
				v := *q.CorrectAnswer
				q.CorrectAnswer = &v
			}
			if q.Solution != nil {
				v := *q.Solution
				q.Solution = &v
			}
			out.FRQuestions[i] = q
		}
	}
	return out
}
