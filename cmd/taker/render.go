package main

import (
	"fmt"
	"io"

	"github.com/Batpurev0828/qbtusul/internal/attempt"
	"github.com/Batpurev0828/qbtusul/internal/session"
)

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  n, next | p, prev        move between questions
  j, jump mc|fr <number>   go to a question
  a, ans <A|2|text>        answer the current question
  clear                    remove the current answer
  status                   answered count and time left
  s, submit                hand in the test
  login <password>         sign in again after the login expires
`)
}

// optionLetter maps 0 to "A"; unanswered (-1) prints as "-".
func optionLetter(i int) string {
	if i < 0 {
		return "-"
	}
	return string(rune('A' + i))
}

func printQuestion(out io.Writer, q session.Question, clock string) {
	fmt.Fprintf(out, "\n#%d (%s %d, %g pts)  %s\n", q.Number, q.Section, q.Index+1, q.Points, clock)
	fmt.Fprintln(out, q.Text)
	if q.Section == session.SectionMC {
		for i, opt := range q.Options {
			mark := " "
			if q.Selected == i {
				mark = "*"
			}
			fmt.Fprintf(out, " %s %s) %s\n", mark, optionLetter(i), opt)
		}
		return
	}
	if q.Response != "" {
		fmt.Fprintf(out, "  your answer: %s\n", q.Response)
	}
}

func printReport(out io.Writer, rec attempt.Record) {
	fmt.Fprintf(out, "\nattempt %s: %g / %g\n", rec.ID, rec.TotalScore, rec.TotalPossible)
	fmt.Fprintf(out, "multiple choice %g / %g, free response %g / %g\n",
		rec.MCScore, rec.TotalMCPoints, rec.FRScore, rec.TotalFRPoints)
	for _, r := range rec.MC {
		fmt.Fprintf(out, "  MC %d %s  yours %s, key %s  (%g/%g)\n",
			r.QuestionIndex+1, verdict(r.IsCorrect), optionLetter(r.UserAnswer), optionLetter(r.CorrectAnswer), r.EarnedPoints, r.Points)
		if r.Solution != "" {
			fmt.Fprintf(out, "      %s\n", r.Solution)
		}
	}
	for _, r := range rec.FR {
		given := r.UserAnswer
		if given == "" {
			given = "-"
		}
		fmt.Fprintf(out, "  FR %d %s  yours %q, key %q  (%g/%g)\n",
			r.QuestionIndex+1, verdict(r.IsCorrect), given, r.CorrectAnswer, r.EarnedPoints, r.Points)
		if r.Solution != "" {
			fmt.Fprintf(out, "      %s\n", r.Solution)
		}
	}
}

func verdict(ok bool) string {
	if ok {
		return "correct"
	}
	return "wrong  "
}
