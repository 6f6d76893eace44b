package grading

import (
	"testing"

	"github.com/Batpurev0828/qbtusul/internal/exam"
)

func key(i int) *int        { return &i }
func text(s string) *string { return &s }

func mcTest(keys []int, points []float64) exam.Test {
	var t exam.Test
	for i := range keys {
		t.MCQuestions = append(t.MCQuestions, exam.MCQuestion{
			QuestionText:  "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: key(keys[i]),
			Points:        points[i],
		})
	}
	return t
}

func TestGradeMCScenario(t *testing.T) {
	tt := mcTest([]int{1, 0}, []float64{1, 2})
	res := Grade(tt, []int{1, 1}, nil)

	if res.MCScore != 1 || res.TotalMCPoints != 3 {
		t.Fatalf("mcScore=%v totalMCPoints=%v", res.MCScore, res.TotalMCPoints)
	}
	if !res.MC[0].IsCorrect || res.MC[1].IsCorrect {
		t.Fatalf("correctness: %+v", res.MC)
	}
	if res.MC[1].EarnedPoints != 0 || res.MC[0].EarnedPoints != 1 {
		t.Fatalf("earned: %+v", res.MC)
	}
}

func TestGradeFRExactMatch(t *testing.T) {
	tt := exam.Test{FRQuestions: []exam.FRQuestion{{QuestionText: "6*7", CorrectAnswer: text("42"), Points: 5}}}

	cases := []struct {
		answer string
		want   float64
	}{
		{"42", 5},
		{"  42", 0},
		{"42 ", 0},
		{"", 0},
	}
	for _, tc := range cases {
		res := Grade(tt, nil, []string{tc.answer})
		if res.FR[0].EarnedPoints != tc.want {
			t.Errorf("answer %q earned %v, want %v", tc.answer, res.FR[0].EarnedPoints, tc.want)
		}
	}
}

func TestGradeFRCaseSensitive(t *testing.T) {
	tt := exam.Test{FRQuestions: []exam.FRQuestion{{CorrectAnswer: text("Pi"), Points: 2}}}
	if Grade(tt, nil, []string{"pi"}).FR[0].IsCorrect {
		t.Fatal("FR comparison must be case-sensitive")
	}
}

func TestGradeEmptyFRKeyNeverCorrect(t *testing.T) {
	tt := exam.Test{FRQuestions: []exam.FRQuestion{
		{CorrectAnswer: text(""), Points: 3},
		{Points: 3},
	}}
	res := Grade(tt, nil, []string{"", ""})
	for i, r := range res.FR {
		if r.IsCorrect || r.EarnedPoints != 0 {
			t.Fatalf("FR[%d] graded correct with empty key: %+v", i, r)
		}
	}
	if res.TotalFRPoints != 6 {
		t.Fatalf("totalFRPoints = %v", res.TotalFRPoints)
	}
}

func TestGradeMissingAnswersAreUnanswered(t *testing.T) {
	tt := mcTest([]int{0, 2, 3}, []float64{1, 1, 1})
	tt.FRQuestions = []exam.FRQuestion{{CorrectAnswer: text("x"), Points: 1}}

	res := Grade(tt, []int{0}, nil)
	if res.MC[1].UserAnswer != Unanswered || res.MC[2].UserAnswer != Unanswered {
		t.Fatalf("missing MC answers not normalized: %+v", res.MC)
	}
	if res.FR[0].UserAnswer != "" {
		t.Fatalf("missing FR answer = %q", res.FR[0].UserAnswer)
	}
	if res.MCScore != 1 {
		t.Fatalf("mcScore = %v", res.MCScore)
	}
}

func TestGradeIgnoresExtraAnswers(t *testing.T) {
	tt := mcTest([]int{0}, []float64{1})
	res := Grade(tt, []int{0, 1, 2}, []string{"extra"})
	if len(res.MC) != 1 || len(res.FR) != 0 {
		t.Fatalf("result lengths: mc=%d fr=%d", len(res.MC), len(res.FR))
	}
}

func TestGradeStrippedKeyNeverMatchesUnanswered(t *testing.T) {
	tt := exam.Test{MCQuestions: []exam.MCQuestion{{Options: []string{"a", "b"}, Points: 1}}}
	res := Grade(tt, []int{-1}, nil)
	if res.MC[0].IsCorrect {
		t.Fatal("unanswered matched a missing key")
	}
}

func TestGradeZeroPointsCountAsOne(t *testing.T) {
	tt := mcTest([]int{0}, []float64{0})
	tt.FRQuestions = []exam.FRQuestion{{CorrectAnswer: text("x")}}
	res := Grade(tt, []int{0}, []string{"x"})
	if res.TotalPossible != 2 || res.TotalScore != 2 {
		t.Fatalf("totalScore=%v totalPossible=%v", res.TotalScore, res.TotalPossible)
	}
}

func TestGradeTotalsAndBounds(t *testing.T) {
	tt := mcTest([]int{0, 1, 2, 3}, []float64{1, 2, 3, 4})
	tt.FRQuestions = []exam.FRQuestion{
		{CorrectAnswer: text("a"), Points: 5},
		{CorrectAnswer: text("b"), Points: 5},
	}
	answerSets := []struct {
		mc []int
		fr []string
	}{
		{nil, nil},
		{[]int{0, 1, 2, 3}, []string{"a", "b"}},
		{[]int{3, 2, 1, 0}, []string{"b", "a"}},
		{[]int{0, -1, 2}, []string{"a"}},
	}
	for _, as := range answerSets {
		res := Grade(tt, as.mc, as.fr)
		var mcEarned, frEarned float64
		for _, r := range res.MC {
			if r.EarnedPoints != 0 && r.EarnedPoints != r.Points {
				t.Fatalf("partial credit: %+v", r)
			}
			mcEarned += r.EarnedPoints
		}
		for _, r := range res.FR {
			frEarned += r.EarnedPoints
		}
		if res.MCScore != mcEarned {
			t.Fatalf("mcScore %v != sum %v", res.MCScore, mcEarned)
		}
		if res.TotalScore != mcEarned+frEarned {
			t.Fatalf("totalScore %v != %v", res.TotalScore, mcEarned+frEarned)
		}
		if res.TotalPossible != res.TotalMCPoints+res.TotalFRPoints || res.TotalPossible != 20 {
			t.Fatalf("totalPossible = %v", res.TotalPossible)
		}
		if res.TotalScore < 0 || res.TotalScore > res.TotalPossible {
			t.Fatalf("score out of bounds: %v/%v", res.TotalScore, res.TotalPossible)
		}
	}
}

func TestGradeDoesNotMutateTest(t *testing.T) {
	tt := mcTest([]int{1}, []float64{1})
	res := Grade(tt, []int{1}, nil)
	res.MC[0].Options[0] = "changed"
	if tt.MCQuestions[0].Options[0] != "a" {
		t.Fatal("result shares option storage with the test")
	}
}
