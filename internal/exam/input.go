package exam

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Batpurev0828/qbtusul/internal/apierr"
)

const (
	defaultSubject          = "General"
	defaultTimeLimitMinutes = 120
	defaultMCPoints         = 1
	defaultFRPoints         = 5
	defaultOptionCount      = 4
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MCQuestionInput is the authoring payload for one MC question; nil fields take defaults.
type MCQuestionInput struct {
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options" validate:"omitnil,min=2"`
	CorrectAnswer *int     `json:"correctAnswer" validate:"omitnil,min=0"`
	Points        *float64 `json:"points" validate:"omitnil,min=0"`
	Solution      string   `json:"solution"`
	Order         *int     `json:"order" validate:"omitnil,min=0"`
}

type FRQuestionInput struct {
	QuestionText  string   `json:"questionText"`
	CorrectAnswer string   `json:"correctAnswer"`
	Points        *float64 `json:"points" validate:"omitnil,min=0"`
	Solution      string   `json:"solution"`
	Order         *int     `json:"order" validate:"omitnil,min=0"`
}

// Input is what an admin submits to create or replace a Test. Year is the
// legacy grouping key and is folded into Tag.
type Input struct {
	Tag              string            `json:"tag" validate:"omitempty,max=64,tag"`
	Year             *int              `json:"year,omitempty" validate:"omitnil,min=1990,max=2100"`
	Subject          string            `json:"subject"`
	Title            string            `json:"title" validate:"required,max=200"`
	Summary          string            `json:"summary"`
	Description      string            `json:"description"`
	TimeLimitMinutes *int              `json:"timeLimitMinutes" validate:"omitnil,min=0,max=600"`
	MCQuestions      []MCQuestionInput `json:"mcQuestions" validate:"dive"`
	FRQuestions      []FRQuestionInput `json:"frQuestions" validate:"dive"`
	Published        bool              `json:"published"`
}

// ValidationError lists every problem found in an authoring payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid test: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Kind() apierr.Kind { return apierr.Invalid }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("tag", func(fl validator.FieldLevel) bool {
		return tagPattern.MatchString(fl.Field().String())
	})
	return v
}

// Normalize validates in and turns it into a Test with defaults applied and
// both question arrays stably sorted by order. ID and timestamps are left for
// the store to assign.
func Normalize(in Input) (Test, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Tag = strings.TrimSpace(in.Tag)

	var problems []string
	if err := validate.Struct(in); err != nil {
		problems = append(problems, describe(err)...)
	}

	tag := in.Tag
	if tag == "" && in.Year != nil {
		tag = strconv.Itoa(*in.Year)
	}
	if tag == "" {
		problems = append(problems, "tag is required")
	}

	for i, q := range in.MCQuestions {
		if q.CorrectAnswer == nil {
			continue
		}
		n := defaultOptionCount
		if q.Options != nil {
			n = len(q.Options)
		}
		if *q.CorrectAnswer >= n {
			problems = append(problems, fmt.Sprintf("mcQuestions[%d].correctAnswer must be less than the number of options (%d)", i, n))
		}
	}
	if len(problems) > 0 {
		return Test{}, &ValidationError{Problems: problems}
	}

	t := Test{
		Tag:              tag,
		Subject:          strings.TrimSpace(in.Subject),
		Title:            in.Title,
		Summary:          in.Summary,
		Description:      in.Description,
		TimeLimitMinutes: defaultTimeLimitMinutes,
		MCQuestions:      make([]MCQuestion, 0, len(in.MCQuestions)),
		FRQuestions:      make([]FRQuestion, 0, len(in.FRQuestions)),
		Published:        in.Published,
	}
	if t.Subject == "" {
		t.Subject = defaultSubject
	}
	if in.TimeLimitMinutes != nil {
		t.TimeLimitMinutes = *in.TimeLimitMinutes
	}

	for _, q := range in.MCQuestions {
		opts := q.Options
		if opts == nil {
			opts = make([]string, defaultOptionCount)
		}
		key := 0
		if q.CorrectAnswer != nil {
			key = *q.CorrectAnswer
		}
		sol := q.Solution
		t.MCQuestions = append(t.MCQuestions, MCQuestion{
			QuestionText:  q.QuestionText,
			Options:       append([]string(nil), opts...),
			CorrectAnswer: &key,
			Points:        floatOr(q.Points, defaultMCPoints),
			Solution:      &sol,
			Order:         intOr(q.Order, 0),
		})
	}
	for _, q := range in.FRQuestions {
		key, sol := q.CorrectAnswer, q.Solution
		t.FRQuestions = append(t.FRQuestions, FRQuestion{
			QuestionText:  q.QuestionText,
			CorrectAnswer: &key,
			Points:        floatOr(q.Points, defaultFRPoints),
			Solution:      &sol,
			Order:         intOr(q.Order, 0),
		})
	}
	SortQuestions(&t)
	return t, nil
}

// SortQuestions orders both question arrays by their order field, keeping
// insertion order for ties.
func SortQuestions(t *Test) {
	sort.SliceStable(t.MCQuestions, func(i, j int) bool { return t.MCQuestions[i].Order < t.MCQuestions[j].Order })
	sort.SliceStable(t.FRQuestions, func(i, j int) bool { return t.FRQuestions[i].Order < t.FRQuestions[j].Order })
}

func describe(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			out = append(out, field+" is required")
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "tag":
			out = append(out, field+" may only contain letters, digits, '_' and '-'")
		default:
			out = append(out, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return out
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
