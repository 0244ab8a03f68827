package classroom

import "testing"

func TestQuestionGrade(t *testing.T) {
	cases := []struct {
		qType, correct, answer string
		want                   bool
	}{
		{QuestionTypeMCQ, "B", "b", true},
		{QuestionTypeMCQ, "B", " B ", true},
		{QuestionTypeMCQ, "B", "C", false},
		{QuestionTypeTF, "True", "true", true},
		{QuestionTypeTF, "True", "對", true},
		{QuestionTypeTF, "False", "F", true},
		{QuestionTypeTF, "False", "True", false},
		{QuestionTypeTF, "True", "", false},
	}
	for _, tc := range cases {
		q := &Question{Type: tc.qType, CorrectAnswer: tc.correct}
		if got := q.Grade(tc.answer); got != tc.want {
			t.Fatalf("Grade(%s %q vs %q) = %v, want %v", tc.qType, tc.correct, tc.answer, got, tc.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleTeacher) || !ValidRole(RoleStudent) || ValidRole("admin") {
		t.Fatalf("unexpected role validation")
	}
}
