package schedule

import "testing"

func TestStageFamily(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Paint 2", "paint"},
		{"paint-1", "paint"},
		{"Clear_3", "clear"},
		{"Clear.2", "clear"},
		{"SAND", "sand"},
		{"  Scuff  ", "scuff"},
		{"Assembly", "assembly"},
		{"Paint", "paint"},
	}
	for _, tc := range cases {
		if got := StageFamily(tc.in); got != tc.want {
			t.Errorf("StageFamily(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStageClasses(t *testing.T) {
	for _, s := range []string{"Prime", "Paint 1", "Clear 2"} {
		if !IsFinishing(s) {
			t.Errorf("IsFinishing(%q) = false", s)
		}
	}
	for _, s := range []string{"Strip", "Sand", "Scuff", "Stain", "Assembly", "Repair"} {
		if IsFinishing(s) {
			t.Errorf("IsFinishing(%q) = true", s)
		}
	}
	if !IsAssembly("Assembly") || IsAssembly("Sand") {
		t.Fatalf("IsAssembly misclassifies")
	}
}
