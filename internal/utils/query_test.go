package utils

import (
	"reflect"
	"testing"
)

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestBoolDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  bool
		want bool
	}{
		{"", true, true},
		{"true", false, true},
		{" 1 ", false, true},
		{"false", true, false},
		{"yes", false, false},
	}
	for _, tc := range cases {
		if got := BoolDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("BoolDefault(%q, %v) = %v; want %v", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("https://a.com, https://b.com", "", " ,https://c.com,")
	want := []string{"https://a.com", "https://b.com", "https://c.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitList = %v; want %v", got, want)
	}
	if SplitList() != nil {
		t.Fatal("empty input should give nil")
	}
}
