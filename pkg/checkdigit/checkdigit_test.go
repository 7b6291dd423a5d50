package checkdigit

import (
	"strconv"
	"testing"
)

func TestValidProductCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{name: "ean13", code: "4901234567894", want: true},
		{name: "ean13 zero check", code: "4006381333931", want: true},
		{name: "ean8", code: "49123456", want: true},
		{name: "ean8 other", code: "96385074", want: true},
		{name: "wrong check digit", code: "4901234567895", want: false},
		{name: "length 12", code: "490123456789", want: false},
		{name: "empty", code: "", want: false},
		{name: "letters", code: "49012345678A4", want: false},
		{name: "letter check digit", code: "490123456789X", want: false},
		{name: "spaces", code: "4901234 67894", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidProductCode(tt.code); got != tt.want {
				t.Fatalf("ValidProductCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestSingleDigitMutationFlipsResult(t *testing.T) {
	valid := []string{"4901234567894", "49123456", "4006381333931"}
	for _, code := range valid {
		if !ValidProductCode(code) {
			t.Fatalf("expected %s to be valid", code)
		}
		for i := 0; i < len(code); i++ {
			orig := int(code[i] - '0')
			for d := 0; d <= 9; d++ {
				if d == orig {
					continue
				}
				mutated := code[:i] + strconv.Itoa(d) + code[i+1:]
				if ValidProductCode(mutated) {
					t.Errorf("mutation %s of %s should fail", mutated, code)
				}
			}
		}
	}
}

func TestAppend(t *testing.T) {
	got, err := Append("490123456789")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if got != "4901234567894" {
		t.Fatalf("expected 4901234567894, got %s", got)
	}
	if _, err := Append("12a"); err == nil {
		t.Fatal("expected error for non-digit payload")
	}
	if _, err := Compute(""); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestValidTaxRate(t *testing.T) {
	for _, rate := range []int{0, 8, 10} {
		if !ValidTaxRate(rate) {
			t.Errorf("expected %d to be valid", rate)
		}
	}
	for _, rate := range []int{-8, 5, 9, 11, 100} {
		if ValidTaxRate(rate) {
			t.Errorf("expected %d to be rejected", rate)
		}
	}
}
