package event

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"Upcoming", StatusUpcoming, false},
		{"upcoming", StatusUpcoming, false},
		{" EXPIRED ", StatusExpired, false},
		{"unknown", StatusUnknown, false},
		{"soon", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Errorf("ParseStatus(%q) error = %v, want ErrInvalidStatus", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDataset_WithStatus(t *testing.T) {
	d := Dataset{
		{URL: "a", Status: StatusUpcoming},
		{URL: "b", Status: StatusExpired},
		{URL: "c", Status: StatusUpcoming},
	}

	got := d.WithStatus(StatusUpcoming)
	if len(got) != 2 || got[0].URL != "a" || got[1].URL != "c" {
		t.Errorf("WithStatus(Upcoming) = %v, want [a c]", urls(got))
	}
	if got := d.WithStatus(StatusUnknown); got == nil || len(got) != 0 {
		t.Errorf("WithStatus(Unknown) = %v, want empty non-nil", got)
	}
}
