package server

import (
	"net/http"
	"testing"
	"time"

	"eduops/internal/models"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"prg-ab12cd", true},
		{"act-000000", true},
		{"evt-zzzzzz", true},
		{"", false},
		{"prg", false},
		{"prg-", false},
		{"prg-abc", false},     // too short
		{"prg-abcdefg", false}, // too long
		{"PRG-ab12cd", false},  // uppercase prefix
		{"prg-AB12CD", false},  // uppercase hash
		{"prg_ab12cd", false},  // wrong separator
		{"pr-ab12cd", false},   // 2-letter prefix
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := validateID(tt.id)
			if got != tt.want {
				t.Fatalf("validateID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestKindFromSegment(t *testing.T) {
	tests := []struct {
		segment string
		want    models.AttachmentKind
		wantErr bool
	}{
		{"programs", models.AttachmentKindProgram, false},
		{"program", models.AttachmentKindProgram, false},
		{"activities", models.AttachmentKindActivity, false},
		{"activity", models.AttachmentKindActivity, false},
		{"documentation", models.AttachmentKindDocumentation, false},
		{"persons", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			got, err := kindFromSegment(tt.segment)
			if (err != nil) != tt.wantErr {
				t.Fatalf("kindFromSegment(%q) error = %v, wantErr %v", tt.segment, err, tt.wantErr)
			}
			if err != nil && httpStatusFromError(err) != http.StatusBadRequest {
				t.Fatalf("expected 400 for %q, got %d", tt.segment, httpStatusFromError(err))
			}
			if got != tt.want {
				t.Fatalf("kindFromSegment(%q) = %q, want %q", tt.segment, got, tt.want)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"48h", 48 * time.Hour, false},
		{"3600", time.Hour, false},
		{"14d", 14 * 24 * time.Hour, false},
		{"-1h", 0, true},
		{"0", 0, true},
		{"soon", 0, true},
		{"36500d", maxWindow, false},
		{"36501d", 0, true},
		{"200000d", 0, true},
		{"20000000000", 0, true},
		{"99999999999999999999d", 0, true},
		{"1000000h", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseWindow(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWindow(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("parseWindow(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
