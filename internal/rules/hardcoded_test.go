package rules

import (
	"testing"

	"github.com/marcelocantos/retrack/internal/argv"
)

func TestCheckFlagLikePositional(t *testing.T) {
	tests := []struct {
		name       string
		positional []string
		wantErr    bool
	}{
		{"plain", []string{"Lakehouse", "250000"}, false},
		{"flag name", []string{"--force"}, true},
		{"short flag", []string{"-h"}, true},
		{"padded", []string{"  --help"}, true},
		{"dash inside", []string{"semi-detached"}, false},
		{"none", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := argv.Request{Subject: "project", Verb: "create", Positional: tt.positional}
			err := checkFlagLikePositional(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkFlagLikePositional(%v) error = %v, wantErr %v", tt.positional, err, tt.wantErr)
			}
		})
	}
}

func TestCheckResetConfirm(t *testing.T) {
	tests := []struct {
		name    string
		req     argv.Request
		wantErr bool
	}{
		{"reset without confirm", argv.Request{Subject: "reset"}, true},
		{"reset with confirm", argv.Request{Subject: "reset", Options: []argv.Option{argv.Switch("--confirm", true)}}, false},
		{"reset switch off", argv.Request{Subject: "reset", Options: []argv.Option{argv.Switch("--confirm", false)}}, true},
		{"other subject", argv.Request{Subject: "init"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkResetConfirm(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkResetConfirm(%+v) error = %v, wantErr %v", tt.req, err, tt.wantErr)
			}
		})
	}
}
