package command

import "testing"

func TestParse_StartStopSynonyms(t *testing.T) {
	tests := []struct {
		body string
		typ  Type
	}{
		{"start moderation", Start},
		{"startmod", Start},
		{"start moderation now", Start},
		{"start", Start},
		{"enable moderation", Start},
		{"enable", Start},
		{"stop moderation", Stop},
		{"stopmod", Stop},
		{"stop", Stop},
		{"disable moderation", Stop},
		{"disable", Stop},
	}

	for _, tt := range tests {
		cmd, ok := Parse(tt.body)
		if !ok {
			t.Errorf("Parse(%q) not recognized", tt.body)
			continue
		}
		if cmd.Type != tt.typ {
			t.Errorf("Parse(%q).Type = %v, want %v", tt.body, cmd.Type, tt.typ)
		}
	}
}

func TestParse_TargetedCommands(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		typ    Type
		target string
	}{
		{"check with target", "check warnings 6591234567", CheckWarnings, "6591234567"},
		{"check missing target", "check warnings", CheckWarnings, ""},
		{"check extra tokens ignored", "check warnings 6591234567 please", CheckWarnings, "6591234567"},
		{"reset with target", "reset warnings 91234567", ResetWarnings, "91234567"},
		{"reset missing target", "reset warnings", ResetWarnings, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := Parse(tt.body)
			if !ok {
				t.Fatalf("Parse(%q) not recognized", tt.body)
			}
			if cmd.Type != tt.typ || cmd.Target != tt.target {
				t.Errorf("Parse(%q) = {%v %q}, want {%v %q}",
					tt.body, cmd.Type, cmd.Target, tt.typ, tt.target)
			}
		})
	}
}

func TestParse_OrdinaryText(t *testing.T) {
	for _, body := range []string{
		"hello world",
		"let's start the meeting",
		"check warning 123", // singular, not a command
		"moderation start",
		"",
	} {
		if cmd, ok := Parse(body); ok {
			t.Errorf("Parse(%q) unexpectedly recognized %v", body, cmd.Type)
		}
	}
}
