package names

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "alice", want: "alice"},
		{in: "alice-2", want: "alice-2"},
		{in: "team_one.v2", want: "team_one.v2"},
		{in: "../../etc/passwd", want: "etcpasswd"},
		{in: "  alice  ", want: "alice"},
		{in: "---", wantErr: true},
		{in: "", wantErr: true},
		{in: "...", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Sanitize(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Sanitize(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Sanitize(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateTaskID(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "1"},
		{in: "task-1.retry"},
		{in: "../etc", wantErr: true},
		{in: "has space", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		err := ValidateTaskID(tt.in)
		if tt.wantErr != (err != nil) {
			t.Errorf("ValidateTaskID(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestSessionName(t *testing.T) {
	got, err := SessionName("alpha", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "omc-alpha-w1" {
		t.Errorf("got %q", got)
	}
}
