package engine

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:11434", false},
		{"https://ollama.internal:443/", false},
		{"localhost:11434", true},
		{"ftp://localhost", true},
		{"", true},
	}
	for _, tt := range tests {
		e, err := Detect(DetectConfig{OllamaBaseURL: tt.url, KeepAlive: "1m"})
		if tt.wantErr {
			if err == nil {
				t.Errorf("Detect(%q) expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("Detect(%q): %v", tt.url, err)
			continue
		}
		if _, ok := e.(*OllamaEngine); !ok {
			t.Errorf("Detect(%q) returned %T, want *OllamaEngine", tt.url, e)
		}
	}
}
