package browser

import (
	"testing"
)

func TestNewLauncherEngines(t *testing.T) {
	for _, engine := range []string{"", EngineChromedp, EngineRod} {
		l, err := NewLauncher(engine, Options{})
		if err != nil {
			t.Errorf("engine %q: unexpected error %v", engine, err)
		}
		if l == nil {
			t.Errorf("engine %q: nil launcher", engine)
		}
	}

	if _, err := NewLauncher("firefox", Options{}); err == nil {
		t.Error("unknown engine should be rejected")
	}
}

func TestPickUserAgent(t *testing.T) {
	if got := pickUserAgent(Options{UserAgent: "custom"}); got != "custom" {
		t.Errorf("explicit agent: got %q", got)
	}

	got := pickUserAgent(Options{})
	found := false
	for _, ua := range userAgents {
		if ua == got {
			found = true
		}
	}
	if !found {
		t.Errorf("random agent %q not in rotation list", got)
	}
}

func TestJSString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`a[title="Next page"]`, `"a[title=\"Next page\"]"`},
		{`ul li`, `"ul li"`},
		{`ul > li`, `"ul \u003e li"`},
	}
	for _, tt := range tests {
		if got := jsString(tt.in); got != tt.want {
			t.Errorf("jsString(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}
