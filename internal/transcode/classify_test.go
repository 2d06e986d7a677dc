package transcode

import "testing"

func TestClassify_Defaults(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		ext  string
		want Decision
	}{
		{".m4a", NeedsTranscode},
		{".ogg", NeedsTranscode},
		{".flac", NeedsTranscode},
		{".M4A", NeedsTranscode},
		{"m4a", NeedsTranscode},
		{".mp3", PassThrough},
		{".wav", PassThrough},
		{".xyz", PassThrough},
		{"", PassThrough},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := c.Classify(tt.ext); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestClassify_CustomSet(t *testing.T) {
	c := NewClassifier([]string{"mp3", ".OGG"})

	if got := c.Classify(".mp3"); got != NeedsTranscode {
		t.Errorf("Classify(.mp3) = %v, want NeedsTranscode", got)
	}
	if got := c.Classify(".ogg"); got != NeedsTranscode {
		t.Errorf("Classify(.ogg) = %v, want NeedsTranscode", got)
	}
	if got := c.Classify(".flac"); got != PassThrough {
		t.Errorf("Classify(.flac) = %v, want PassThrough (not in custom set)", got)
	}
}

func TestCanDecode(t *testing.T) {
	for _, ext := range []string{".mp3", ".flac", ".ogg", ".m4a", ".wav"} {
		if !CanDecode(ext) {
			t.Errorf("CanDecode(%q) = false, want true", ext)
		}
	}
	if CanDecode(".opus") {
		t.Error("CanDecode(.opus) = true, want false")
	}
}
