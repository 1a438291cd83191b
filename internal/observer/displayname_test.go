package observer

import "testing"

func TestDisplayNameFromExe(t *testing.T) {
	tests := []struct {
		name    string
		exePath string
		want    string
	}{
		{"windows path", `C:\Program Files\Google\chrome.exe`, "Chrome"},
		{"hyphenated stem", `/usr/bin/google-chrome`, "Google Chrome"},
		{"underscored stem", `C:\Games\half_life2.exe`, "Half Life2"},
		{"dotted stem", `C:\Tools\notepad.plus.exe`, "Notepad Plus"},
		{"unix path", "/usr/local/bin/code", "Code"},
		{"already capitalized", `C:\Apps\Discord.exe`, "Discord"},
		{"empty path", "", ""},
		{"whitespace only", "   ", ""},
		{"separators only", `C:\Apps\___.exe`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayNameFromExe(tt.exePath); got != tt.want {
				t.Errorf("DisplayNameFromExe(%q) = %q, want %q", tt.exePath, got, tt.want)
			}
		})
	}
}
