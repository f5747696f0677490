package domain

import "strings"

// Known bundle identifiers for apps that get special capture handling.
var (
	browserAppIDs = []string{
		"com.google.Chrome",
		"com.apple.Safari",
		"org.mozilla.firefox",
		"com.microsoft.edgemac",
		"com.operasoftware.Opera",
	}

	editorAppIDs = []string{
		"com.microsoft.VSCode",
		"com.apple.dt.Xcode",
		"com.jetbrains",
		"com.sublimetext",
		"com.github.atom",
		"org.vim.MacVim",
	}
)

// IsBrowserApp reports whether the bundle id belongs to a known browser.
func IsBrowserApp(appID string) bool {
	return matchesAny(appID, browserAppIDs)
}

// IsEditorApp reports whether the bundle id belongs to a known editor/IDE.
func IsEditorApp(appID string) bool {
	return matchesAny(appID, editorAppIDs)
}

func matchesAny(appID string, ids []string) bool {
	for _, id := range ids {
		if strings.Contains(appID, id) {
			return true
		}
	}
	return false
}
