package tutorial

import (
	_ "embed"

	"github.com/nickcecere/lvec/internal/ui"
)

//go:embed guide.md
var guide string

// Guide returns the learning guide as Markdown.
func Guide() string {
	return guide
}

// RenderGuide returns the guide rendered for the terminal.
func RenderGuide() (string, error) {
	return ui.RenderMarkdown(guide)
}
