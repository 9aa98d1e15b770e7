// Package viz holds the lipgloss styles and small text widgets shared by the
// CLI and the progress TUI.
package viz
