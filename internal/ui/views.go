package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/clinivox/internal/processor"
	"github.com/linuxmatters/clinivox/internal/speaker"
)

var (
	accentColor = lipgloss.Color("#0077B6") // Clinivox blue
	okColor     = lipgloss.Color("#00AA00")
	warnColor   = lipgloss.Color("#FFA500")
	failColor   = lipgloss.Color("#A40000")
	mutedColor  = lipgloss.Color("#888888")
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	b.WriteString(renderFileQueue(m))
	b.WriteString("\n\n")

	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accentColor).
		Render("Clinivox 🩺 - Clinical Audio Enhancement")

	subtitle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true).
		Render(fmt.Sprintf("Processing %d recording(s)", m.TotalFiles))

	return title + "\n" + subtitle
}

// renderFileQueue renders the list of files with their status
func renderFileQueue(m Model) string {
	var b strings.Builder

	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file))
		b.WriteString("\n")
	}

	return b.String()
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
		return fmt.Sprintf(" %s %s\n   %s", icon, fileName, renderResultLine(file))

	case StatusProcessing:
		icon := lipgloss.NewStyle().Foreground(warnColor).Render("⚙")
		return fmt.Sprintf(" %s %s\n%s", icon, fileName, renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(failColor).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(mutedColor).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// renderFileDetails renders detailed progress for the active file
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Width(60)

	var content strings.Builder

	content.WriteString("Enhancing and attributing speech\n")
	content.WriteString(renderProgressBar(file.Progress, 40))
	content.WriteString("\n\n")

	elapsed := file.ElapsedTime.Seconds()
	var remaining float64
	if file.Progress > 0 {
		remaining = (elapsed / file.Progress) - elapsed
	}
	fmt.Fprintf(&content, "⏱  Elapsed: %.1fs | Remaining: ~%.1fs\n", elapsed, remaining)
	fmt.Fprintf(&content, "📊 Level: %s | Peak: %s\n", formatLevel(file.CurrentLevel), formatLevel(file.PeakLevel))
	fmt.Fprintf(&content, "🗣  %s | Segments: %d", renderSpeaker(file.Speech, file.Role), file.Segments)
	if file.Tier != "" {
		fmt.Fprintf(&content, " | Quality: %s", renderTier(file.Tier))
	}

	return box.Render(content.String())
}

// renderSpeaker describes who is talking in the latest frame.
func renderSpeaker(speech bool, role speaker.Role) string {
	if !speech {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("Silence")
	}
	return lipgloss.NewStyle().Bold(true).Render(role.Title())
}

func renderTier(tier processor.QualityTier) string {
	color := okColor
	switch tier {
	case processor.TierFair:
		color = warnColor
	case processor.TierPoor, processor.TierVeryPoor:
		color = failColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(tier))
}

func formatLevel(db float64) string {
	if db <= processor.DigitalSilenceFloor {
		return "silent"
	}
	return fmt.Sprintf("%.1f dB", db)
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %d%%", bar, percentage)
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 1).
		Width(60)

	var content string
	if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
		content = fmt.Sprintf("Processing file %d of %d (%d complete)",
			m.CurrentIndex+1, m.TotalFiles, m.CompletedFiles)
	} else {
		content = fmt.Sprintf("Overall Progress: %d/%d complete", m.CompletedFiles, m.TotalFiles)
	}

	return box.Render(content)
}

// renderCompletionSummary renders the final completion summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(okColor).
		Render("✨ Processing Complete!")
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, file := range m.Files {
		switch file.Status {
		case StatusComplete:
			b.WriteString(renderCompletedFile(file))
			b.WriteString("\n")
		case StatusError:
			b.WriteString(renderFileEntry(file))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d of %d recording(s) enhanced", m.CompletedFiles, m.TotalFiles)
	if m.FailedFiles > 0 {
		fmt.Fprintf(&b, ", %d failed", m.FailedFiles)
	}
	b.WriteString("\n")
	b.WriteString("Enhanced speech and speaker timelines are ready for transcription.\n")

	return b.String()
}

// renderResultLine is the one-line quality and speaker summary of a result.
func renderResultLine(file FileProgress) string {
	r := file.Result
	if r == nil {
		return "No result"
	}
	return fmt.Sprintf("Quality: %s | SNR: %.1f dB | Speech: %.0f%% | Turns: %d",
		renderTier(r.Quality.Tier()), r.Quality.SNR, r.Quality.SpeechPresence*100, len(r.Segments))
}

// renderCompletedFile renders a summary for a completed file
func renderCompletedFile(file FileProgress) string {
	icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
	fileName := filepath.Base(file.InputPath)

	r := file.Result
	if r == nil {
		return fmt.Sprintf(" %s %s", icon, fileName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, " %s %s → %s\n", icon, fileName, filepath.Base(r.OutputPath))
	fmt.Fprintf(&b, "   %s\n", renderResultLine(file))
	fmt.Fprintf(&b, "   Talk time: %s", renderTalkTime(r.Segments))
	if file.ReportPath != "" {
		fmt.Fprintf(&b, "\n   Report: %s", filepath.Base(file.ReportPath))
	}
	return b.String()
}

// renderTalkTime lists attributed speech per role in role order.
func renderTalkTime(segments []speaker.Segment) string {
	talk := make(map[speaker.Role]time.Duration)
	for _, seg := range segments {
		talk[seg.Role] += seg.Duration()
	}

	var parts []string
	for _, role := range speaker.Roles() {
		if d, ok := talk[role]; ok {
			parts = append(parts, fmt.Sprintf("%s %.1fs", role.Title(), d.Seconds()))
		}
	}
	if len(parts) == 0 {
		return "none attributed"
	}
	return strings.Join(parts, " | ")
}
