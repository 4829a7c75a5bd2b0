// package formatter renders songs, file listings and warm runs for the terminal, as CSV or as JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/drivetune/internal/models"
)

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatSize renders a byte count with a binary unit. Negative sizes are unknown.
func FormatSize(n int64) string {
	if n < 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FeaturesLine summarizes audio features on a single line.
func FeaturesLine(f *models.AudioFeatures) string {
	if f.IsEmpty() {
		return ""
	}

	var parts []string
	if f.Duration > 0 {
		parts = append(parts, FormatDuration(f.Duration))
	}
	if f.Bitrate > 0 {
		parts = append(parts, fmt.Sprintf("%d kbps", f.Bitrate/1000))
	}
	if f.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%.1f kHz", float64(f.SampleRate)/1000))
	}
	if f.Codec != "" {
		parts = append(parts, f.Codec)
	}
	if f.Container != "" && f.Container != f.Codec {
		parts = append(parts, f.Container)
	}
	return strings.Join(parts, " · ")
}

// SongText renders a resolved song. Lyrics are included when withLyrics is set.
func SongText(song *models.Song, p *Palette, withLyrics bool) string {
	p = paletteOrDefault(p)
	var b strings.Builder

	title := song.DisplayTitle()
	if title == "" {
		title = song.FileID
	}
	b.WriteString(p.Title.Render(title))
	if song.Artist != "" {
		b.WriteString(" " + p.Muted.Render("by") + " " + song.Artist)
	}
	b.WriteString("\n")

	fields := []struct{ label, value string }{
		{"Album", song.Album},
		{"Year", song.Year},
		{"Genre", song.Genre},
		{"Track", song.Track},
		{"File", song.FileName},
		{"File ID", song.FileID},
		{"Audio", FeaturesLine(song.AudioFeatures)},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", p.Muted.Render(fmt.Sprintf("%-8s", f.label+":")), f.value)
	}

	switch {
	case !song.Lyrics.HasText():
		b.WriteString(p.Warn.Render("No lyrics found") + "\n")
	case withLyrics:
		b.WriteString("\n" + song.Lyrics.String() + "\n")
	default:
		lines := strings.Count(song.Lyrics.String(), "\n") + 1
		b.WriteString(p.OK.Render(fmt.Sprintf("✓ lyrics (%d lines)", lines)) + "\n")
	}

	return b.String()
}

// FilesTable renders a file listing as a bordered table.
func FilesTable(files []models.FileInfo, p *Palette) string {
	p = paletteOrDefault(p)
	if len(files) == 0 {
		return p.Muted.Render("No audio files found") + "\n"
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		modified := "-"
		if !f.ModifiedTime.IsZero() {
			modified = f.ModifiedTime.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{f.ID, f.Name, f.MimeType, FormatSize(f.Size), modified})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.Muted).
		Headers("ID", "NAME", "TYPE", "SIZE", "MODIFIED").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.Title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render() + "\n"
}

// FilesCSV renders a file listing as CSV with columns: ID, Name, MimeType, Size, Modified
func FilesCSV(files []models.FileInfo) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "MimeType", "Size", "Modified"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, f := range files {
		modified := ""
		if !f.ModifiedTime.IsZero() {
			modified = f.ModifiedTime.UTC().Format(time.RFC3339)
		}
		record := []string{f.ID, f.Name, f.MimeType, strconv.FormatInt(f.Size, 10), modified}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RunSummary renders the outcome of a warm run.
func RunSummary(run *models.ResolveRun, p *Palette) string {
	p = paletteOrDefault(p)

	status := p.OK.Render(fmt.Sprintf("✓ %d resolved", run.Resolved))
	if run.Failed > 0 {
		status += ", " + p.Err.Render(fmt.Sprintf("✗ %d failed", run.Failed))
	}

	elapsed := ""
	if run.FinishedAt != nil && !run.StartedAt.IsZero() {
		elapsed = " " + p.Muted.Render("in "+run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String())
	}

	return fmt.Sprintf("%s %s of %d files%s\n", p.Title.Render("Run "+run.ID), status, run.Total, elapsed)
}
