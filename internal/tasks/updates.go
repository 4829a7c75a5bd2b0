package tasks

import (
	"fmt"

	"github.com/desertthunder/drivetune/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ListFiles Phase = iota
	ResolveSongs
	RecordRun
)

func (p Phase) String() string {
	switch p {
	case ListFiles:
		return "list_files"
	case ResolveSongs:
		return "resolve_songs"
	case RecordRun:
		return "record_run"
	default:
		return ""
	}
}

func listingFilesUpdate(query string) ProgressUpdate {
	msg := "Listing audio files..."
	if query != "" {
		msg = fmt.Sprintf("Listing audio files matching %q...", query)
	}
	return ProgressUpdate{Phase: ListFiles, Step: 0, Total: 1, Message: msg}
}

func foundFilesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListFiles,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d audio files", total),
	}
}

func resolvedUpdate(step, total int, file models.FileInfo, song *models.Song) ProgressUpdate {
	label := file.Name
	if song != nil && song.Title != "" {
		label = song.Title
		if song.Artist != "" {
			label = song.Artist + " - " + song.Title
		}
	}
	return ProgressUpdate{
		Phase:   ResolveSongs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, label),
		Data:    song,
	}
}

func resolveFailedUpdate(step, total int, file models.FileInfo, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveSongs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, file.Name, err),
	}
}

func runRecordedUpdate(run *models.ResolveRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run %s: %d resolved, %d failed", run.ID, run.Resolved, run.Failed),
		Data:    run,
	}
}
