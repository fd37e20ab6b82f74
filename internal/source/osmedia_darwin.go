//go:build darwin

package source

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
)

// runAppleScript shells out to osascript and returns the trimmed stdout.
func runAppleScript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.Output()
	if err != nil {
		return "", errs.Transient("osascript failed", err)
	}
	return strings.TrimSpace(string(out)), nil
}

const musicRunningScript = `tell application "System Events" to (name of processes) contains "Music"`

const trackInfoScript = `
tell application "Music"
	if player state is stopped then
		return "stopped"
	end if
	set trackName to name of current track
	set trackArtist to artist of current track
	set trackAlbum to album of current track
	set trackDuration to duration of current track
	set playerPos to player position
	set playerState to player state as string
	set shuf to shuffle enabled
	return trackName & "|||" & trackArtist & "|||" & trackAlbum & "|||" & trackDuration & "|||" & playerPos & "|||" & playerState & "|||" & shuf
end tell
`

func osMediaSnapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	running, err := runAppleScript(ctx, musicRunningScript)
	if err != nil {
		return nil, err
	}
	if running != "true" {
		return nil, nil
	}

	raw, err := runAppleScript(ctx, trackInfoScript)
	if err != nil {
		return nil, err
	}
	if raw == "stopped" || raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, "|||")
	if len(parts) != 7 {
		return nil, errs.Corrupt(fmt.Sprintf("unexpected AppleScript output format: %q", raw), nil)
	}

	durationSec, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return nil, errs.Corrupt("failed to parse duration", err)
	}
	positionSec, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return nil, errs.Corrupt("failed to parse position", err)
	}

	durationMs := int64(durationSec * 1000)
	positionMs := int64(positionSec * 1000)
	isPlaying := parts[5] == "playing"
	shuffle := parts[6] == "true"

	return &model.PlaybackSnapshot{
		SampledAt:  time.Now(),
		Title:      parts[0],
		Artist:     parts[1],
		Album:      parts[2],
		DurationMs: &durationMs,
		PositionMs: &positionMs,
		IsPlaying:  isPlaying,
		Shuffle:    &shuffle,
	}, nil
}

func osMediaControl(ctx context.Context, cmd Command) error {
	var script string
	switch cmd.Action {
	case CapPlayPause:
		script = `tell application "Music" to playpause`
	case CapNext:
		script = `tell application "Music" to next track`
	case CapPrevious:
		script = `tell application "Music" to previous track`
	default:
		return errs.Misconfigured(fmt.Sprintf("osmedia does not support %q", cmd.Action), nil)
	}
	_, err := runAppleScript(ctx, script)
	return err
}
