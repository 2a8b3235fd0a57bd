// Package conversation routes inbound chat text to configuration capture or
// to the acquisition pipeline.
package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iconidentify/audiograbba/internal/domain"
)

// Commands understood by the bot.
const (
	CommandStart    = "/start"
	CommandSettings = "/settings"
	CommandCancel   = "/cancel"
	CommandStatus   = "/status"
)

// Reply texts.
const (
	MsgWelcome           = "Welcome! Use /settings to configure the bot."
	MsgAskUploadURL      = "Please enter the URL where you want to upload the files:"
	MsgAskRepeatCount    = "Upload URL set. Now, how many times do you want to repeat the search and download process? (Enter a number)"
	MsgInvalidNumber     = "Please enter a valid number."
	MsgConfigureFirst    = "Please use /settings to configure the bot first."
	MsgSettingsCancelled = "Settings unchanged."
)

// Action is what the controller does after a transition besides replying.
type Action int

const (
	// ActionNone only sends the reply.
	ActionNone Action = iota
	// ActionRunPipeline hands the input text to the pipeline.
	ActionRunPipeline
	// ActionIgnore drops the input silently.
	ActionIgnore
)

// Input is one inbound message split into an optional command and text.
type Input struct {
	Command string // normalized slash command, empty for free text
	Text    string
}

// ParseInput splits raw message text into a command and its remainder.
// "/settings@MyBot" normalizes to "/settings".
// Free text is kept verbatim.
func ParseInput(raw string) Input {
	cmd, rest := splitCommand(strings.TrimSpace(raw))
	if cmd = normalizeSlashCommand(cmd); cmd == "" {
		return Input{Text: raw}
	}
	return Input{Command: cmd, Text: rest}
}

// Outcome is the side effect of one transition.
type Outcome struct {
	Reply  string
	Action Action
	// Changed reports whether the session must be written back.
	Changed bool
}

// Step applies one input to a session and returns the outcome. The session is
// modified in place. maxRepeat bounds accepted repeat counts; values outside
// [1, maxRepeat] are re-prompted like unparseable input.
func Step(s *domain.UserSession, in Input, maxRepeat int) Outcome {
	switch in.Command {
	case CommandSettings:
		s.BeginSettings()
		return Outcome{Reply: MsgAskUploadURL, Changed: true}
	case CommandStart:
		return Outcome{Reply: MsgWelcome}
	case CommandCancel:
		if !s.State.Capturing() {
			return Outcome{Reply: statusText(s)}
		}
		s.CancelSettings()
		return Outcome{Reply: MsgSettingsCancelled, Changed: true}
	case CommandStatus:
		return Outcome{Reply: statusText(s)}
	case "":
	default:
		return Outcome{Action: ActionIgnore}
	}

	switch s.State {
	case domain.StateAwaitingUploadURL:
		s.SetUploadURL(in.Text)
		return Outcome{Reply: MsgAskRepeatCount, Changed: true}
	case domain.StateAwaitingRepeatCount:
		n, err := ParseRepeatCount(in.Text, maxRepeat)
		if err != nil {
			return Outcome{Reply: repeatPrompt(maxRepeat)}
		}
		s.SetRepeatCount(n)
		return Outcome{Reply: SettingsSavedText(n, s.UploadURL), Changed: true}
	default:
		return Outcome{Action: ActionRunPipeline}
	}
}

// ParseRepeatCount parses a repeat count and checks it against [1, max].
// A non-positive max disables the upper bound.
func ParseRepeatCount(text string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidRepeatCount, text)
	}
	if n < 1 || (max > 0 && n > max) {
		return 0, fmt.Errorf("%w: %d", domain.ErrRepeatCountOutOfRange, n)
	}
	return n, nil
}

// SettingsSavedText confirms a completed configuration.
func SettingsSavedText(repeat int, uploadURL string) string {
	return fmt.Sprintf("Settings saved. The bot will repeat the process %d times and upload to %s", repeat, uploadURL)
}

func repeatPrompt(max int) string {
	if max <= 0 {
		return MsgInvalidNumber
	}
	return fmt.Sprintf("%s (1-%d)", MsgInvalidNumber, max)
}

func statusText(s *domain.UserSession) string {
	if !s.Configured() {
		return MsgConfigureFirst
	}
	return fmt.Sprintf("Upload URL: %s\nRepeat count: %d", s.UploadURL, s.Repeats())
}

func splitCommand(text string) (cmd string, rest string) {
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

func normalizeSlashCommand(cmd string) string {
	if !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
