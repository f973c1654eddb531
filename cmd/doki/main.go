// Command doki is the thin client for a running dokid daemon. Each
// invocation sends exactly one command and prints the reply.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/eel-brah/kokorodoki/internal/client"
	"github.com/eel-brah/kokorodoki/internal/protocol"
)

var version = "0.1.0-dev"

const usageText = `usage: doki [-addr host:port] <command> [args]

commands:
  speak <text>        speak text (reads stdin when text is "-")
  file <path>         speak the contents of a file
  clipboard           speak the clipboard contents
  stop                stop playback
  pause               pause playback
  resume              resume playback
  next                skip to the next utterance
  back                go back one utterance
  voice <name>        switch voice
  lang <code>         switch language
  speed <value>       set playback speed
  status              show playback status
  say-status          have the daemon speak its own status
  langs               list supported languages
  voices [code]       list voices, optionally for one language
  clear-history       delete recorded payloads
  exit                shut the daemon down
  version             print client version
`

func main() {
	args := os.Args[1:]
	addr := client.DefaultAddr
	if len(args) >= 2 && args[0] == "-addr" {
		addr = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	if args[0] == "say-status" {
		if err := sayStatus(addr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cmd, err := buildCommand(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cmd == nil {
		// version handled locally
		return
	}

	rep, err := client.Send(addr, *cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printReply(rep)
	if !rep.OK {
		os.Exit(1)
	}
}

func buildCommand(args []string) (*protocol.Command, error) {
	verb := args[0]
	rest := args[1:]

	switch verb {
	case "speak":
		text, err := speakPayload(rest)
		if err != nil {
			return nil, err
		}
		return &protocol.Command{Verb: protocol.VerbSpeak, Text: text}, nil
	case "file":
		if len(rest) != 1 {
			return nil, fmt.Errorf("file requires a path")
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			return nil, err
		}
		return &protocol.Command{Verb: protocol.VerbSpeak, Text: string(data)}, nil
	case "clipboard":
		text, err := client.ReadClipboard(context.Background())
		if err != nil {
			return nil, err
		}
		return &protocol.Command{Verb: protocol.VerbSpeak, Text: text}, nil
	case "stop", "pause", "resume", "next", "back", "status", "exit":
		return &protocol.Command{Verb: verb}, nil
	case "voice":
		if len(rest) != 1 {
			return nil, fmt.Errorf("voice requires a name")
		}
		return &protocol.Command{Verb: protocol.VerbSetVoice, Voice: rest[0]}, nil
	case "lang":
		if len(rest) != 1 {
			return nil, fmt.Errorf("lang requires a code")
		}
		return &protocol.Command{Verb: protocol.VerbSetLanguage, Language: rest[0]}, nil
	case "speed":
		if len(rest) != 1 {
			return nil, fmt.Errorf("speed requires a value")
		}
		v, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid speed %q", rest[0])
		}
		return &protocol.Command{Verb: protocol.VerbSetSpeed, Speed: v}, nil
	case "langs":
		return &protocol.Command{Verb: protocol.VerbListLanguages}, nil
	case "voices":
		cmd := &protocol.Command{Verb: protocol.VerbListVoices}
		if len(rest) == 1 {
			cmd.Language = rest[0]
		}
		return cmd, nil
	case "clear-history":
		return &protocol.Command{Verb: protocol.VerbClearHistory}, nil
	case "version":
		fmt.Println(version)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}

func speakPayload(rest []string) (string, error) {
	if len(rest) == 1 && rest[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	if len(rest) == 0 {
		return "", fmt.Errorf("speak requires text")
	}
	return strings.Join(rest, " "), nil
}

// sayStatus fetches the playback status and has the daemon speak it.
func sayStatus(addr string) error {
	rep, err := client.Send(addr, protocol.Command{Verb: protocol.VerbStatus})
	if err != nil {
		return err
	}
	if !rep.OK || rep.Status == nil {
		return fmt.Errorf("status request failed: %s", rep.Message)
	}
	st := rep.Status

	// Keep decimals out of the spoken text; the segmenter treats every
	// period as a sentence boundary.
	speed := strings.ReplaceAll(fmt.Sprintf("%.1f", st.Speed), ".", " point ")
	var text string
	switch st.Phase {
	case "idle":
		text = fmt.Sprintf("Idle. Voice %s, speed %s.", st.Voice, speed)
	case "stopped":
		text = fmt.Sprintf("Finished %d utterances. Voice %s, speed %s.",
			st.Total, st.Voice, speed)
	default:
		text = fmt.Sprintf("%s, utterance %d of %d. Voice %s, speed %s.",
			st.Phase, st.Cursor+1, st.Total, st.Voice, speed)
	}

	rep, err = client.Send(addr, protocol.Command{Verb: protocol.VerbSpeak, Text: text})
	if err != nil {
		return err
	}
	if !rep.OK {
		return fmt.Errorf("speak failed: %s", rep.Message)
	}
	fmt.Println(text)
	return nil
}

func printReply(rep protocol.Reply) {
	switch {
	case rep.Status != nil:
		st := rep.Status
		fmt.Printf("phase: %s\n", st.Phase)
		if st.Total > 0 {
			fmt.Printf("position: %d/%d\n", st.Cursor+1, st.Total)
		}
		if st.Utterance != "" {
			fmt.Printf("utterance: %s\n", st.Utterance)
		}
		fmt.Printf("voice: %s\nlanguage: %s\nspeed: %.2f\n", st.Voice, st.Language, st.Speed)
	case rep.Items != nil:
		for _, item := range rep.Items {
			if item.Name != "" {
				fmt.Printf("%s\t%s\n", item.ID, item.Name)
			} else {
				fmt.Println(item.ID)
			}
		}
	case rep.Message != "":
		fmt.Println(rep.Message)
	}
}
