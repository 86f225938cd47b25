// Package shell is a line-oriented front end for a conversion session. Each
// line is one command that edits the form, submits it or saves the result.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"anytrack/form"
	"anytrack/operation"

	"github.com/google/shlex"
	"github.com/jedib0t/go-pretty/v6/table"
)

// ErrQuit is returned by Exec for "quit" and "exit".
var ErrQuit = errors.New("quit")

const prompt = "anytrack> "

// Controller is the subset of *operation.Controller the shell drives.
type Controller interface {
	SetMode(form.Mode) error
	SetSource(form.Source) error
	SetURL(string) error
	SetFormat(form.Format) error
	SetQuality(int) error
	SetOption(name, value string) error
	SetTag(name, value string) error
	Submit(ctx context.Context) (operation.State, error)
	Download(ctx context.Context) (string, error)
	State() operation.State
	Form() form.State
}

type Session struct {
	ctrl Controller
	out  io.Writer
}

func New(ctrl Controller, out io.Writer) *Session {
	return &Session{ctrl: ctrl, out: out}
}

// SplitLine splits a command line the way a POSIX shell would, without
// invoking one.
func SplitLine(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command syntax: %w", err)
	}
	return args, nil
}

// Run reads commands from in until EOF or quit. Command errors are printed
// and do not end the session.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, prompt)
	for scanner.Scan() {
		err := s.Exec(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(s.out, prompt)
	}
	return scanner.Err()
}

// Exec runs a single command line.
func (s *Session) Exec(ctx context.Context, line string) error {
	args, err := SplitLine(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "help", "?":
		s.help()
		return nil
	case "quit", "exit":
		return ErrQuit
	case "status":
		fmt.Fprintln(s.out, RenderStatus(s.ctrl.Form(), s.ctrl.State()))
		return nil
	case "submit", "go":
		return s.submit(ctx)
	case "download", "save":
		p, err := s.ctrl.Download(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, "saved", p)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("%s: missing argument (try help)", cmd)
	}
	switch cmd {
	case "mode":
		m, err := form.ParseMode(args[0])
		if err != nil {
			return err
		}
		return s.ctrl.SetMode(m)
	case "file":
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("file: %w", err)
		}
		return s.ctrl.SetSource(form.LocalFile(args[0]))
	case "url":
		return s.ctrl.SetURL(args[0])
	case "format":
		return s.ctrl.SetFormat(form.Format(args[0]))
	case "quality":
		kbps, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("quality: %w", err)
		}
		return s.ctrl.SetQuality(kbps)
	case "set":
		if len(args) != 2 {
			return errors.New("usage: set <option> <value>")
		}
		return s.ctrl.SetOption(args[0], args[1])
	case "tag":
		return s.ctrl.SetTag(args[0], strings.Join(args[1:], " "))
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func (s *Session) submit(ctx context.Context) error {
	st, err := s.ctrl.Submit(ctx)
	if errors.Is(err, operation.ErrBusy) {
		return err
	}
	// Validation problems are already part of the state message.
	fmt.Fprintln(s.out, st.Message)
	if st.Artifact != nil {
		fmt.Fprintln(s.out, "preview:", st.Artifact.PreviewURL)
		fmt.Fprintln(s.out, "file:   ", st.Artifact.Filename)
	}
	return nil
}

func (s *Session) help() {
	fmt.Fprint(s.out, `commands:
  mode <convert|youtube|metadata>   switch mode (clears the last result)
  file <path>                       select the source file
  url <url>                         set the source url (youtube mode)
  format <mp3|wav|flac|ogg|aac|m4a> output format
  quality <64..320>                 bitrate in kbps, steps of 32
  set <option> <value>              bitrate_mode, sample_rate, channels, fade_in, fade_out, reverse
  tag <field> <value>               artist, title, album, genre (empty value clears)
  submit                            run the current mode
  download                          save the last result
  status                            show the form and the last result
  quit
`)
}

// RenderStatus renders the form and operation state as a table.
func RenderStatus(f form.State, st operation.State) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value"})

	source := "-"
	if f.Source != nil {
		source = f.Source.Name()
	}
	rows := []table.Row{
		{"mode", f.Mode.String()},
		{"format", string(f.Format)},
	}
	if f.Format.Lossy() {
		rows = append(rows, table.Row{"quality", fmt.Sprintf("%d kbps", f.Quality)})
	}
	switch f.Mode {
	case form.FileConvert:
		a := f.Advanced
		rows = append(rows,
			table.Row{"file", source},
			table.Row{"bitrate mode", string(a.BitrateMode)},
			table.Row{"sample rate", fmt.Sprintf("%d Hz", a.SampleRateHz)},
			table.Row{"channels", a.Channels},
			table.Row{"effects", effects(a)},
		)
	case form.URLConvert:
		rows = append(rows, table.Row{"url", valueOrDash(f.SourceURL)})
	case form.MetadataEdit:
		rows = append(rows, table.Row{"file", source})
		for _, name := range form.MetadataFields {
			rows = append(rows, table.Row{name, valueOrDash(f.Metadata.Field(name))})
		}
	}
	tw.AppendRows(rows)
	tw.AppendSeparator()

	rows = []table.Row{
		{"phase", string(st.Phase)},
		{"progress", fmt.Sprintf("%.0f%%", st.Progress)},
	}
	if st.Message != "" {
		rows = append(rows, table.Row{"message", st.Message})
	}
	if st.Artifact != nil {
		rows = append(rows,
			table.Row{"download", st.Artifact.DownloadURL},
			table.Row{"filename", st.Artifact.Filename},
		)
	}
	if st.DownloadMessage != "" {
		rows = append(rows, table.Row{"last save", st.DownloadMessage})
	}
	tw.AppendRows(rows)
	return tw.Render()
}

func effects(a form.Advanced) string {
	var on []string
	if a.FadeIn {
		on = append(on, "fade in")
	}
	if a.FadeOut {
		on = append(on, "fade out")
	}
	if a.Reverse {
		on = append(on, "reverse")
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ", ")
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
