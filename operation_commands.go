// anytrack/operation_commands.go
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"anytrack/form"
	"anytrack/operation"
	"anytrack/request"

	"github.com/spf13/cobra"
)

// outputFlags are shared by every one-shot operation.
type outputFlags struct {
	outDir     string
	noDownload bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.outDir, "out", "o", "", "Directory for the downloaded result (default from config)")
	cmd.Flags().BoolVar(&o.noDownload, "no-download", false, "Print the download URL instead of saving the file")
}

type targetFlags struct {
	format  string
	quality int
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.format, "format", "f", string(form.MP3), "Target format (mp3, wav, flac, ogg, aac, m4a)")
	cmd.Flags().IntVarP(&t.quality, "quality", "q", form.DefaultQuality, "Bitrate in kbps for lossy formats")
}

func (t *targetFlags) apply(ctrl *operation.Controller) error {
	if err := ctrl.SetFormat(form.Format(t.format)); err != nil {
		return err
	}
	return ctrl.SetQuality(t.quality)
}

func newConvertCommand(a *app) *cobra.Command {
	var out outputFlags
	var target targetFlags
	var (
		bitrateMode string
		sampleRate  int
		channels    int
		fadeIn      bool
		fadeOut     bool
		reverse     bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a local audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("source file: %w", err)
			}
			return a.runOperation(cmd, out, func(ctrl *operation.Controller) error {
				if err := ctrl.SetSource(form.LocalFile(args[0])); err != nil {
					return err
				}
				if err := target.apply(ctrl); err != nil {
					return err
				}
				options := map[string]string{
					"bitrate_mode": bitrateMode,
					"sample_rate":  strconv.Itoa(sampleRate),
					"channels":     strconv.Itoa(channels),
					"fade_in":      strconv.FormatBool(fadeIn),
					"fade_out":     strconv.FormatBool(fadeOut),
					"reverse":      strconv.FormatBool(reverse),
				}
				for _, name := range []string{"bitrate_mode", "sample_rate", "channels", "fade_in", "fade_out", "reverse"} {
					if err := ctrl.SetOption(name, options[name]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	out.register(cmd)
	target.register(cmd)
	defaults := form.DefaultAdvanced()
	cmd.Flags().StringVar(&bitrateMode, "bitrate-mode", string(defaults.BitrateMode), "constant or variable")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", defaults.SampleRateHz, "Sample rate in Hz")
	cmd.Flags().IntVar(&channels, "channels", defaults.Channels, "1 for mono, 2 for stereo")
	cmd.Flags().BoolVar(&fadeIn, "fade-in", false, "Apply a fade-in")
	cmd.Flags().BoolVar(&fadeOut, "fade-out", false, "Apply a fade-out")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Reverse the audio")
	return cmd
}

func newYouTubeCommand(a *app) *cobra.Command {
	var out outputFlags
	var target targetFlags

	cmd := &cobra.Command{
		Use:     "youtube <url>",
		Aliases: []string{"url"},
		Short:   "Extract audio from a YouTube URL",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOperation(cmd, out, func(ctrl *operation.Controller) error {
				if err := ctrl.SetMode(form.URLConvert); err != nil {
					return err
				}
				if err := ctrl.SetURL(args[0]); err != nil {
					return err
				}
				return target.apply(ctrl)
			})
		},
	}
	out.register(cmd)
	target.register(cmd)
	return cmd
}

func newMetadataCommand(a *app) *cobra.Command {
	var out outputFlags
	tags := make(map[string]*string, len(form.MetadataFields))

	cmd := &cobra.Command{
		Use:     "metadata <file>",
		Aliases: []string{"tag"},
		Short:   "Rewrite the tags of a local audio file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("source file: %w", err)
			}
			return a.runOperation(cmd, out, func(ctrl *operation.Controller) error {
				if err := ctrl.SetMode(form.MetadataEdit); err != nil {
					return err
				}
				if err := ctrl.SetSource(form.LocalFile(args[0])); err != nil {
					return err
				}
				for _, name := range form.MetadataFields {
					if err := ctrl.SetTag(name, *tags[name]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	out.register(cmd)
	for _, name := range form.MetadataFields {
		tags[name] = cmd.Flags().String(name, "", "New "+name+" tag")
	}
	return cmd
}

// runOperation prepares a fresh controller with prepare, submits it and,
// unless disabled, saves the result.
func (a *app) runOperation(cmd *cobra.Command, out outputFlags, prepare func(*operation.Controller) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd.ErrOrStderr(), a.cfg.LogLevel, false)
	ctrl := a.newController(logger, out.outDir)
	defer ctrl.Close()

	if err := prepare(ctrl); err != nil {
		return err
	}

	display := newProgressDisplay(cmd.ErrOrStderr(), logger)
	unsubscribe := ctrl.Subscribe(display.update)
	st, err := ctrl.Submit(ctx)
	unsubscribe()
	display.finish(st)
	var verr *request.ValidationError
	if errors.As(err, &verr) {
		return errors.New(verr.Message)
	}
	if err != nil {
		return err
	}
	if st.Phase != operation.Succeeded {
		return errors.New(st.Message)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, st.Message)
	if out.noDownload {
		fmt.Fprintln(w, st.Artifact.DownloadURL)
		return nil
	}
	path, err := ctrl.Download(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved to %s\n", path)
	return nil
}
