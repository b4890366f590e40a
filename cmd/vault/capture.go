package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/capture"
	"github.com/and161185/journeyvault/internal/device"
	"github.com/and161185/journeyvault/internal/errs"
)

const maxZoom = 8

func newCaptureCmd(c *cli) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:     "capture",
		Aliases: []string{"add"},
		Short:   "Add a photo, voice clip or note to a locked journey",
	}
	cmd.PersistentFlags().DurationVar(&wait, "context-wait", 3*time.Second, "how long to wait for location and weather (0 disables)")
	cmd.AddCommand(
		newCaptureNoteCmd(c, &wait),
		newCapturePhotoCmd(c, &wait),
		newCaptureAudioCmd(c, &wait),
	)
	return cmd
}

func newCaptureNoteCmd(c *cli, wait *time.Duration) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "note JOURNEY_ID [TEXT...]",
		Short: "Save a text note; reads stdin when no text is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
			text, err := noteText(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			scr, _ := c.screen(id, viewer, &device.StillDriver{}, nil)
			if err := scr.Mount(cmd.Context(), capture.ModeNote); err != nil {
				return err
			}
			defer scr.Unmount()
			return c.save(cmd.Context(), scr, text, *wait)
		}),
	}
	cmd.Flags().StringVar(&file, "file", "", "read the note from a file")
	return cmd
}

func noteText(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", fmt.Errorf("%w: give the note as arguments or --file, not both", errUsage)
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errUsage, err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
}

func newCapturePhotoCmd(c *cli, wait *time.Duration) *cobra.Command {
	var (
		importPath string
		back       string
		front      string
		facingName string
		filterName string
		zoom       float64
	)
	cmd := &cobra.Command{
		Use:   "photo JOURNEY_ID",
		Short: "Take a still from a camera, or import an image",
		Long: `Take a still from a camera, or import an image.

Cameras are image files standing in for the back (--camera) and front (--front)
devices. Front-camera stills are mirrored, and --zoom crops the frame center.`,
		Args: cobra.ExactArgs(1),
		RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
			ctx := cmd.Context()
			if (importPath == "") == (back == "" && front == "") {
				return fmt.Errorf("%w: pass either --import or a camera (--camera/--front)", errUsage)
			}
			facing, err := parseFacing(facingName)
			if err != nil {
				return err
			}
			f, err := parseFilter(filterName)
			if err != nil {
				return err
			}
			if facingName == "" && back == "" {
				facing = device.FacingUser
			}

			drv := &device.StillDriver{
				Files: map[device.Facing]string{device.FacingEnvironment: back, device.FacingUser: front},
				Zoom:  device.ZoomRange{Min: 1, Max: maxZoom},
			}
			scr, cam := c.screen(id, viewer, drv, nil)
			scr.WithFacing(facing)
			mountErr := scr.Mount(ctx, capture.ModePhoto)
			defer scr.Unmount()
			scr.SetFilter(f)

			if importPath != "" {
				data, err := os.ReadFile(importPath)
				if err != nil {
					return fmt.Errorf("%w: %v", errUsage, err)
				}
				if _, err := scr.Import(data); err != nil {
					return err
				}
			} else {
				if mountErr != nil {
					return mountErr
				}
				if zoom != 0 {
					cam.SetZoom(zoom)
				}
				if _, err := scr.Freeze(); err != nil {
					return err
				}
			}
			return c.save(ctx, scr, "", *wait)
		}),
	}
	fl := cmd.Flags()
	fl.StringVar(&importPath, "import", "", "import an existing image file")
	fl.StringVar(&back, "camera", "", "image file serving as the back camera")
	fl.StringVar(&front, "front", "", "image file serving as the front camera")
	fl.StringVar(&facingName, "facing", "", "camera to use: back or front")
	fl.StringVar(&filterName, "filter", "", "filter: none, warm, cool, mono, faded, vivid")
	fl.Float64Var(&zoom, "zoom", 0, fmt.Sprintf("zoom level, 1 to %d", maxZoom))
	cmd.MarkFlagsMutuallyExclusive("import", "camera")
	cmd.MarkFlagsMutuallyExclusive("import", "front")
	return cmd
}

func newCaptureAudioCmd(c *cli, wait *time.Duration) *cobra.Command {
	var (
		file     string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audio JOURNEY_ID",
		Short: "Save a voice clip from an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
			ctx := cmd.Context()
			if file == "" {
				return fmt.Errorf("%w: --file is required", errUsage)
			}
			rec := &capture.FileRecorder{Path: file, Duration: duration}
			scr, _ := c.screen(id, viewer, &device.StillDriver{}, rec)
			if err := scr.Mount(ctx, capture.ModeAudio); err != nil {
				return err
			}
			defer scr.Unmount()
			if err := scr.StartRecording(ctx); err != nil {
				return err
			}
			if _, err := scr.StopRecording(); err != nil {
				return err
			}
			return c.save(ctx, scr, "", *wait)
		}),
	}
	cmd.Flags().StringVar(&file, "file", "", "audio file (webm, ogg, m4a, mp3, wav)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "clip length")
	return cmd
}

func (c *cli) screen(journey, viewer uuid.UUID, drv device.Driver, rec capture.Recorder) (*capture.Screen, *device.Session) {
	sess := device.NewSession(drv, c.log)
	return capture.NewScreen(c.app.orch, sess, rec, c.app.enricher, journey, viewer, c.log), sess
}

// save waits up to wait for the context snapshot, then persists and prints
// the memory. An orphaned upload is reported so it can be cleaned up.
func (c *cli) save(ctx context.Context, scr *capture.Screen, text string, wait time.Duration) error {
	if wait > 0 {
		wctx, cancel := context.WithTimeout(ctx, wait)
		scr.AwaitContext(wctx)
		cancel()
	}
	ch, err := scr.Save(ctx, text)
	if err != nil {
		return err
	}
	res := <-ch
	if res.Err != nil {
		var orphan *errs.OrphanError
		if errors.As(res.Err, &orphan) {
			c.log.Warn("media uploaded without a memory", zap.String("path", orphan.Path))
		}
		return res.Err
	}
	return c.printMemory(res.Memory)
}
