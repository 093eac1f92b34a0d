package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"oracle/internal/domain"
	"oracle/internal/media"
	"oracle/internal/providers/image"
	"oracle/internal/providers/video"
	"oracle/internal/storage"
)

var imageCmd = &cobra.Command{
	Use:   "image [prompt]",
	Short: "Generate an image and save it under --out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aspect, _ := cmd.Flags().GetString("aspect-ratio")
		pro, _ := cmd.Flags().GetBool("pro")
		size, _ := cmd.Flags().GetString("size")
		out, _ := cmd.Flags().GetString("out")

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireKey(cmd.Context()); err != nil {
			return err
		}
		files, err := storage.NewFileStore(out, "file://"+absPath(out))
		if err != nil {
			return err
		}
		m := media.NewManager(media.Options{
			Images: image.NewGeminiGenerator(image.GeminiOptions{
				Client:   e.client,
				Model:    e.cfg.Gemini.ImageModel,
				ProModel: e.cfg.Gemini.ImageProModel,
			}),
			Files:   files,
			Monitor: e.monitor,
			Logger:  &e.logger,
		})
		defer m.Close()

		return follow(cmd.Context(), cmd.OutOrStdout(), m, func() (string, error) {
			return m.GenerateImage(media.ImageRequest{Prompt: args[0], AspectRatio: aspect, UsePro: pro, Size: size})
		})
	},
}

var videoCmd = &cobra.Command{
	Use:   "video [prompt]",
	Short: "Generate a video and print its download URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aspect, _ := cmd.Flags().GetString("aspect-ratio")
		resolution, _ := cmd.Flags().GetString("resolution")
		from, _ := cmd.Flags().GetString("image")

		req := media.VideoRequest{Prompt: args[0], AspectRatio: aspect, Resolution: resolution}
		if from != "" {
			data, err := os.ReadFile(from)
			if err != nil {
				return fmt.Errorf("read start image: %w", err)
			}
			req.Image, req.ImageMIME = data, mimeFromExt(from)
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.requireKey(cmd.Context()); err != nil {
			return err
		}
		m := media.NewManager(media.Options{
			Videos: video.NewGeminiGenerator(video.Options{
				Client:       e.client,
				PollInterval: e.cfg.Video.PollInterval,
				PollTimeout:  e.cfg.Video.PollTimeout,
			}),
			Monitor:    e.monitor,
			VideoModel: e.cfg.Gemini.VideoModel,
			Logger:     &e.logger,
		})
		defer m.Close()

		return follow(cmd.Context(), cmd.OutOrStdout(), m, func() (string, error) { return m.GenerateVideo(req) })
	},
}

// follow starts a job and prints its progress until it settles.
func follow(ctx context.Context, w io.Writer, m *media.Manager, start func() (string, error)) error {
	updates, cancel := m.Store().Subscribe(0)
	defer cancel()

	id, err := start()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, open := <-updates:
			if !open {
				return fmt.Errorf("lost track of job %s", id)
			}
			if job.ID != id {
				continue
			}
			fmt.Fprintf(w, "%-10s %3d%%\n", job.Status, job.Progress)
			switch job.Status {
			case domain.JobStatusCompleted:
				if job.Asset != nil {
					fmt.Fprintln(w, job.Asset.URL)
				}
				return nil
			case domain.JobStatusFailed:
				return fmt.Errorf("job failed: %s", job.Error)
			}
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func mimeFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func init() {
	rootCmd.AddCommand(imageCmd, videoCmd)

	imageCmd.Flags().String("aspect-ratio", "1:1", "output aspect ratio")
	imageCmd.Flags().Bool("pro", false, "use the pro image model")
	imageCmd.Flags().String("size", "", "pro model output size (1K, 2K, 4K)")
	imageCmd.Flags().String("out", "generated", "directory images are written to")

	videoCmd.Flags().String("aspect-ratio", "16:9", "output aspect ratio")
	videoCmd.Flags().String("resolution", "720p", "output resolution")
	videoCmd.Flags().String("image", "", "optional start frame")
}
