// Command imagetool runs the journal image transforms on local files or
// URLs from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hatchling/journal/internal/imageproc"
	"github.com/hatchling/journal/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	outDir   string
	output   string
	timeout  time.Duration
	retries  int
	logLevel string
}

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	log := logger.New()

	rootCmd := &cobra.Command{
		Use:           "imagetool",
		Short:         "Resize, compress, filter and inspect journal images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(opts.logLevel, "")
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.outDir, "out-dir", "processed_images", "directory for generated images")
	flags.StringVarP(&opts.output, "output", "o", "", "explicit output path")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "timeout for remote sources")
	flags.IntVar(&opts.retries, "retries", 2, "retries for remote sources")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "warn", "log level")

	run := func(cmd *cobra.Command, op string, fn func(ctx context.Context, p *imageproc.Processor) (string, error)) error {
		p, err := imageproc.New(opts.outDir, imageproc.NewHTTPFetcher(opts.timeout, opts.retries))
		if err != nil {
			return err
		}
		out, err := fn(cmd.Context(), p)
		if err != nil {
			log.Log.Error("image operation failed", zap.String("operation", op), zap.Error(err))
			return err
		}
		log.Log.Debug("image written", zap.String("operation", op), zap.String("path", out))
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}

	rootCmd.AddCommand(newFitCmd("resize", "Fit an image within a bounding box", imageproc.DefaultResize, opts, run))
	rootCmd.AddCommand(newFitCmd("thumbnail", "Create a thumbnail", imageproc.DefaultThumbnail, opts, run))
	rootCmd.AddCommand(newCompressCmd(opts, run))
	rootCmd.AddCommand(newFilterCmd(opts, run))
	rootCmd.AddCommand(newExifCmd(opts, log))

	return rootCmd
}

type runFunc func(cmd *cobra.Command, op string, fn func(ctx context.Context, p *imageproc.Processor) (string, error)) error

func newFitCmd(use, short string, def imageproc.Size, opts *rootOptions, run runFunc) *cobra.Command {
	var width, height int
	cmd := &cobra.Command{
		Use:   use + " <source>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size := imageproc.Size{Width: width, Height: height}
			return run(cmd, use, func(ctx context.Context, p *imageproc.Processor) (string, error) {
				if use == "thumbnail" {
					return p.Thumbnail(ctx, args[0], size, opts.output)
				}
				return p.Resize(ctx, args[0], size, opts.output)
			})
		},
	}
	cmd.Flags().IntVar(&width, "width", def.Width, "maximum width")
	cmd.Flags().IntVar(&height, "height", def.Height, "maximum height")
	return cmd
}

func newCompressCmd(opts *rootOptions, run runFunc) *cobra.Command {
	var quality int
	cmd := &cobra.Command{
		Use:   "compress <source>",
		Short: "Re-encode an image as JPEG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "compress", func(ctx context.Context, p *imageproc.Processor) (string, error) {
				return p.Compress(ctx, args[0], quality, opts.output)
			})
		},
	}
	cmd.Flags().IntVarP(&quality, "quality", "q", imageproc.DefaultQuality, "JPEG quality (1-100)")
	return cmd
}

func newFilterCmd(opts *rootOptions, run runFunc) *cobra.Command {
	var filterType string
	cmd := &cobra.Command{
		Use:   "filter <source>",
		Short: "Apply grayscale, sepia or enhance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := imageproc.ParseFilter(filterType)
			if err != nil {
				return err
			}
			return run(cmd, "filter", func(ctx context.Context, p *imageproc.Processor) (string, error) {
				return p.ApplyFilter(ctx, args[0], f, opts.output)
			})
		},
	}
	cmd.Flags().StringVarP(&filterType, "type", "t", string(imageproc.FilterEnhance), "grayscale, sepia or enhance")
	return cmd
}

func newExifCmd(opts *rootOptions, log *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "exif <source>",
		Short: "Print supported EXIF tags as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := imageproc.New(opts.outDir, imageproc.NewHTTPFetcher(opts.timeout, opts.retries))
			if err != nil {
				return err
			}
			tags, err := p.ExtractExif(cmd.Context(), args[0])
			if err != nil {
				log.Log.Error("exif extraction failed", zap.Error(err))
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tags)
		},
	}
}
