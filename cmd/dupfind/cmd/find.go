package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/dupfind"
	"github.com/aweris/dupfind/internal/remote"
	"github.com/aweris/dupfind/internal/render"
	"github.com/aweris/dupfind/internal/walk"
)

var findCmd = &cobra.Command{
	Use:   "find <path>",
	Short: "Find groups of duplicate files",
	Long: `Find groups of duplicate files under a directory.

Methods:
  exact       whole-content xxHash64 (default)
  header      first --header-length bytes only; fast but approximate
  perceptual  difference hash of decoded images; --tolerance merges near matches`,
	Args: cobra.ExactArgs(1),
	PreRunE: bindFlags(map[string]string{
		"method":        "method",
		"recursive":     "recursive",
		"workers":       "workers",
		"header_length": "header-length",
		"hash_size":     "hash-size",
		"tolerance":     "tolerance",
		"json":          "json",
		"full_paths":    "full-paths",
		"output":        "output",
		"keep":          "keep",
		"publish":       "publish",
		"publish_tags":  "tag",
		"progress":      "progress",
	}),
	RunE: runFind,
}

func init() {
	flags := findCmd.Flags()
	flags.StringP("method", "m", string(dupfind.Exact), "fingerprint method: exact, header, perceptual")
	flags.BoolP("recursive", "r", false, "descend into subdirectories")
	flags.IntP("workers", "w", 0, "files hashed in parallel (default: number of CPUs)")
	flags.Int("header-length", dupfind.DefaultHeaderLength, "bytes compared by the header method")
	flags.Int("hash-size", dupfind.DefaultHashSize, "perceptual hash grid size (multiple of 8)")
	flags.Int("tolerance", 0, "perceptual Hamming distance treated as equal")
	flags.Bool("json", false, "print a JSON array of arrays")
	flags.Bool("full-paths", false, "print full paths instead of file names")
	flags.StringP("output", "o", "", "write the report to a file (.zst suffix compresses it)")
	flags.String("keep", "", "print a keep/remove plan: oldest, newest, biggest, smallest")
	flags.String("publish", "", "push the JSON report to an OCI image ref")
	flags.StringSlice("tag", nil, "extra tags for --publish")
	flags.BoolP("progress", "p", false, "show progress on stderr")

	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) (err error) {
	root := args[0]
	log := newLogger(cmd.ErrOrStderr())

	var policy dupfind.KeepPolicy
	if name := viper.GetString("keep"); name != "" {
		if policy, err = dupfind.ParseKeepPolicy(name); err != nil {
			return err
		}
	}

	fsys := afero.NewOsFs()
	prog := newProgress(cmd.ErrOrStderr())

	opts := []dupfind.Option{
		dupfind.WithFs(fsys),
		dupfind.WithLogger(log),
		dupfind.WithWorkers(viper.GetInt("workers")),
		dupfind.WithHeaderLength(viper.GetInt("header_length")),
		dupfind.WithHashSize(viper.GetInt("hash_size")),
		dupfind.WithTolerance(viper.GetInt("tolerance")),
	}
	if viper.GetBool("progress") {
		opts = append(opts, dupfind.WithObserver(prog.observe))
	}

	finder, err := dupfind.New(viper.GetString("method"), opts...)
	if err != nil {
		return err
	}

	paths, err := walk.Files(fsys, root, viper.GetBool("recursive"), log)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", root, err)
	}
	prog.total = len(paths)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := finder.Find(ctx, slices.Values(paths))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"root":      root,
		"strategy":  res.Strategy,
		"workers":   finder.Workers(),
		"files":     res.Files,
		"failed":    res.Failed,
		"sets":      len(res.Sets),
		"redundant": res.Redundant(),
	}).Info("scan complete")

	outPath := viper.GetString("output")
	out, err := openOutput(cmd.OutOrStdout(), outPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	ropts := render.Options{
		FullPaths: viper.GetBool("full_paths"),
		Color:     outPath == "" && isTerminal(cmd.OutOrStdout()),
	}
	if err := writeReport(out, res, policy, viper.GetBool("json"), ropts); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if ref := viper.GetString("publish"); ref != "" {
		if err := publish(ctx, ref, viper.GetStringSlice("publish_tags"), root, res); err != nil {
			return err
		}
		log.WithField("ref", ref).Info("report published")
	}

	return nil
}

func writeReport(w io.Writer, res *dupfind.Result, policy dupfind.KeepPolicy, asJSON bool, opts render.Options) error {
	if policy != "" {
		plans := policy.Plan(res.Sets)
		if asJSON {
			return render.PlanJSON(w, plans, opts)
		}
		return render.PlanText(w, plans, opts)
	}
	if asJSON {
		return render.JSON(w, res.Sets, opts)
	}
	return render.Text(w, res.Sets, opts)
}

func publish(ctx context.Context, ref string, tags []string, root string, res *dupfind.Result) error {
	var buf bytes.Buffer
	if err := render.JSON(&buf, res.Sets, render.Options{FullPaths: true}); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	r, err := remote.NewOCIRemote(ref, registryAuth())
	if err != nil {
		return err
	}

	report := remote.Report{
		Data: buf.Bytes(),
		Labels: map[string]string{
			remote.LabelStrategy: string(res.Strategy),
			remote.LabelSets:     strconv.Itoa(len(res.Sets)),
			remote.LabelRoot:     root,
		},
	}
	if err := r.Push(ctx, report, tags...); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func registryAuth() remote.Authenticator {
	return remote.NewStaticAuthenticator(
		viper.GetString("registry_username"),
		viper.GetString("registry_password"),
	)
}
