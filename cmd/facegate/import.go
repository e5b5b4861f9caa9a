package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/capture"
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Enroll every face photo in a directory",
	Long: `Enroll one face from each image in a directory. Images whose face is
already enrolled are reported as duplicates and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	paths, err := listImages(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("No images in %s\n", args[0])
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := buildApp(cfg, st, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
	)

	outcomes := make(map[app.Outcome]int)
	var failed []string
	for _, p := range paths {
		frame, err := capture.LoadImage(p, capture.MaxImageSide)
		if err != nil {
			frame.Close()
			failed = append(failed, fmt.Sprintf("%s: %v", filepath.Base(p), err))
			bar.Add(1)
			continue
		}

		res, err := a.EnrollImage(frame)
		frame.Close()
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", filepath.Base(p), err))
		} else if !res.Outcome.Success() && res.Outcome != app.OutcomeDuplicate {
			failed = append(failed, fmt.Sprintf("%s: %s", filepath.Base(p), res.Outcome))
		}
		outcomes[res.Outcome]++
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	fmt.Printf("Enrolled: %d, duplicates: %d, failed: %d\n",
		outcomes[app.OutcomeEnrolled], outcomes[app.OutcomeDuplicate], len(failed))
	for _, f := range failed {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

// listImages returns the image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
