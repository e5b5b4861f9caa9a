package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/capture"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll the face in front of the camera or in an image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), app.KindEnroll)
	},
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize the face in front of the camera or in an image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), app.KindRecognize)
	},
}

var imagePath string

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(recognizeCmd)

	for _, c := range []*cobra.Command{enrollCmd, recognizeCmd} {
		c.Flags().StringVarP(&imagePath, "image", "i", "", "Image file to use instead of the camera")
	}
}

func runOnce(ctx context.Context, kind app.Kind) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := buildApp(cfg, st, appOptions{camera: imagePath == "", hooks: true})
	if err != nil {
		return err
	}
	defer a.Close()

	var res app.Result
	if imagePath != "" {
		frame, err := capture.LoadImage(imagePath, capture.MaxImageSide)
		defer frame.Close()
		if err != nil {
			return err
		}
		if kind == app.KindEnroll {
			res, err = a.EnrollImage(frame)
		} else {
			res, err = a.RecognizeImage(frame)
		}
		if err != nil {
			return err
		}
	} else {
		g := a.Grabber()
		if g == nil {
			return fmt.Errorf("%w: pass --image", app.ErrNoCamera)
		}
		if err := g.Start(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		if kind == app.KindEnroll {
			res, err = a.Enroll(ctx)
		} else {
			res, err = a.Recognize(ctx)
		}
		if err != nil {
			return err
		}
	}

	printResult(res)
	return nil
}
