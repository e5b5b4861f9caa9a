package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/detector"
)

var anchorsCmd = &cobra.Command{
	Use:   "anchors",
	Short: "Show the anchor layout of the configured detector input",
	Long: `Print the number of anchors per feature map level for the configured
detector input size. The total must match the number of rows the detection
model outputs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ac := cfg.DetectorConfig().Anchors
		anchors, err := detector.NewAnchors(ac)
		if err != nil {
			return err
		}

		fmt.Printf("Input: %dx%d\n", ac.Width, ac.Height)
		for k, stride := range ac.Strides {
			level := detector.AnchorConfig{
				Width:    ac.Width,
				Height:   ac.Height,
				Strides:  []int{stride},
				MinSizes: [][]float32{ac.MinSizes[k]},
			}
			fmt.Printf("  stride %2d, sizes %v: %d anchors\n", stride, ac.MinSizes[k], detector.AnchorCount(level))
		}
		fmt.Printf("Total: %d anchors\n", anchors.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(anchorsCmd)
}
