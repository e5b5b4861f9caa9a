package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/config"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face enrollment and recognition for a camera gate",
	Long: `FaceGate detects faces with a RetinaFace model, aligns them, extracts
ArcFace-style embeddings and matches them against the enrolled faces.
Settings come from a YAML file and FACEGATE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		log.Printf("Using data directory %s (backend %s, threshold %.2f)", cfg.DataDir, cfg.Backend, cfg.MatchThreshold)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initEnv)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
}

func initEnv() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
