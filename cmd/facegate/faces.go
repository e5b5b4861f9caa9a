package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/hook"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Inspect and manage the enrolled faces",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the enrolled faces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		faces, err := st.Faces().List()
		if err != nil {
			return err
		}
		for _, f := range faces {
			fmt.Printf("%6d  dim %d  enrolled %s\n", f.ID, f.Dim, f.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("Faces: %d\n", len(faces))
		return nil
	},
}

var facesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of enrolled faces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Faces().Count()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var facesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every enrolled face",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Faces().Count()
		if err != nil {
			return err
		}
		if err := st.Faces().Clear(); err != nil {
			return err
		}
		fmt.Printf("Removed %d faces\n", n)
		return nil
	},
}

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the most recent enroll and recognize results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		events, err := st.Events().Recent(eventsLimit)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("%s  %-9s  %-14s  face %3d  %.3f  %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Outcome, e.FaceID, e.Similarity, e.Message)
		}
		return nil
	},
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "List the hooks that receive results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := hook.NewManager(cfg.HooksDir, hook.NewExecutor(cfg.HookTimeout))
		if err := mgr.Discover(); err != nil {
			return err
		}

		hooks := mgr.List()
		if len(hooks) == 0 {
			fmt.Printf("No hooks in %s\n", mgr.Dir())
			return nil
		}
		for _, h := range hooks {
			fmt.Printf("%-16s %-8s events %v  %s\n", h.Manifest.Name, h.Manifest.Version, h.Manifest.Events, h.Manifest.Description)
		}
		return nil
	},
}

func init() {
	facesCmd.AddCommand(facesListCmd, facesCountCmd, facesClearCmd)
	rootCmd.AddCommand(facesCmd)

	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Number of events to show")
	rootCmd.AddCommand(eventsCmd)

	rootCmd.AddCommand(hooksCmd)
}
