package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/milk9111/profilesong/config"
	"github.com/milk9111/profilesong/download"
	"github.com/spf13/cobra"
)

// envFile holds local secrets such as PROFILESONG_REDIS_URL.
const envFile = ".env"

type cliFlags struct {
	configPath string
	offline    bool
	debug      bool
	monitor    bool
	account    int
	accountSet bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:           "profilesong",
		Short:         "Preview profile songs over the menu music",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.accountSet = cmd.Flags().Changed("account")
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runGame(cfg, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultFile, "path to the YAML config")
	root.PersistentFlags().IntVar(&flags.account, "account", 0, "local account id (overrides config)")
	root.Flags().BoolVar(&flags.offline, "offline", false, "serve user data from memory instead of Redis")
	root.Flags().BoolVar(&flags.debug, "debug", false, "log preview phase transitions")
	root.Flags().BoolVarP(&flags.monitor, "monitor", "m", false, "use base monitor instead of primary (for multi-monitor setups)")

	root.AddCommand(newSongsCmd(&flags))
	return root
}

// loadConfig reads the config file and applies flag overrides. The game
// calls it again on every reload.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, envFile)
	if err != nil {
		return nil, err
	}
	if flags.accountSet {
		cfg.AccountID = flags.account
	}
	return cfg, nil
}

func runGame(cfg *config.Config, flags cliFlags) error {
	if flags.monitor {
		ebiten.SetMonitor(ebiten.AppendMonitors(nil)[0])
	}
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("profilesong")

	game, err := NewGame(cfg, flags)
	if err != nil {
		return err
	}
	defer game.Close()

	if err := ebiten.RunGame(game); err != nil {
		log.Printf("game: %v", err)
		return err
	}
	return nil
}

// newSongsCmd lists the songs in the download cache.
func newSongsCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "songs",
		Short: "List downloaded songs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.accountSet = cmd.Flags().Changed("account")
			cfg, err := loadConfig(*flags)
			if err != nil {
				return err
			}
			idx, err := download.OpenIndex(cfg.IndexPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			renderSongs(cmd.OutOrStdout(), idx.Records())
			return nil
		},
	}
}

func renderSongs(out io.Writer, recs []download.Record) {
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(out, "No songs downloaded")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Artist", "Path", "Downloaded"})
	for _, rec := range recs {
		t.AppendRow(table.Row{
			rec.SongID,
			rec.Title,
			rec.Artist,
			rec.Path,
			rec.DownloadedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}
