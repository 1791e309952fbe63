package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "1.0.0"

type cliConfig struct {
	server   string
	mediaURL string
	room     string
	name     string
	create   bool
	export   string
	identity string
}

func (c *cliConfig) validate() error {
	if c.name == "" {
		return errors.New("--name is required")
	}
	if !c.create && c.room == "" {
		return errors.New("either --create or --room is required")
	}
	return nil
}

func newCmd() *cobra.Command {
	cfg := &cliConfig{}

	v := viper.New()
	v.SetEnvPrefix("REVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "reverse",
		Short:         "Terminal player for the Utakingdom Reverse audio party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return play(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8080", "relay server base URL (env: REVERSE_SERVER)")
	fs.StringVar(&cfg.mediaURL, "media", "http://localhost:8000", "audio service base URL (env: REVERSE_MEDIA)")
	fs.StringVarP(&cfg.room, "room", "r", "", "room code to join (env: REVERSE_ROOM)")
	fs.StringVarP(&cfg.name, "name", "n", "", "player nickname (env: REVERSE_NAME)")
	fs.BoolVarP(&cfg.create, "create", "c", false, "create a new room and become its host (env: REVERSE_CREATE)")
	fs.StringVar(&cfg.export, "export", "", "write a results transcript to this file (env: REVERSE_EXPORT)")
	fs.StringVar(&cfg.identity, "identity", "", "path to the identity file (env: REVERSE_IDENTITY)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("reverse v{{.Version}}\n")

	return cmd
}

// createRoom asks the relay to mint a fresh room code.
func createRoom(serverURL string) (string, error) {
	resp, err := http.Post(strings.TrimSuffix(serverURL, "/")+"/api/room", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create room: relay returned %d", resp.StatusCode)
	}
	var out struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if out.RoomCode == "" {
		return "", errors.New("create room: empty room code")
	}
	return out.RoomCode, nil
}
