package cmd

import (
	"net/http"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var nodeInfoCmd = &cobra.Command{
	Use:     "nodeinfo",
	Aliases: []string{"info"},
	Short:   "Show information about the node.",
	Args:    cobra.NoArgs,
	RunE:    nodeInfoRun,
}

func init() {
	rootCmd.AddCommand(nodeInfoCmd)
}

func nodeInfoRun(cmd *cobra.Command, args []string) error {
	var info struct {
		P2PHost    string `json:"p2pHost"`
		BlockCount int    `json:"blockCount"`
		PeerCount  int    `json:"peerCount"`
		Difficulty uint   `json:"difficulty"`
		HashMode   string `json:"hashMode"`
	}
	if err := call(http.MethodGet, "/v1/nodeinfo", nil, &info); err != nil {
		return err
	}

	data := pterm.TableData{
		{"P2P Host", info.P2PHost},
		{"Blocks", strconv.Itoa(info.BlockCount)},
		{"Peers", strconv.Itoa(info.PeerCount)},
		{"Difficulty", strconv.FormatUint(uint64(info.Difficulty), 10)},
		{"Hash Mode", info.HashMode},
	}

	box := pterm.DefaultBox.WithTitle(pterm.LightCyan("|NODE|")).WithTitleTopCenter()
	table, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		return err
	}
	box.Println(table)

	return nil
}
